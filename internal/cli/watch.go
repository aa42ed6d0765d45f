package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/shadow/internal/harness"
	"github.com/roach88/shadow/internal/metrics"
)

// DefaultDebounce is how long watch waits after the last file event before
// re-running the scenario. Editors often write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce    time.Duration
	MetricsAddr string // serve /metrics on this address when set
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <scenario.yaml>",
		Short: "Re-run a scenario whenever it changes",
		Long: `Run a scenario, then run it again every time the scenario file or its
initial_file changes. Stops on Ctrl-C.

With --metrics-addr, engine metrics accumulated over all runs are served
at http://<addr>/metrics.

Example:
  shadow watch ./scenarios/splice.yaml
  shadow watch ./scenarios/splice.yaml --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use command's context if available (for testing), otherwise create one
			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, cancel := context.WithCancel(parentCtx)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan) // Prevent signal handler leak

			go func() {
				select {
				case sig := <-sigChan:
					slog.Info("received signal, shutting down", "signal", sig)
					cancel()
				case <-ctx.Done():
				}
			}()

			return runWatch(ctx, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period after a change before re-running")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// scenarioWatcher re-runs one scenario file when it or its initial_file
// changes. Directories are watched rather than files so that editors which
// save by renaming a temporary file are still seen.
type scenarioWatcher struct {
	file      string
	watcher   *fsnotify.Watcher
	targets   map[string]bool // cleaned paths that trigger a run
	dirs      map[string]bool // directories added to watcher
	formatter *OutputFormatter
	runOpts   []harness.Option
	logger    *slog.Logger
	runs      int
}

func runWatch(ctx context.Context, opts *WatchOptions, file string, out, errOut io.Writer) error {
	formatter := newFormatter(opts.RootOptions, out, errOut)

	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		msg := fmt.Sprintf("scenario file not found: %s", file)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create file watcher", err)
	}
	defer fw.Close()

	w := &scenarioWatcher{
		file:      filepath.Clean(file),
		watcher:   fw,
		targets:   make(map[string]bool),
		dirs:      make(map[string]bool),
		formatter: formatter,
		runOpts:   []harness.Option{harness.WithLogger(slog.Default())},
		logger:    slog.Default(),
	}

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		w.runOpts = append(w.runOpts, harness.WithMetrics(metrics.NewCollector(reg)))
		_, stop, err := serveMetrics(opts.MetricsAddr, reg, w.logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	if err := w.track(w.file); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch scenario", err)
	}
	w.run()

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped", "file", w.file, "runs", w.runs)
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.targets[filepath.Clean(event.Name)] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			w.logger.Debug("scenario changed", "file", event.Name, "op", event.Op.String())

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.run()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// track adds path to the trigger set and watches its directory.
func (w *scenarioWatcher) track(path string) error {
	w.targets[path] = true
	dir := filepath.Dir(path)
	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// run loads and runs the scenario once and prints the outcome. Failures
// are printed, never returned: watching continues until cancelled.
func (w *scenarioWatcher) run() {
	w.runs++
	scenario, err := harness.LoadScenario(w.file)
	if err != nil {
		_ = w.formatter.Error(ErrCodeInvalidScenario, err.Error(), map[string]string{"file": w.file})
		return
	}

	if scenario.InitialFile != "" {
		if err := w.track(filepath.Clean(scenario.InitialPath())); err != nil {
			w.logger.Warn("cannot watch initial_file", "path", scenario.InitialPath(), "error", err)
		}
	}

	result, err := harness.Run(scenario, w.runOpts...)
	if err != nil {
		_ = w.formatter.Error(ErrCodeExecution, err.Error(), map[string]string{"file": w.file})
		return
	}

	if w.formatter.IsJSON() {
		// One compact response per run, so the stream is line-delimited JSON.
		_ = w.formatter.Success(RunOutput{Scenario: scenario.Name, Result: result})
		return
	}
	fmt.Fprintf(w.formatter.Writer, "--- run %d ---\n", w.runs)
	writeRunText(w.formatter.Writer, scenario.Name, result)
}

// serveMetrics serves reg at /metrics on addr. It returns the bound
// address and a function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	bound := ln.Addr().String()
	logger.Info("serving metrics", "addr", bound)

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("error stopping metrics server", "error", err)
		}
	}, nil
}
