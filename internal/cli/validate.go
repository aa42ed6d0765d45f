package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shadow/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenarios without running them",
		Long: `Parse and validate scenario files without executing any step.

Checks YAML syntax, unknown fields, step and observer definitions, and
that initial_file references exist. Faster than run for editing feedback.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, out, errOut io.Writer) error {
	formatter := newFormatter(opts, out, errOut)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	invalid, missing := 0, 0
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		v := validateFile(file)
		if !v.Valid {
			result.Valid = false
			invalid++
			if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
				missing++
			}
		}
		result.Files = append(result.Files, v)
	}

	if formatter.IsJSON() {
		var cliErr *CLIError
		if invalid > 0 {
			cliErr = &CLIError{Code: ErrCodeInvalidScenario, Message: fmt.Sprintf("%d of %d scenario(s) invalid", invalid, len(files))}
		}
		if err := formatter.Report(result, cliErr); err != nil {
			return err
		}
	} else {
		for _, v := range result.Files {
			if v.Valid {
				fmt.Fprintf(out, "✓ %s (%s)\n", v.File, v.Name)
				continue
			}
			fmt.Fprintf(out, "✗ %s\n", v.File)
			fmt.Fprintf(out, "  %s\n", v.Error)
		}
		if invalid == 0 {
			fmt.Fprintln(out, "✓ All scenarios valid")
		}
	}

	switch {
	case missing > 0:
		return NewExitError(ExitCommandError, fmt.Sprintf("%d scenario file(s) not found", missing))
	case invalid > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", invalid))
	}
	return nil
}

func validateFile(file string) FileValidation {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return FileValidation{File: file, Error: err.Error()}
	}
	return FileValidation{File: file, Name: scenario.Name, Valid: true}
}
