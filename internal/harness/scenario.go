package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shadow/internal/tree"
)

// Scenario describes one harness run: an initial tree, a set of named
// observers, a sequence of steps applied through the engine, and the
// deliveries and final state they are expected to produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name" validate:"required,excludesall=/\\ "`

	// Description explains what this scenario validates.
	Description string `yaml:"description" validate:"required"`

	// Initial is the starting tree, inline. Exactly one of Initial and
	// InitialFile must be set, and it must be a map or a list.
	Initial any `yaml:"initial,omitempty"`

	// InitialFile loads the starting tree from a .json, .yaml or .cue file.
	// Relative paths resolve against the scenario file's directory.
	InitialFile string `yaml:"initial_file,omitempty"`

	// Observers are registered in order before the first step.
	Observers []ObserverSpec `yaml:"observers,omitempty" validate:"dive"`

	// Steps are executed in order. Flushes only happen on turn, flush and
	// drain steps, and when the loop is drained after the last step.
	Steps []Step `yaml:"steps" validate:"required,min=1,dive"`

	// Expect holds the assertions. A scenario without Expect only records.
	Expect *Expect `yaml:"expect,omitempty"`

	// MaxTurns bounds the final drain. Zero uses the scheduler default.
	MaxTurns int `yaml:"max_turns,omitempty" validate:"gte=0"`

	dir string
}

// ObserverSpec declares a recording observer.
//
// At most one of Path, PathPrefix and PathsOf may be set. Types restricts
// delivery to the listed record types. Fail makes every delivery return
// an error with that message.
type ObserverSpec struct {
	Name       string   `yaml:"name" validate:"required"`
	Path       *string  `yaml:"path,omitempty"`
	PathPrefix *string  `yaml:"path_prefix,omitempty"`
	PathsOf    *string  `yaml:"paths_of,omitempty"`
	Types      []string `yaml:"types,omitempty" validate:"dive,oneof=insert update delete reverse shuffle"`
	Fail       string   `yaml:"fail,omitempty"`
}

// Step is one operation applied to the observed tree.
type Step struct {
	// Op selects the operation; see the Op constants.
	Op string `yaml:"op" validate:"required,oneof=set delete push pop shift unshift splice reverse sort rotate clear turn flush drain unobserve revoke"`

	// Path is the slot for set and delete, and the list for list ops.
	Path string `yaml:"path,omitempty"`

	// Value is the value written by set.
	Value any `yaml:"value,omitempty"`

	// Items are the values added by push, unshift and splice.
	Items []any `yaml:"items,omitempty"`

	// Start and Count drive splice. A missing Count removes everything
	// from Start to the end.
	Start int  `yaml:"start,omitempty"`
	Count *int `yaml:"count,omitempty" validate:"omitempty,gte=0"`

	// K is the rotate distance.
	K int `yaml:"k,omitempty"`

	// Desc sorts in descending order.
	Desc bool `yaml:"desc,omitempty"`

	// Observer names the observer to unobserve. Empty removes all.
	Observer string `yaml:"observer,omitempty"`

	// Error is the error kind the step is expected to fail with.
	Error string `yaml:"error,omitempty" validate:"omitempty,oneof=invalid_argument revoked_access"`
}

// Step operations.
const (
	OpSet       = "set"
	OpDelete    = "delete"
	OpPush      = "push"
	OpPop       = "pop"
	OpShift     = "shift"
	OpUnshift   = "unshift"
	OpSplice    = "splice"
	OpReverse   = "reverse"
	OpSort      = "sort"
	OpRotate    = "rotate"
	OpClear     = "clear"
	OpTurn      = "turn"
	OpFlush     = "flush"
	OpDrain     = "drain"
	OpUnobserve = "unobserve"
	OpRevoke    = "revoke"
)

// Expected step error kinds.
const (
	ErrorInvalidArgument = "invalid_argument"
	ErrorRevokedAccess   = "revoked_access"
)

// Expect holds the scenario's assertions. Unset fields are not checked.
type Expect struct {
	// Flushes is the number of non-empty flushes.
	Flushes *int `yaml:"flushes,omitempty" validate:"omitempty,gte=0"`

	// ObserverErrors is the number of failed deliveries.
	ObserverErrors *int `yaml:"observer_errors,omitempty" validate:"omitempty,gte=0"`

	// Deliveries are checked individually; deliveries not listed are
	// not checked.
	Deliveries []DeliveryExpect `yaml:"deliveries,omitempty" validate:"dive"`

	// Final is compared against the tree after the last flush.
	Final any `yaml:"final,omitempty"`
}

// DeliveryExpect matches the batch one observer received in one flush.
// Records must match in number and order; each record only checks the
// fields it sets.
type DeliveryExpect struct {
	Observer string         `yaml:"observer" validate:"required"`
	Flush    int            `yaml:"flush" validate:"required,gte=1"`
	Records  []RecordExpect `yaml:"records" validate:"dive"`
}

// RecordExpect is a partial change record. Value and OldValue are kept
// as YAML nodes so an explicit null can be told apart from an omitted
// field.
type RecordExpect struct {
	Type     string    `yaml:"type" validate:"required,oneof=insert update delete reverse shuffle"`
	Path     *string   `yaml:"path,omitempty"`
	Value    yaml.Node `yaml:"value,omitempty" validate:"-"`
	OldValue yaml.Node `yaml:"old_value,omitempty" validate:"-"`
}

var scenarioValidate = newScenarioValidator()

func newScenarioValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return decodeScenario(data, filepath.Dir(path))
}

// ParseScenario parses a scenario from YAML. A relative initial_file is
// resolved against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	return decodeScenario(data, "")
}

func decodeScenario(data []byte, dir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = dir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks a scenario built in Go rather than loaded from YAML.
func (s *Scenario) Validate() error {
	if err := validateScenario(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	return nil
}

// InitialPath returns the resolved initial_file path, or "".
func (s *Scenario) InitialPath() string {
	if s.InitialFile == "" || filepath.IsAbs(s.InitialFile) {
		return s.InitialFile
	}
	return filepath.Join(s.dir, s.InitialFile)
}

// initialTree builds a fresh copy of the starting tree.
func (s *Scenario) initialTree() (tree.Container, error) {
	var (
		v   tree.Value
		err error
	)
	if s.InitialFile != "" {
		v, err = tree.LoadFile(s.InitialPath())
	} else {
		v, err = tree.FromAny(s.Initial)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build initial tree: %w", err)
	}

	c, ok := tree.Clone(v).(tree.Container)
	if !ok {
		return nil, fmt.Errorf("initial tree must be a map or a list, got %s", v.Kind())
	}
	return c, nil
}

// validateScenario checks struct tags first, then the rules that span
// fields.
func validateScenario(s *Scenario) error {
	if err := scenarioValidate.Struct(s); err != nil {
		return describeValidation(err)
	}

	switch {
	case s.Initial == nil && s.InitialFile == "":
		return fmt.Errorf("one of initial or initial_file is required")
	case s.Initial != nil && s.InitialFile != "":
		return fmt.Errorf("initial and initial_file are mutually exclusive")
	}
	if s.InitialFile != "" {
		if _, err := os.Stat(s.InitialPath()); err != nil {
			return fmt.Errorf("initial_file not found: %s", s.InitialPath())
		}
	}

	names := make(map[string]bool, len(s.Observers))
	for i, o := range s.Observers {
		if names[o.Name] {
			return fmt.Errorf("observers[%d]: duplicate name %q", i, o.Name)
		}
		names[o.Name] = true

		set := 0
		for _, p := range []*string{o.Path, o.PathPrefix, o.PathsOf} {
			if p != nil {
				set++
			}
		}
		if set > 1 {
			return fmt.Errorf("observers[%d]: path, path_prefix and paths_of are mutually exclusive", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step, names); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if s.Expect != nil {
		for i, d := range s.Expect.Deliveries {
			if !names[d.Observer] {
				return fmt.Errorf("expect.deliveries[%d]: unknown observer %q", i, d.Observer)
			}
		}
	}
	return nil
}

// validateStep checks the fields each operation needs.
func validateStep(step Step, observers map[string]bool) error {
	switch step.Op {
	case OpSet, OpDelete:
		if step.Path == "" {
			return fmt.Errorf("%s: path is required", step.Op)
		}
	case OpPush, OpUnshift:
		if len(step.Items) == 0 {
			return fmt.Errorf("%s: items is required", step.Op)
		}
	case OpUnobserve:
		if step.Observer != "" && !observers[step.Observer] {
			return fmt.Errorf("unobserve: unknown observer %q", step.Observer)
		}
	}
	return nil
}

// describeValidation turns the first validator failure into a message
// that names the YAML field.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]

	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "min":
		return fmt.Errorf("%s must have at least %s entries", field, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Errorf("%s: %v is not one of [%s]", field, fe.Value(), fe.Param())
	case "excludesall":
		return fmt.Errorf("%s must not contain path separators or spaces", field)
	default:
		return fmt.Errorf("%s failed %q validation", field, fe.Tag())
	}
}
