package harness

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/IniZio/reim/internal/store"
)

// Scenario describes one store, its actions and subscribers, a sequence
// of steps and the assertions checked after the last step.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Store StoreConfig `yaml:"store,omitempty"`

	// Initial is the inline initial state. InitialFile loads it from a
	// JSON, YAML or CUE document relative to the scenario file instead.
	Initial     *yaml.Node `yaml:"initial,omitempty"`
	InitialFile string     `yaml:"initial_file,omitempty"`
	InitialPath string     `yaml:"initial_path,omitempty"`

	Actions     map[string]ActionDef `yaml:"actions,omitempty"`
	Subscribers []SubscriberDef      `yaml:"subscribers,omitempty"`
	Steps       []Step               `yaml:"steps"`
	Assertions  []Assertion          `yaml:"assertions"`

	dir string
}

// StoreConfig holds store construction options.
type StoreConfig struct {
	Name            string `yaml:"name,omitempty"`
	Reentrancy      string `yaml:"reentrancy,omitempty"`
	IsolateHandlers bool   `yaml:"isolate_handlers,omitempty"`
}

// ActionDef declares a bound action. See the package documentation for
// how the fields combine.
type ActionDef struct {
	Merge   *yaml.Node           `yaml:"merge,omitempty"`
	Replace *yaml.Node           `yaml:"replace,omitempty"`
	Set     map[string]yaml.Node `yaml:"set,omitempty"`
	Add     map[string]yaml.Node `yaml:"add,omitempty"`
	Delete  []string             `yaml:"delete,omitempty"`
	Thunk   *ActionDef           `yaml:"thunk,omitempty"`
}

// SubscriberDef declares a recording subscriber. At most one of Key,
// Path and Select may be set; none selects the whole state.
type SubscriberDef struct {
	Name      string            `yaml:"name"`
	Key       string            `yaml:"key,omitempty"`
	Path      string            `yaml:"path,omitempty"`
	Select    map[string]string `yaml:"select,omitempty"`
	Immediate bool              `yaml:"immediate,omitempty"`
	React     *Reaction         `yaml:"react,omitempty"`
}

// Reaction dispatches an action from inside the subscriber whenever the
// delivered view equals When.
type Reaction struct {
	When     *yaml.Node  `yaml:"when"`
	Dispatch string      `yaml:"dispatch"`
	Args     []yaml.Node `yaml:"args,omitempty"`
}

// Step is one operation on the store. Exactly one operation field must
// be set.
type Step struct {
	Dispatch string      `yaml:"dispatch,omitempty"`
	Args     []yaml.Node `yaml:"args,omitempty"`

	Set     *yaml.Node `yaml:"set,omitempty"`
	Replace *yaml.Node `yaml:"replace,omitempty"`

	Reset bool       `yaml:"reset,omitempty"`
	Value *yaml.Node `yaml:"value,omitempty"`

	Jump   *yaml.Node `yaml:"jump,omitempty"`
	JumpTo int64      `yaml:"jump_to,omitempty"`

	Unsubscribe string `yaml:"unsubscribe,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Subscriber names the subscriber (notify_count, view).
	Subscriber string `yaml:"subscriber,omitempty"`

	// Path selects a nested view of the final state (view without
	// subscriber).
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value (final_state, view, actions, stringify).
	Expect *yaml.Node `yaml:"expect,omitempty"`

	// Count is the expected count (notify_count, devtools_frames).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState     = "final_state"
	AssertNotifyCount    = "notify_count"
	AssertView           = "view"
	AssertActions        = "actions"
	AssertDevtoolsFrames = "devtools_frames"
	AssertStringify      = "stringify"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected. initial_file is resolved relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. dir is the base for relative
// initial_file paths.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	sc.dir = dir

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return &sc, nil
}

// ErrInvalidScenario is wrapped by ParseScenario when a scenario parses
// but fails validation.
var ErrInvalidScenario = errors.New("invalid scenario")

var argRef = regexp.MustCompile(`^\$(\d+)$`)

func validateScenario(sc *Scenario) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if sc.Name == "" {
		add("name is required")
	}
	if sc.Initial != nil && sc.InitialFile != "" {
		add("initial and initial_file are mutually exclusive")
	}
	if sc.InitialPath != "" && sc.InitialFile == "" {
		add("initial_path requires initial_file")
	}
	if sc.Store.Reentrancy != "" {
		if _, err := store.ParseReentrancy(sc.Store.Reentrancy); err != nil {
			add("store: %v", err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(sc.Actions)) {
		if err := validateAction(sc.Actions[name]); err != nil {
			add("actions[%s]: %v", name, err)
		}
	}

	seen := make(map[string]bool)
	for i, sub := range sc.Subscribers {
		switch {
		case sub.Name == "":
			add("subscribers[%d]: name is required", i)
		case seen[sub.Name]:
			add("subscribers[%d]: duplicate name %q", i, sub.Name)
		}
		seen[sub.Name] = true

		filters := 0
		for _, set := range []bool{sub.Key != "", sub.Path != "", len(sub.Select) > 0} {
			if set {
				filters++
			}
		}
		if filters > 1 {
			add("subscribers[%d]: key, path and select are mutually exclusive", i)
		}
		if r := sub.React; r != nil {
			if r.When == nil {
				add("subscribers[%d]: react.when is required", i)
			}
			if _, ok := sc.Actions[r.Dispatch]; !ok {
				add("subscribers[%d]: react dispatches unknown action %q", i, r.Dispatch)
			}
		}
	}

	if len(sc.Steps) == 0 {
		add("at least one step is required")
	}
	for i, step := range sc.Steps {
		if err := validateStep(sc, step); err != nil {
			add("steps[%d]: %v", i, err)
		}
	}

	for i, a := range sc.Assertions {
		if err := validateAssertion(sc, a); err != nil {
			add("assertions[%d]: %v", i, err)
		}
	}

	return errors.Join(errs...)
}

func validateAction(def ActionDef) error {
	ops := len(def.Set) + len(def.Add) + len(def.Delete)
	if def.Merge == nil && def.Replace == nil && ops == 0 && def.Thunk == nil {
		return errors.New("action is empty")
	}
	if def.Merge != nil && def.Merge.Kind != yaml.MappingNode {
		return errors.New("merge must be a mapping")
	}
	if def.Merge != nil && def.Replace != nil {
		return errors.New("merge and replace are mutually exclusive")
	}
	if def.Thunk != nil {
		return validateAction(*def.Thunk)
	}
	return nil
}

func validateStep(sc *Scenario, step Step) error {
	ops := 0
	for _, set := range []bool{
		step.Dispatch != "",
		step.Set != nil,
		step.Replace != nil,
		step.Reset,
		step.Jump != nil,
		step.JumpTo != 0,
		step.Unsubscribe != "",
	} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("exactly one operation is required, got %d", ops)
	}

	switch {
	case step.Dispatch != "":
		if _, ok := sc.Actions[step.Dispatch]; !ok {
			return fmt.Errorf("unknown action %q", step.Dispatch)
		}
	case step.Set != nil:
		if step.Set.Kind != yaml.MappingNode {
			return errors.New("set must be a mapping")
		}
	case step.Unsubscribe != "":
		for _, sub := range sc.Subscribers {
			if sub.Name == step.Unsubscribe {
				return nil
			}
		}
		return fmt.Errorf("unknown subscriber %q", step.Unsubscribe)
	}
	if step.Value != nil && !step.Reset {
		return errors.New("value is only valid with reset")
	}
	if len(step.Args) > 0 && step.Dispatch == "" {
		return errors.New("args are only valid with dispatch")
	}
	return nil
}

func validateAssertion(sc *Scenario, a Assertion) error {
	hasSubscriber := func() error {
		for _, sub := range sc.Subscribers {
			if sub.Name == a.Subscriber {
				return nil
			}
		}
		return fmt.Errorf("unknown subscriber %q", a.Subscriber)
	}

	switch a.Type {
	case AssertFinalState, AssertActions, AssertStringify:
		if a.Expect == nil {
			return fmt.Errorf("expect is required for %s", a.Type)
		}
	case AssertNotifyCount:
		if a.Count == nil || *a.Count < 0 {
			return errors.New("a non-negative count is required for notify_count")
		}
		return hasSubscriber()
	case AssertView:
		if a.Expect == nil {
			return errors.New("expect is required for view")
		}
		if a.Subscriber != "" {
			return hasSubscriber()
		}
	case AssertDevtoolsFrames:
		if a.Count == nil || *a.Count < 0 {
			return errors.New("a non-negative count is required for devtools_frames")
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
