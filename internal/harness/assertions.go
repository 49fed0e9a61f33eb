package harness

import (
	"fmt"
	"strings"

	"github.com/IniZio/reim/internal/loader"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nCommits:\n")
		for _, event := range e.Trace {
			if event.Type == EventCommit {
				fmt.Fprintf(&buf, "  [%d] %s -> %s\n", event.Seq, event.Action, render(event.State))
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. s is the store the scenario ran against.
func EvaluateAssertions(r *Result, assertions []Assertion, s *store.Store) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(r, a, s); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(r *Result, a Assertion, s *store.Store) error {
	switch a.Type {
	case AssertFinalState:
		return assertFinalState(r, a)
	case AssertNotifyCount:
		return assertNotifyCount(r, a)
	case AssertView:
		return assertView(r, a, s)
	case AssertActions:
		return assertActions(r, a)
	case AssertDevtoolsFrames:
		return assertCount(r, a, AssertDevtoolsFrames, r.frames)
	case AssertStringify:
		return assertStringify(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFinalState(r *Result, a Assertion) error {
	want, err := loader.FromYAML(a.Expect)
	if err != nil {
		return err
	}
	if !value.Equal(want, r.State) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: render(want),
			Actual:   render(r.State),
			Trace:    r.Trace,
		}
	}
	return nil
}

func assertNotifyCount(r *Result, a Assertion) error {
	got := r.NotifyCount(a.Subscriber)
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertNotifyCount,
			Expected: fmt.Sprintf("%s notified %d times", a.Subscriber, *a.Count),
			Actual:   fmt.Sprintf("%d notifications", got),
			Trace:    r.Trace,
		}
	}
	return nil
}

// assertView compares the last view a subscriber received, or the view a
// path selects from the final state when no subscriber is named.
func assertView(r *Result, a Assertion, s *store.Store) error {
	want, err := loader.FromYAML(a.Expect)
	if err != nil {
		return err
	}

	var (
		got  value.Value
		what string
	)
	if a.Subscriber != "" {
		v, ok := r.LastView(a.Subscriber)
		if !ok {
			return &AssertionError{
				Type:     AssertView,
				Expected: render(want),
				Actual:   fmt.Sprintf("%s was never notified", a.Subscriber),
				Trace:    r.Trace,
			}
		}
		got, what = v, "last view of "+a.Subscriber
	} else {
		got, what = s.Filter(store.Path(a.Path)), "view at "+a.Path
	}

	if !value.Equal(want, got) {
		return &AssertionError{
			Type:     AssertView,
			Expected: render(want),
			Actual:   fmt.Sprintf("%s = %s", what, render(got)),
			Trace:    r.Trace,
		}
	}
	return nil
}

func assertActions(r *Result, a Assertion) error {
	want, err := loader.FromYAML(a.Expect)
	if err != nil {
		return err
	}

	got := make(value.Array, len(r.actions))
	for i, action := range r.actions {
		got[i] = value.String(action)
	}
	if !value.Equal(want, got) {
		return &AssertionError{
			Type:     AssertActions,
			Expected: render(want),
			Actual:   render(got),
		}
	}
	return nil
}

func assertCount(r *Result, a Assertion, kind string, got int) error {
	if got != *a.Count {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", *a.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func assertStringify(r *Result, a Assertion) error {
	v, err := loader.FromYAML(a.Expect)
	if err != nil {
		return err
	}
	want, ok := v.(value.String)
	if !ok {
		return fmt.Errorf("stringify expects a string, got %s", value.Kind(v))
	}
	if string(want) != r.Stringified {
		return &AssertionError{
			Type:     AssertStringify,
			Expected: string(want),
			Actual:   r.Stringified,
		}
	}
	return nil
}

// render formats a value as canonical JSON for messages.
func render(v value.Value) string {
	if v == nil {
		return "undefined"
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
