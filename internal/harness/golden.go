package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/IniZio/reim/internal/value"
)

// TraceSnapshot captures the trace of one scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        value.Value
}

// toCanonicalMap converts the snapshot to plain maps for canonical JSON.
// Absent fields are omitted so goldens only show what happened.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		if event.Action != "" {
			m["action"] = event.Action
		}
		if event.Subscriber != "" {
			m["subscriber"] = event.Subscriber
		}
		if event.Payload != nil {
			m["payload"] = event.Payload
		}
		if event.State != nil {
			m["state"] = event.State
		}
		if event.View != nil {
			m["view"] = event.View
		}
		trace[i] = m
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.State != nil {
		out["final_state"] = s.State
	}
	return out
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return value.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), sc)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, sc.Name, result)
}

// AssertGolden compares an existing result's trace against its golden
// file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
