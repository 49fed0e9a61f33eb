package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

func node(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	return &n
}

func count(n int) *int { return &n }

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalState,
		Expected: `{"a":1}`,
		Actual:   `{"a":2}`,
		Trace: []TraceEvent{
			{Type: EventCommit, Seq: 1, Action: "inc", State: value.Object{"a": value.Int(2)}},
			{Type: EventNotify, Seq: 1, Action: "inc", Subscriber: "a", View: value.Int(2)},
		},
	}

	want := "Assertion failed: final_state\n" +
		"  Expected: {\"a\":1}\n" +
		"  Actual: {\"a\":2}\n" +
		"\nCommits:\n" +
		"  [1] inc -> {\"a\":2}\n"
	assert.Equal(t, want, err.Error())
}

func TestEvaluateAssertions(t *testing.T) {
	s, err := store.New(value.Object{"a": value.Object{"b": value.Int(3)}},
		store.WithRegistry(registry.New()))
	require.NoError(t, err)

	r := NewResult()
	r.State = s.State()
	r.addCommit(1, "set", nil, s.State())
	r.addNotify("sub", 1, "set", value.Int(3))
	r.frames = 2
	r.Stringified = `{"0":{"a":{"b":3}}}`

	passing := []Assertion{
		{Type: AssertFinalState, Expect: node(t, "{a: {b: 3}}")},
		{Type: AssertNotifyCount, Subscriber: "sub", Count: count(1)},
		{Type: AssertView, Subscriber: "sub", Expect: node(t, "3")},
		{Type: AssertView, Path: "a.b", Expect: node(t, "3")},
		{Type: AssertActions, Expect: node(t, "[set]")},
		{Type: AssertDevtoolsFrames, Count: count(2)},
		{Type: AssertStringify, Expect: node(t, `'{"0":{"a":{"b":3}}}'`)},
	}
	assert.Empty(t, EvaluateAssertions(r, passing, s))

	failing := []Assertion{
		{Type: AssertNotifyCount, Subscriber: "sub", Count: count(2)},
		{Type: AssertView, Path: "a.c", Expect: node(t, "3")},
		{Type: AssertDevtoolsFrames, Count: count(1)},
		{Type: AssertStringify, Expect: node(t, "'{}'")},
	}
	failures := EvaluateAssertions(r, failing, s)
	require.Len(t, failures, 4)
	assert.Contains(t, failures[0], "sub notified 2 times")
	assert.Contains(t, failures[1], "view at a.c = undefined")
	assert.Contains(t, failures[2], "assertions[2]: Assertion failed: devtools_frames")
	assert.Contains(t, failures[3], "Actual: {\"0\":{\"a\":{\"b\":3}}}")
}
