package harness

import (
	"github.com/IniZio/reim/internal/value"
)

// Trace event types.
const (
	EventCommit = "commit"
	EventNotify = "notify"
)

// TraceEvent is one commit or one delivery to a subscriber.
type TraceEvent struct {
	Type       string      `json:"type"`
	Seq        int64       `json:"seq"`
	Action     string      `json:"action,omitempty"`
	Subscriber string      `json:"subscriber,omitempty"`
	Payload    value.Value `json:"payload,omitempty"`
	State      value.Value `json:"state,omitempty"` // commit
	View       value.Value `json:"view,omitempty"`  // notify
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held and no step failed.
	Pass bool `json:"pass"`

	// Trace lists commits and deliveries in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State is the final store state.
	State value.Value `json:"state"`

	// Stringified is the registry snapshot after the last step.
	Stringified string `json:"stringified"`

	notified map[string]int
	views    map[string]value.Value
	actions  []string
	frames   int
}

// NewResult creates a passing result with no events.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		notified: make(map[string]int),
		views:    make(map[string]value.Value),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// NotifyCount returns how many views subscriber received.
func (r *Result) NotifyCount(subscriber string) int {
	return r.notified[subscriber]
}

// LastView returns the last view subscriber received.
func (r *Result) LastView(subscriber string) (value.Value, bool) {
	v, ok := r.views[subscriber]
	return v, ok
}

func (r *Result) addCommit(seq int64, action string, payload []any, state value.Value) {
	r.actions = append(r.actions, action)
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventCommit,
		Seq:     seq,
		Action:  action,
		Payload: payloadValue(payload),
		State:   state,
	})
}

func (r *Result) addNotify(subscriber string, seq int64, action string, view value.Value) {
	r.notified[subscriber]++
	r.views[subscriber] = view
	r.Trace = append(r.Trace, TraceEvent{
		Type:       EventNotify,
		Seq:        seq,
		Action:     action,
		Subscriber: subscriber,
		View:       view,
	})
}

func payloadValue(args []any) value.Value {
	if len(args) == 0 {
		return nil
	}
	arr := make(value.Array, len(args))
	for i, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			v = value.Null{}
		}
		arr[i] = v
	}
	return arr
}
