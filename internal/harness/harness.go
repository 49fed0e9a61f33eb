package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/journal"
	"github.com/IniZio/reim/internal/loader"
	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/testutil"
	"github.com/IniZio/reim/internal/value"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	registry *registry.Registry
	journal  *journal.Journal
	pipe     *devtools.Pipe
	clock    *testutil.SeqClock
	logger   *slog.Logger
	mirror   devtools.Connector
	hold     func(ctx context.Context) error
	extra    []store.Option
	result   *Result
	subs     map[string]*store.Subscription
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes store and journal logs. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithStoreOptions adds store options applied before the scenario's own
// store settings, so a scenario that pins reentrancy or handler isolation
// still wins.
func WithStoreOptions(opts ...store.Option) Option {
	return func(h *Harness) {
		h.extra = append(h.extra, opts...)
	}
}

// WithMirror also connects the store to c, typically a WebSocket client,
// so a live debugger can follow the run. Jump steps still go through the
// in-memory pipe. Commands c has buffered are delivered after every step.
func WithMirror(c devtools.Connector) Option {
	return func(h *Harness) {
		h.mirror = c
	}
}

// commandSource buffers inbound debugger commands until polled, as
// devtools.Client does.
type commandSource interface {
	Poll() int
}

// WithHold calls fn after the last step while the store is still
// connected, before assertions are evaluated. A mirror that buffers
// commands delivers them only while fn waits for them.
func WithHold(fn func(ctx context.Context) error) Option {
	return func(h *Harness) {
		h.hold = fn
	}
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh registry, in-memory journal and debugger pipe.
// Step failures and failed assertions are reported in the result; an
// error is returned only when the store cannot be set up.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: sc,
		registry: registry.New(),
		pipe:     devtools.NewPipe(),
		clock:    testutil.NewSeqClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
		subs:     make(map[string]*store.Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}

	j, err := journal.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()
	h.journal = j

	if err := h.setup(ctx); err != nil {
		return nil, err
	}

	for i, step := range sc.Steps {
		if err := h.execute(step); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
		h.pollMirror()
	}

	if h.hold != nil {
		if err := h.hold(ctx); err != nil {
			h.result.AddError(fmt.Sprintf("hold: %v", err))
		}
		h.pollMirror()
	}

	h.result.State = h.store.State()
	h.result.frames = len(h.pipe.Frames())
	if h.result.Stringified, err = h.registry.Stringify(); err != nil {
		h.result.AddError(fmt.Sprintf("stringify: %v", err))
	}

	for _, msg := range EvaluateAssertions(h.result, sc.Assertions, h.store) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) pollMirror() {
	src, ok := h.mirror.(commandSource)
	if !ok {
		return
	}
	if n := src.Poll(); n > 0 {
		h.logger.Debug("debugger commands delivered", "count", n)
	}
}

func (h *Harness) setup(ctx context.Context) error {
	sc := h.scenario

	initial, err := h.initialState()
	if err != nil {
		return err
	}

	actions := make(store.ActionMap, len(sc.Actions))
	for _, name := range sortedKeys(sc.Actions) {
		c, err := compileAction(sc.Actions[name])
		if err != nil {
			return fmt.Errorf("actions[%s]: %w", name, err)
		}
		actions[name] = c.bind(h.fail)
	}

	opts := []store.Option{
		store.WithName(sc.Store.Name),
		store.WithRegistry(h.registry),
		store.WithActions(actions),
		store.WithLogger(h.logger),
	}
	opts = append(opts, h.extra...)

	if sc.Store.Reentrancy != "" {
		policy, err := store.ParseReentrancy(sc.Store.Reentrancy)
		if err != nil {
			return err
		}
		opts = append(opts, store.WithReentrancy(policy))
	}
	if sc.Store.IsolateHandlers {
		opts = append(opts, store.WithHandlerIsolation(true))
	}

	var connector devtools.Connector = h.pipe
	if h.mirror != nil {
		connector = devtools.Tee(h.pipe, h.mirror)
	}

	opts = append(opts,
		store.WithClock(h.clock),
		store.WithIDGenerator(testutil.NewIDs("instance")),
		store.WithDevtools(connector),
		store.WithCommitHook(h.journal.Hook(ctx, h.logger)),
		store.WithCommitHook(func(tr store.Transition) {
			h.result.addCommit(tr.Seq, tr.Action, tr.Payload, tr.State)
		}),
		store.WithHistory(h.journal.Resolver(ctx)),
	)

	h.store, err = store.New(initial, opts...)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	for _, def := range sc.Subscribers {
		if err := h.subscribe(def); err != nil {
			return fmt.Errorf("subscriber %s: %w", def.Name, err)
		}
	}
	return nil
}

func (h *Harness) initialState() (value.Value, error) {
	sc := h.scenario
	if sc.InitialFile == "" {
		if sc.Initial == nil {
			return nil, nil
		}
		return loader.FromYAML(sc.Initial)
	}

	path := sc.InitialFile
	if !filepath.IsAbs(path) && sc.dir != "" {
		path = filepath.Join(sc.dir, path)
	}
	v, err := loader.Load(path, loader.Options{Path: sc.InitialPath})
	if err != nil {
		return nil, fmt.Errorf("initial_file: %w", err)
	}
	return v, nil
}

func (h *Harness) subscribe(def SubscriberDef) error {
	var filter store.Filter
	switch {
	case def.Key != "":
		filter = store.Key(def.Key)
	case def.Path != "":
		filter = store.Path(def.Path)
	case len(def.Select) > 0:
		m := make(store.SelectorMap, len(def.Select))
		for out, path := range def.Select {
			f := store.Path(path)
			m[out] = func(state value.Value) value.Value {
				return store.Resolve(state, f)
			}
		}
		filter = m
	}

	var (
		when value.Value
		args []any
		err  error
	)
	if r := def.React; r != nil {
		if when, err = loader.FromYAML(r.When); err != nil {
			return fmt.Errorf("react.when: %w", err)
		}
		if args, err = nodeArgs(r.Args); err != nil {
			return fmt.Errorf("react.args: %w", err)
		}
	}

	name := def.Name
	obs := store.Func(func(view value.Value, meta store.Meta) {
		h.result.addNotify(name, meta.Seq, meta.Action, view)

		if def.React != nil && value.Equal(view, when) {
			if err := h.store.Dispatch(def.React.Dispatch, args...); err != nil {
				h.fail(fmt.Errorf("subscriber %s: %w", name, err))
			}
		}
	})

	opts := []store.SubscribeOption{store.WithFilter(filter)}
	if def.Immediate {
		opts = append(opts, store.Immediate())
	}
	h.subs[name] = h.store.Subscribe(obs, opts...)
	return nil
}

func (h *Harness) execute(step Step) error {
	switch {
	case step.Dispatch != "":
		args, err := nodeArgs(step.Args)
		if err != nil {
			return err
		}
		return h.store.Dispatch(step.Dispatch, args...)

	case step.Set != nil:
		v, err := loader.FromYAML(step.Set)
		if err != nil {
			return err
		}
		h.store.Set(store.Patch(v.(value.Object)))

	case step.Replace != nil:
		v, err := loader.FromYAML(step.Replace)
		if err != nil {
			return err
		}
		h.store.Set(store.Replace{Value: v})

	case step.Reset:
		var next value.Value
		if step.Value != nil {
			v, err := loader.FromYAML(step.Value)
			if err != nil {
				return err
			}
			next = v
		}
		h.store.Reset(next)

	case step.Jump != nil:
		v, err := loader.FromYAML(step.Jump)
		if err != nil {
			return err
		}
		return h.pipe.Jump(h.store.InstanceID(), devtools.JumpToState, v)

	case step.JumpTo != 0:
		h.pipe.Inject(devtools.Message{
			Type:    devtools.TypeDispatch,
			ID:      h.store.InstanceID(),
			Payload: &devtools.Payload{Type: devtools.JumpToAction, ActionID: step.JumpTo},
		})

	case step.Unsubscribe != "":
		h.subs[step.Unsubscribe].Unsubscribe()
	}
	return nil
}

// fail records a failure raised inside a mutation or subscriber.
func (h *Harness) fail(err error) {
	h.result.AddError(err.Error())
}

func nodeArgs(nodes []yaml.Node) ([]any, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	args := make([]any, len(nodes))
	for i := range nodes {
		v, err := loader.FromYAML(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}
