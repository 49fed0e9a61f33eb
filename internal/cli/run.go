package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/harness"
	"github.com/IniZio/reim/internal/metrics"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Devtools string // debugger hub URL, overrides REIM_DEVTOOLS_URL
	Trace    bool   // print every trace event
	Follow   bool   // keep applying debugger commands until interrupted
	Metrics  bool   // report store metrics for the run
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Name        string               `json:"name"`
	Pass        bool                 `json:"pass"`
	Errors      []string             `json:"errors,omitempty"`
	State       json.RawMessage      `json:"state"`
	Stringified string               `json:"stringified"`
	Trace       []harness.TraceEvent `json:"trace,omitempty"`
	Metrics     []metrics.Sample     `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one store scenario",
		Long: `Run a YAML store scenario and report its final state and assertions.

With --devtools (or REIM_DEVTOOLS_URL) every frame of the run is also sent
to a live debugger hub. Add --follow to keep the store connected after
the last step so jumps issued from the debugger are applied; the run
finishes, and assertions are checked, on interrupt or when the hub
closes the connection.

Exit codes:
  0 - All assertions held
  1 - A step or assertion failed
  2 - Command error (missing file, invalid scenario, etc.)

Examples:
  reim run ./scenarios/cart.yaml
  reim run ./scenarios/cart.yaml --trace
  reim run ./scenarios/cart.yaml --metrics
  reim run ./scenarios/cart.yaml --devtools ws://127.0.0.1:8000/ --follow`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Devtools, "devtools", "", "debugger hub URL (ws:// or wss://)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print every commit and notification")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "apply debugger commands until interrupted")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report store metrics for the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	sc, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.fail(loadErrorCode(err), fmt.Sprintf("failed to load scenario %s", path), err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithStoreOptions(opts.Config.StoreOptions(nil)...),
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithStoreOptions(store.WithRecorder(metrics.New(reg))))
	}

	url := opts.Devtools
	if url == "" {
		url = opts.Config.DevtoolsURL
	}
	if url != "" {
		client, err := dialDevtools(ctx, url, opts)
		if err != nil {
			logger.Warn("devtools unavailable, running without mirror", "url", url, "error", err)
		} else {
			defer client.Close()
			runOpts = append(runOpts, harness.WithMirror(client))
			if opts.Follow {
				runOpts = append(runOpts, harness.WithHold(func(ctx context.Context) error {
					return followDevtools(ctx, client, url, logger)
				}))
			}
		}
	}
	if opts.Follow && url == "" {
		logger.Warn("--follow has no effect without --devtools or REIM_DEVTOOLS_URL")
	}

	result, err := harness.Run(ctx, sc, runOpts...)
	if err != nil {
		return formatter.fail(ErrCodeInitialState, fmt.Sprintf("failed to run scenario %s", sc.Name), err)
	}

	var samples []metrics.Sample
	if reg != nil {
		samples, err = metrics.Collect(reg)
		if err != nil {
			return formatter.fail(ErrCodeGeneric, "failed to collect metrics", err)
		}
	}

	if formatter.JSON() {
		if err := outputRunJSON(formatter, sc.Name, result, opts.Trace, samples); err != nil {
			return err
		}
	} else {
		outputRunText(formatter.Writer, sc.Name, result, opts.Trace, samples)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", sc.Name))
	}
	return nil
}

func dialDevtools(ctx context.Context, url string, opts *RunOptions) (*devtools.Client, error) {
	timeout := opts.Config.DevtoolsTimeout
	if timeout <= 0 {
		timeout = defaultDevtoolsTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return devtools.Dial(ctx, url)
}

// followDevtools applies debugger commands as they arrive. It returns nil
// on interrupt, once ctx is done, or when the hub goes away.
func followDevtools(ctx context.Context, client *devtools.Client, url string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("following devtools, interrupt to finish", "url", url)
	for {
		n, err := client.Wait(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, devtools.ErrClosed):
			logger.Info("devtools connection closed", "url", url)
			return nil
		case err != nil:
			return err
		}
		logger.Debug("devtools commands applied", "count", n)
	}
}

func outputRunJSON(formatter *OutputFormatter, name string, result *harness.Result, trace bool, samples []metrics.Sample) error {
	state, err := value.MarshalCanonical(result.State)
	if err != nil {
		return formatter.fail(ErrCodeGeneric, "failed to encode final state", err)
	}

	data := RunResult{
		Name:        name,
		Pass:        result.Pass,
		Errors:      result.Errors,
		State:       state,
		Stringified: result.Stringified,
		Metrics:     samples,
	}
	if trace {
		data.Trace = result.Trace
	}

	resp := CLIResponse{Status: "ok", Data: data}
	if !result.Pass {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("scenario %s failed", name),
		}
	}
	return formatter.Encode(resp)
}

func outputRunText(w io.Writer, name string, result *harness.Result, trace bool, samples []metrics.Sample) {
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, name)

	if trace {
		for _, event := range result.Trace {
			fmt.Fprintf(w, "  %s\n", formatEvent(event))
		}
	}

	state, err := value.MarshalCanonical(result.State)
	if err != nil {
		state = []byte(err.Error())
	}
	fmt.Fprintf(w, "  final state: %s\n", state)

	if len(samples) > 0 {
		fmt.Fprintln(w, "  metrics:")
		for _, s := range samples {
			fmt.Fprintf(w, "    %s\n", s)
		}
	}

	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func formatEvent(event harness.TraceEvent) string {
	action := event.Action
	if action == "" {
		action = "(subscribe)"
	}
	switch event.Type {
	case harness.EventCommit:
		return fmt.Sprintf("[%d] commit %s -> %s", event.Seq, action, canonical(event.State))
	default:
		return fmt.Sprintf("[%d] notify %s %s <- %s", event.Seq, event.Subscriber, canonical(event.View), action)
	}
}

func canonical(v value.Value) string {
	if v == nil {
		return "undefined"
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
