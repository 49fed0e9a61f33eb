package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/IniZio/reim/internal/loader"
	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Path        string // dotted path selecting part of the document
	InputFormat string // json | yaml | cue, default from extension
	Stringify   bool   // print the registry snapshot instead
	Output      string // output file path
}

// StateResult is the JSON payload of the state command.
type StateResult struct {
	Kind      string          `json:"kind"`
	Hash      string          `json:"hash"`
	State     json.RawMessage `json:"state"`
	Snapshot  string          `json:"snapshot,omitempty"`
	WrittenTo string          `json:"written_to,omitempty"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <file>",
		Short: "Print a state document as canonical JSON",
		Long: `Load a JSON, YAML or CUE state document and print it as canonical JSON
with its content hash.

With --stringify the document is loaded into a store and the registry
snapshot is printed instead, in the form a server embeds for hydration.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "dotted path selecting part of the document")
	cmd.Flags().StringVar(&opts.InputFormat, "input-format", "", "document format (json|yaml|cue), default from extension")
	cmd.Flags().BoolVar(&opts.Stringify, "stringify", false, "print the registry snapshot")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runState(opts *StateOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var format loader.Format
	if opts.InputFormat != "" {
		f, err := loader.ParseFormat(opts.InputFormat)
		if err != nil {
			return formatter.fail(ErrCodeGeneric, fmt.Sprintf("invalid input format %q", opts.InputFormat), err)
		}
		format = f
	}

	v, err := loader.Load(file, loader.Options{Format: format, Path: opts.Path})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.fail(ErrCodeNotFound, fmt.Sprintf("state document not found: %s", file), err)
		}
		return formatter.fail(ErrCodeParseFailed, fmt.Sprintf("failed to load %s", file), err)
	}
	formatter.VerboseLog("Loaded %s (%s)", file, value.Kind(v))

	data, err := value.MarshalCanonical(v)
	if err != nil {
		return formatter.fail(ErrCodeGeneric, "failed to encode state", err)
	}
	hash, err := value.Hash(v)
	if err != nil {
		return formatter.fail(ErrCodeGeneric, "failed to hash state", err)
	}

	result := StateResult{Kind: value.Kind(v), Hash: hash, State: data}

	out := data
	if opts.Stringify {
		snapshot, err := snapshotOf(v, opts)
		if err != nil {
			return formatter.fail(ErrCodeGeneric, "failed to build snapshot", err)
		}
		result.Snapshot = snapshot
		out = []byte(snapshot)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
			return formatter.fail(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), err)
		}
		result.WrittenTo = opts.Output
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote %s to %s\n", result.Kind, opts.Output)
	} else {
		fmt.Fprintln(formatter.Writer, string(out))
	}
	if !opts.Stringify {
		fmt.Fprintln(formatter.Writer, hash)
	}
	return nil
}

// snapshotOf commits v through a store on a private registry and returns
// the registry's serialized snapshot.
func snapshotOf(v value.Value, opts *StateOptions) (string, error) {
	reg := registry.New()
	defer reg.Close()

	if _, err := store.New(v, store.WithRegistry(reg), store.WithLogger(opts.logger())); err != nil {
		return "", err
	}
	return reg.Stringify()
}
