package loader

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/IniZio/reim/internal/value"
)

// parseCUE compiles a single CUE file and exports the selected member as
// a concrete value. Definitions and hidden fields are not exported.
func parseCUE(data []byte, source, path string) (value.Value, error) {
	ctx := cuecontext.New()

	name := source
	if name == "" {
		name = "state.cue"
	}
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, err
	}

	if path != "" {
		v = v.LookupPath(cue.ParsePath(path))
		if !v.Exists() {
			return nil, fmt.Errorf("path %q: member not found", path)
		}
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("state must be concrete: %w", err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return value.Unmarshal(data)
}
