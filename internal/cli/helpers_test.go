package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

const bumpScenario = `name: bump
initial: {n: 0}
actions:
  inc:
    add: {n: 1}
steps:
  - dispatch: inc
  - dispatch: inc
assertions:
  - type: final_state
    expect: {n: 2}
`

const brokenBumpScenario = `name: broken_bump
initial: {n: 0}
actions:
  inc:
    add: {n: 1}
steps:
  - dispatch: inc
assertions:
  - type: final_state
    expect: {n: 3}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse decodes a CLIResponse whose data is of type T.
func decodeResponse[T any](t *testing.T, out string) (T, CLIResponse) {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)

	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return data, CLIResponse{Status: raw.Status, Error: raw.Error}
}
