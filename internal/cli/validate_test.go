package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bump.yaml", bumpScenario)
	writeFile(t, dir, "broken.yaml", brokenBumpScenario)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Equal(t, "✓ All 2 scenario(s) valid\n", out)
}

func TestValidateValidScenariosJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bump.yaml", bumpScenario)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	data, resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, data.Valid)
	assert.Equal(t, 1, data.Files)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "bad.yaml", `name: bad
actions:
  inc:
    add: {n: 1}
steps:
  - dispatch: dec
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, file)
	assert.Contains(t, out, ErrCodeInvalidScenario+": ")
	assert.Contains(t, out, `unknown action "dec"`)
}

func TestValidateUnknownField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "typo.yaml", "name: typo\nintial: {n: 0}\nsteps:\n  - set: {n: 1}\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	data, resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, data.Valid)
	require.Len(t, data.Errors, 1)
	assert.Equal(t, ErrCodeLoadFailed, data.Errors[0].Code)
	assert.Contains(t, data.Errors[0].Message, "intial")
}

func TestValidateInitialFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stores.cue", "stores: cart: {total: 0}\n")
	writeFile(t, dir, "good.yaml", `name: good
initial_file: stores.cue
initial_path: stores.cart
steps:
  - set: {total: 1}
`)
	writeFile(t, dir, "missing_path.yaml", `name: missing_path
initial_file: stores.cue
initial_path: stores.audit
steps:
  - set: {total: 1}
`)
	writeFile(t, dir, "missing_file.yaml", `name: missing_file
initial_file: nowhere.json
steps:
  - set: {total: 1}
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	data, _ := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, 3, data.Files)
	require.Len(t, data.Errors, 2)
	assert.Equal(t, filepath.Join(dir, "missing_file.yaml"), data.Errors[0].File)
	assert.Equal(t, filepath.Join(dir, "missing_path.yaml"), data.Errors[1].File)
	for _, e := range data.Errors {
		assert.Equal(t, ErrCodeInitialState, e.Code)
		assert.Contains(t, e.Message, "initial_file")
	}
}
