package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// stripTime removes the time attribute from one JSON log line.
func stripTime(t *testing.T, line []byte) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(line, &m))
	delete(m, "time")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}
