package journal

import (
	"fmt"

	"github.com/IniZio/reim/internal/value"
)

// marshalState converts a state to canonical JSON TEXT and its content
// hash. An undefined (nil) state is stored as null.
func marshalState(state value.Value) (string, string, error) {
	data, err := value.MarshalCanonical(state)
	if err != nil {
		return "", "", fmt.Errorf("marshal state: %w", err)
	}
	hash, err := value.Hash(state)
	if err != nil {
		return "", "", fmt.Errorf("hash state: %w", err)
	}
	return string(data), hash, nil
}

// marshalPayload converts dispatch arguments to a canonical JSON array.
// Arguments that have no JSON form (funcs, channels, structs) are
// recorded as their Go type name so the row still describes the call.
func marshalPayload(args []any) string {
	if len(args) == 0 {
		return "null"
	}

	arr := make(value.Array, len(args))
	for i, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			v = value.String(fmt.Sprintf("<%T>", arg))
		}
		arr[i] = v
	}

	data, err := value.MarshalCanonical(arr)
	if err != nil {
		return "null"
	}
	return string(data)
}

func unmarshalValue(data string) (value.Value, error) {
	v, err := value.Unmarshal([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return v, nil
}
