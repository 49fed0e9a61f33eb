package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs null", nil, Null{}, false},
		{"null vs null", Null{}, Null{}, true},
		{"same string", String("x"), String("x"), true},
		{"different string", String("x"), String("y"), false},
		{"int vs equal float", Int(3), Float(3), true},
		{"float vs int", Float(3.5), Int(3), false},
		{"int vs string", Int(1), String("1"), false},
		{"arrays", Array{Int(1), Object{"a": Bool(true)}}, Array{Int(1), Object{"a": Bool(true)}}, true},
		{"array length", Array{Int(1)}, Array{Int(1), Int(2)}, false},
		{"objects", Object{"a": Int(1), "b": Array{}}, Object{"b": Array{}, "a": Int(1)}, true},
		{"object missing key", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
		{"object extra key", Object{"a": Int(1)}, Object{"a": Int(1), "b": Int(2)}, false},
		{"object vs array", Object{}, Array{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestTruthy(t *testing.T) {
	falsy := []Value{nil, Null{}, Bool(false), Int(0), Float(0), Float(math.NaN()), String("")}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%s should be falsy", Kind(v))
	}

	truthy := []Value{Bool(true), Int(-1), Float(0.1), String("0"), Array{}, Object{}}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%s should be truthy", Kind(v))
	}
}

func TestIdentical(t *testing.T) {
	obj := Object{"a": Int(1)}
	same := obj
	copyObj := Object{"a": Int(1)}

	assert.True(t, Identical(obj, same))
	assert.False(t, Identical(obj, copyObj), "structurally equal copies are not identical")
	assert.True(t, Equal(obj, copyObj))

	arr := Array{Int(1), Int(2)}
	assert.True(t, Identical(arr, arr))
	assert.False(t, Identical(arr, Array{Int(1), Int(2)}))
	assert.False(t, Identical(arr, arr[:1]))

	assert.True(t, Identical(Int(5), Int(5)))
	assert.False(t, Identical(Int(5), Float(5)))
	assert.True(t, Identical(nil, nil))
	assert.False(t, Identical(nil, Null{}))
	assert.False(t, Identical(String("a"), Object{}))
}
