package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil is falsy", Nil(), false},
		{"false is falsy", Bool(false), false},
		{"true is truthy", Bool(true), true},
		{"zero int is truthy", Int(0), true},
		{"empty string is truthy", fromString(&GCString{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Truthy())
		})
	}
}

func TestValueTypeNames(t *testing.T) {
	assert.Equal(t, "nil", Nil().Type())
	assert.Equal(t, "boolean", Bool(true).Type())
	assert.Equal(t, "number", Int(1).Type())
	assert.Equal(t, "number", Float(1.5).Type())
}

func TestRawEqualsNumberCrossType(t *testing.T) {
	assert.True(t, RawEquals(Int(3), Float(3.0)))
	assert.False(t, RawEquals(Int(3), Float(3.5)))
	assert.False(t, RawEquals(Float(0), Nil()))
}

func TestRawEqualsNilVariantsAllEqual(t *testing.T) {
	assert.True(t, RawEquals(Nil(), emptyVal()))
	assert.True(t, RawEquals(emptyVal(), notATable()))
}

func TestRawEqualsStringByContent(t *testing.T) {
	st := newStringTable(0x1234, nil)
	a := st.NewShort([]byte("hello"))
	b := st.NewShort([]byte("hello"))
	assert.Same(t, a, b, "short strings with equal bytes must intern to the same pointer")
	assert.True(t, RawEquals(fromString(a), fromString(b)))
}

func TestIntegerFloatAccessors(t *testing.T) {
	v := Int(42)
	assert.True(t, v.IsInteger())
	assert.Equal(t, int64(42), v.AsInt())
	assert.Equal(t, float64(42), v.AsNumber())

	f := Float(3.25)
	assert.True(t, f.IsFloat())
	assert.Equal(t, 3.25, f.AsFloat())
}
