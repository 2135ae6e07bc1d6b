package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpLoadRoundTripPreservesBehavior(t *testing.T) {
	s := NewState(nil)
	proto := buildAddOne(s).Proto

	buf := Dump(proto)
	loaded, err := Load(buf, s.g.gc)
	assert.NoError(t, err)

	cl := s.Load(loaded)
	out, cerr := s.Call(fromLuaClosure(cl), Int(41))
	assert.Nil(t, cerr)
	assert.Equal(t, int64(42), out[0].AsInt())
}

func TestDumpLoadPreservesStructuralFields(t *testing.T) {
	s := NewState(nil)
	proto := buildSumLoop(s).Proto

	buf := Dump(proto)
	loaded, err := Load(buf, s.g.gc)
	assert.NoError(t, err)

	assert.Equal(t, proto.NumParams, loaded.NumParams)
	assert.Equal(t, proto.IsVararg, loaded.IsVararg)
	assert.Equal(t, proto.MaxStackSize, loaded.MaxStackSize)
	assert.Equal(t, len(proto.Code), len(loaded.Code))
	assert.Equal(t, proto.Code, loaded.Code)
	assert.Equal(t, len(proto.Constants), len(loaded.Constants))
}

func TestLoadRejectsBadSignature(t *testing.T) {
	s := NewState(nil)
	_, err := Load([]byte{0, 0, 0, 0, 0}, s.g.gc)
	assert.Error(t, err)
}

func TestLoadRejectsTruncatedBuffer(t *testing.T) {
	s := NewState(nil)
	proto := buildAddOne(s).Proto
	buf := Dump(proto)
	_, err := Load(buf[:len(buf)-2], s.g.gc)
	assert.Error(t, err)
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	s := NewState(nil)
	proto := buildAddOne(s).Proto
	buf := Dump(proto)
	buf[4] = dumpFormatVersion + 1
	_, err := Load(buf, s.g.gc)
	assert.Error(t, err)
}

func TestDumpRoundTripsStringConstants(t *testing.T) {
	s := NewState(nil)
	a := NewAssembler(s.g.gc)
	a.SetParams(0, false).SetMaxStack(1)
	idx := a.ConstantString(s.g.strings, "hello")
	a.EmitABx(OpLoadK, 0, idx, 1)
	a.EmitABC(OpReturn, 0, 2, 0, 1)
	proto := a.Finish()

	buf := Dump(proto)
	loaded, err := Load(buf, s.g.gc)
	assert.NoError(t, err)

	cl := s.Load(loaded)
	out, cerr := s.Call(fromLuaClosure(cl))
	assert.Nil(t, cerr)
	assert.Equal(t, "hello", out[0].AsString().String())
}
