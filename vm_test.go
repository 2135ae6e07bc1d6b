package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildAddOne assembles: function(n) return n + 1 end
func buildAddOne(s *State) *LuaClosure {
	a := NewAssembler(s.g.gc)
	a.SetParams(1, false).SetMaxStack(2)
	one := a.Constant(Int(1))
	a.EmitABC(OpAdd, 1, 0, RKConstant(one), 1)
	a.EmitABC(OpReturn, 1, 2, 0, 1)
	return s.Load(a.Finish())
}

func TestVMAddOne(t *testing.T) {
	s := NewState(nil)
	cl := buildAddOne(s)
	out, err := s.Call(fromLuaClosure(cl), Int(41))
	assert.Nil(t, err)
	assert.Equal(t, int64(42), out[0].AsInt())
}

// buildSumLoop assembles a numeric for-loop summing 1..n into a local.
func buildSumLoop(s *State) *LuaClosure {
	a := NewAssembler(s.g.gc)
	a.SetParams(1, false).SetMaxStack(6)
	// r1 = 0 (sum), r2 = 1 (init), r3 = n (limit, already in r0 copy),
	// r4 = 1 (step)
	zero := a.Constant(Int(0))
	one := a.Constant(Int(1))
	a.EmitABx(OpLoadK, 1, zero, 1) // sum = 0
	a.EmitABx(OpLoadK, 2, one, 1)  // init = 1
	a.EmitABC(OpMove, 3, 0, 0, 1) // limit = n
	a.EmitABx(OpLoadK, 4, one, 1)  // step = 1
	prepPC := a.EmitJump(OpForPrep, 2, "loopend", 1)
	_ = prepPC
	a.Label("loopbody")
	a.EmitABC(OpAdd, 1, 1, 5, 1) // sum += control var (r5)
	a.EmitJump(OpForLoop, 2, "loopbody", 1)
	a.Label("loopend")
	a.EmitABC(OpReturn, 1, 2, 0, 1)
	return s.Load(a.Finish())
}

func TestVMNumericForLoopSum(t *testing.T) {
	s := NewState(nil)
	cl := buildSumLoop(s)
	out, err := s.Call(fromLuaClosure(cl), Int(5))
	assert.Nil(t, err)
	assert.Equal(t, int64(15), out[0].AsInt())
}

func TestVMTableSetGet(t *testing.T) {
	s := NewState(nil)
	tbl := s.NewTable()
	tbl.Set(Int(1), fromString(s.NewString("first")), s.g.gc)
	assert.Equal(t, "first", tbl.Get(Int(1)).AsString().String())
}

func TestVMMetatableIndexChain(t *testing.T) {
	s := NewState(nil)
	base := s.NewTable()
	key := fromString(s.NewString("greeting"))
	base.Set(key, fromString(s.NewString("hi")), s.g.gc)

	derived := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__index")), fromTable(base), s.g.gc)
	derived.SetMetatable(mt, s.g.gc)

	got := s.g.Index(s.th, fromTable(derived), key)
	assert.Equal(t, "hi", got.AsString().String())
}

func TestVMCallErrorsOnNonCallable(t *testing.T) {
	s := NewState(nil)
	_, err := s.Call(Int(1))
	assert.NotNil(t, err)
}
