package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpvalueOpenReadsLiveStackSlot(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)
	th.Set(2, Int(7))

	uv := th.FindOrMakeUpvalue(2)
	assert.True(t, uv.IsOpen())
	assert.Equal(t, int64(7), uv.Get().AsInt())

	th.Set(2, Int(9))
	assert.Equal(t, int64(9), uv.Get().AsInt(), "open upvalue reads through to the live slot")
}

func TestUpvalueFindOrMakeReusesSameSlot(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)

	a := th.FindOrMakeUpvalue(1)
	b := th.FindOrMakeUpvalue(1)
	assert.Same(t, a, b, "two requests for the same stack slot share one upvalue")
}

func TestUpvalueCloseDetachesFromStack(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)
	th.Set(0, Int(42))

	uv := th.FindOrMakeUpvalue(0)
	th.CloseUpvalsFrom(0)

	assert.False(t, uv.IsOpen())
	assert.Equal(t, int64(42), uv.Get().AsInt())

	th.Set(0, Int(100))
	assert.Equal(t, int64(42), uv.Get().AsInt(), "closed upvalue no longer tracks the stack slot")
}

func TestLuaClosureUpvalueSlotsMatchProto(t *testing.T) {
	s := NewState(nil)
	p := NewProto(s.g.gc)
	p.Upvalues = []UpvalDesc{{Name: "x", InStack: true, Index: 0}, {Name: "y", InStack: false, Index: 0}}
	cl := NewLuaClosure(p, s.g.gc)
	assert.Len(t, cl.Upvalues, 2)
}

func TestCClosureCapturesUpvalues(t *testing.T) {
	s := NewState(nil)
	cc := NewCClosure(func(th *Thread) (int, error) { return 0, nil }, []Value{Int(1), Int(2)}, s.g.gc)
	assert.Equal(t, int64(1), cc.Upvalues[0].AsInt())
	assert.Equal(t, int64(2), cc.Upvalues[1].AsInt())
}
