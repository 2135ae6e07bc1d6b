package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefGetRefRoundTrips(t *testing.T) {
	s := NewState(nil)
	tbl := s.NewTable()
	id := s.Ref(fromTable(tbl))
	assert.True(t, s.GetRef(id).IsTable())
	assert.Same(t, tbl, s.GetRef(id).AsTable())
}

func TestUnrefClearsTheSlot(t *testing.T) {
	s := NewState(nil)
	id := s.Ref(Int(1))
	s.Unref(id)
	assert.True(t, s.GetRef(id).IsNil())
}

func TestRefAllocatesDistinctIDs(t *testing.T) {
	s := NewState(nil)
	a := s.Ref(Int(1))
	b := s.Ref(Int(2))
	assert.NotEqual(t, a, b)
}

func TestGlobalsTableIsLazilyCreatedAndStable(t *testing.T) {
	s := NewState(nil)
	g1 := s.Globals()
	g1.Set(fromString(s.NewString("x")), Int(5), s.g.gc)
	g2 := s.Globals()
	assert.Same(t, g1, g2)
	assert.Equal(t, int64(5), g2.Get(fromString(s.NewString("x"))).AsInt())
}

func TestCollectGarbageCollectDrainsFinalizers(t *testing.T) {
	s := NewState(nil)
	ran := false
	mm := s.NewClosure(func(h *Thread) (int, error) {
		ran = true
		return 0, nil
	})

	tbl := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__gc")), fromCClosure(mm), s.g.gc)
	tbl.SetMetatable(mt, s.g.gc)
	s.g.gc.RegisterFinalizable(tbl)

	// Drop every reference so the next full cycle considers it dead.
	tbl = nil
	_ = tbl

	s.CollectGarbage("collect")
	assert.True(t, ran, "a registered finalizable's __gc must run during a full collect cycle")
}

func TestCallOnNonCallableReturnsError(t *testing.T) {
	s := NewState(nil)
	_, err := s.Call(fromTable(s.NewTable()))
	assert.NotNil(t, err)
}
