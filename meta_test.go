package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArithFallsBackToMetamethod(t *testing.T) {
	s := NewState(nil)
	th := s.th

	vec := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__add")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		h.Set(h.current.Base, Int(99))
		return 1, nil
	})), s.g.gc)
	vec.SetMetatable(mt, s.g.gc)

	got := s.g.Arith(th, mmAdd, fromTable(vec), Int(1))
	assert.Equal(t, int64(99), got.AsInt())
}

func TestArithWithoutMetamethodPanics(t *testing.T) {
	s := NewState(nil)
	th := s.th
	assert.Panics(t, func() {
		s.g.Arith(th, mmAdd, fromTable(s.NewTable()), Int(1))
	})
}

func TestEqualsRawEqualityShortCircuitsBeforeEq(t *testing.T) {
	s := NewState(nil)
	th := s.th
	assert.True(t, s.g.Equals(th, Int(1), Int(1)))
}

func TestEqualsUsesEqOnlyForSameFamily(t *testing.T) {
	s := NewState(nil)
	th := s.th

	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__eq")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		h.Set(h.current.Base, Bool(true))
		return 1, nil
	})), s.g.gc)

	a := s.NewTable()
	a.SetMetatable(mt, s.g.gc)
	b := s.NewTable()
	b.SetMetatable(mt, s.g.gc)

	assert.True(t, s.g.Equals(th, fromTable(a), fromTable(b)), "__eq should fire for two distinct tables sharing a metatable")

	// A table and a number are never the same "family"; __eq must not
	// be consulted even though it's present on a's metatable.
	assert.False(t, s.g.Equals(th, fromTable(a), Int(1)))
}

func TestIndexChainFollowsNonFunctionIndexMetavalue(t *testing.T) {
	s := NewState(nil)
	th := s.th

	base := s.NewTable()
	key := fromString(s.NewString("k"))
	base.Set(key, Int(7), s.g.gc)

	mid := s.NewTable()
	midMt := s.NewTable()
	midMt.Set(fromString(s.NewString("__index")), fromTable(base), s.g.gc)
	mid.SetMetatable(midMt, s.g.gc)

	top := s.NewTable()
	topMt := s.NewTable()
	topMt.Set(fromString(s.NewString("__index")), fromTable(mid), s.g.gc)
	top.SetMetatable(topMt, s.g.gc)

	got := s.g.Index(th, fromTable(top), key)
	assert.Equal(t, int64(7), got.AsInt())
}

func TestNewIndexRawSetsWhenNoMetamethod(t *testing.T) {
	s := NewState(nil)
	th := s.th
	tbl := s.NewTable()
	key := fromString(s.NewString("k"))
	s.g.NewIndex(th, fromTable(tbl), key, Int(5))
	assert.Equal(t, int64(5), tbl.Get(key).AsInt())
}

func TestToStringMetaUsesToStringMetamethod(t *testing.T) {
	s := NewState(nil)
	th := s.th
	tbl := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__tostring")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		h.Set(h.current.Base, fromString(s.NewString("custom")))
		return 1, nil
	})), s.g.gc)
	tbl.SetMetatable(mt, s.g.gc)
	assert.Equal(t, "custom", s.g.ToStringMeta(th, fromTable(tbl)))
}
