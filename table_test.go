package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableArrayPartGetSet(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Set(Int(1), Int(10), nil)
	tbl.Set(Int(2), Int(20), nil)
	tbl.Set(Int(3), Int(30), nil)

	assert.Equal(t, int64(10), tbl.Get(Int(1)).AsInt())
	assert.Equal(t, int64(20), tbl.Get(Int(2)).AsInt())
	assert.Equal(t, int64(3), tbl.Len())
}

func TestTableHashPartStringKeys(t *testing.T) {
	st := newStringTable(0xDEAD, nil)
	tbl := NewTable(nil)
	key := fromString(st.NewShort([]byte("name")))
	tbl.Set(key, fromString(st.NewShort([]byte("vire"))), nil)

	got := tbl.Get(key)
	assert.True(t, got.IsString())
	assert.Equal(t, "vire", got.AsString().String())
}

func TestTableFloatKeyNormalizesToInt(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Set(Float(1.0), Int(99), nil)
	assert.Equal(t, int64(99), tbl.Get(Int(1)).AsInt())
}

func TestTableRemoveThenGetIsNil(t *testing.T) {
	st := newStringTable(1, nil)
	tbl := NewTable(nil)
	key := fromString(st.NewShort([]byte("k")))
	tbl.Set(key, Int(1), nil)
	tbl.Set(key, Nil(), nil)
	assert.True(t, tbl.Get(key).IsNil())
}

func TestTableLenWithHole(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Set(Int(1), Int(1), nil)
	tbl.Set(Int(2), Int(2), nil)
	tbl.Set(Int(3), Int(3), nil)
	tbl.Set(Int(2), Nil(), nil)
	// a border is any n where t[n]~=nil and t[n+1]==nil; with a hole
	// at 2 either 1 or 3 is a legal answer (§9 Open Question).
	n := tbl.Len()
	assert.True(t, n == 1 || n == 3, "Len() must return a valid border, got %d", n)
}

func TestTableNextIteratesAllLiveEntries(t *testing.T) {
	st := newStringTable(7, nil)
	tbl := NewTable(nil)
	tbl.Set(Int(1), Int(100), nil)
	keyA := fromString(st.NewShort([]byte("a")))
	tbl.Set(keyA, Int(200), nil)

	seen := map[string]bool{}
	k, v, ok := tbl.Next(Nil())
	for ok {
		seen[k.String()+"="+v.String()] = true
		k, v, ok = tbl.Next(k)
	}
	assert.True(t, seen["1=100"])
	assert.True(t, seen["a=200"])
	assert.Len(t, seen, 2)
}

// TestTableNextSurvivesDeleteDuringIteration exercises the "for k,v in
// pairs(t) do t[k]=nil end" idiom against the hash part: deleting the
// key Next just returned must not break resuming iteration from it,
// since the removed slot keeps its key (only the value is cleared)
// rather than becoming unlocatable.
func TestTableNextSurvivesDeleteDuringIteration(t *testing.T) {
	st := newStringTable(13, nil)
	tbl := NewTable(nil)
	keyA := fromString(st.NewShort([]byte("a")))
	keyB := fromString(st.NewShort([]byte("b")))
	keyC := fromString(st.NewShort([]byte("c")))
	tbl.Set(keyA, Int(1), nil)
	tbl.Set(keyB, Int(2), nil)
	tbl.Set(keyC, Int(3), nil)

	seen := map[string]bool{}
	k, _, ok := tbl.Next(Nil())
	for ok {
		next := k
		seen[k.String()] = true
		assert.NotPanics(t, func() {
			tbl.Set(k, Nil(), nil)
		})
		k, _, ok = tbl.Next(next)
	}
	assert.Len(t, seen, 3)
	assert.True(t, seen["a"] && seen["b"] && seen["c"])
	assert.True(t, tbl.Get(keyA).IsNil())
	assert.True(t, tbl.Get(keyB).IsNil())
	assert.True(t, tbl.Get(keyC).IsNil())
}

func TestTableSetNilKeyPanics(t *testing.T) {
	tbl := NewTable(nil)
	assert.Panics(t, func() { tbl.Set(Nil(), Int(1), nil) })
}

func TestTableSetNaNKeyPanics(t *testing.T) {
	tbl := NewTable(nil)
	assert.Panics(t, func() { tbl.Set(Float(nan()), Int(1), nil) })
}

func nan() float64 {
	var zero float64
	return zero / zero
}
