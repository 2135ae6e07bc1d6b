package vire

import "math"

// tableNode is one slot of the hash part: open addressing with an
// intrusive collision chain via next (index+1 into the hash part, 0
// meaning "no link"; a free slot is one whose inUse is false),
// mirroring the original's Node/gnext
// layout (§3.4 / original_source/src/lobject.h struct Node).
type tableNode struct {
	key    Value
	val    Value
	next   int // index+1 into t.hash, 0 = end of chain
	inUse  bool
}

// Table is the hybrid array+hash table (§3.4): a dense array part for
// small positive-integer keys and an open-addressing hash part for
// everything else, plus an optional metatable.
type Table struct {
	gcHeader

	array []Value
	hash  []tableNode
	// lastfree scans backward for a free hash slot, exactly like the
	// original's getfreepos (§4.2 newkey).
	lastfree int

	metatable *Table

	// flags bitmaps which metamethod events are known-absent, so the
	// common case (no metatable, or a metatable missing a given
	// event) skips a lookup entirely (§4.12); bits 30 and 31 are the
	// weak-key/weak-value flags.
	flags uint32
}

func (t *Table) header() *gcHeader { return &t.gcHeader }

// NewTable allocates an empty table and tracks it with gc.
func NewTable(gc *GC) *Table {
	t := &Table{lastfree: -1}
	t.gcHeader.tag = tagTableV
	if gc != nil {
		gc.track(t)
	}
	return t
}

func (t *Table) gcTrace(gc *GC) {
	for _, v := range t.array {
		gc.markValue(v)
	}
	weak := t.weakKeys() || t.weakValues()
	if weak {
		// weak tables are revisited during the atomic phase instead of
		// being fully traced now (§4.10).
		gc.RegisterWeak(t, t.weakKeys() && !t.weakValues())
	}
	for i := range t.hash {
		n := &t.hash[i]
		if !n.inUse || n.key.IsNil() {
			continue
		}
		if !weak || !t.weakKeys() {
			gc.markValue(n.key)
		}
		if !weak || !t.weakValues() {
			gc.markValue(n.val)
		}
	}
	if t.metatable != nil {
		gc.markObject(t.metatable)
	}
}

func (t *Table) weakKeys() bool   { return t.flags&flagWeakK != 0 }
func (t *Table) weakValues() bool { return t.flags&flagWeakV != 0 }

const (
	flagWeakK uint32 = 1 << 30
	flagWeakV uint32 = 1 << 31
)

// clearWeakSlots drops hash entries whose weak side died this cycle.
// Returns true if anything was cleared (used by the ephemeron
// fixpoint in atomic()).
func (t *Table) clearWeakSlots(gc *GC) bool {
	changed := false
	weakK, weakV := t.weakKeys(), t.weakValues()
	for i := range t.hash {
		n := &t.hash[i]
		if !n.inUse || n.val.IsNil() {
			continue
		}
		dead := false
		if weakK {
			if o := n.key.object(); o != nil && gc.isWhite(o) {
				dead = true
			}
		}
		if weakV {
			if o := n.val.object(); o != nil && gc.isWhite(o) {
				dead = true
			}
		}
		if dead {
			n.val = emptyVal()
			changed = true
		}
	}
	return changed
}

// SetMetatable attaches mt (possibly nil) and recomputes the
// no-metamethod bitmap.
func (t *Table) SetMetatable(mt *Table, gc *GC) {
	t.metatable = mt
	t.flags &^= 0x3FFFFFFF // clear absence bits, keep weak bits
	if gc != nil {
		gc.WriteBarrier(t, fromTable(mt))
	}
}

func (t *Table) Metatable() *Table { return t.metatable }

// arrayIndex returns the 0-based array-part slot for an integer key,
// or -1 if the key doesn't belong in the array part.
func arrayIndex(key int64) int {
	if key >= 1 && key <= math.MaxInt32 {
		return int(key - 1)
	}
	return -1
}

// normalizeKey converts a float key with an exact integer value to
// the equivalent integer key (§3.4 "a float key that is mathematically
// an integer is normalized to the integer key").
func normalizeKey(k Value) Value {
	if k.tag == tagFloat {
		f := k.AsFloat()
		if i := int64(f); float64(i) == f && !math.IsInf(f, 0) {
			return Int(i)
		}
	}
	return k
}

// Get implements raw indexing (no metamethod dispatch — that's §4.12's
// job, layered on top in meta.go).
func (t *Table) Get(key Value) Value {
	key = normalizeKey(key)
	if key.tag == tagInt {
		if idx := arrayIndex(key.AsInt()); idx >= 0 && idx < len(t.array) {
			return t.array[idx]
		}
	}
	return t.hashGet(key)
}

func (t *Table) hashGet(key Value) Value {
	if len(t.hash) == 0 || key.IsNil() {
		return Nil()
	}
	i := t.mainPosition(key)
	for {
		n := &t.hash[i]
		if n.inUse && RawEquals(n.key, key) {
			return n.val
		}
		if n.next == 0 {
			return Nil()
		}
		i = n.next - 1
	}
}

// Set implements raw assignment, growing the array part or inserting
// into the hash part as needed (§4.2 set/newkey), and rehashing when
// the hash part has no free slot left.
func (t *Table) Set(key, val Value, gc *GC) {
	key = normalizeKey(key)
	if key.IsNil() {
		panic("vire: table index is nil")
	}
	if key.tag == tagFloat && math.IsNaN(key.AsFloat()) {
		panic("vire: table index is NaN")
	}
	if key.tag == tagInt {
		if idx := arrayIndex(key.AsInt()); idx >= 0 {
			if idx < len(t.array) {
				t.array[idx] = val
				if gc != nil {
					gc.WriteBarrier(t, val)
				}
				return
			}
			if idx == len(t.array) && !val.IsNil() {
				t.array = append(t.array, val)
				t.migrateFromHash(gc)
				if gc != nil {
					gc.WriteBarrier(t, val)
				}
				return
			}
		}
	}
	t.hashSet(key, val, gc)
}

// migrateFromHash pulls any contiguous run of integer keys now
// reachable from the hash part into the array part after a growth
// (§4.2's array/hash rebalancing policy).
func (t *Table) migrateFromHash(gc *GC) {
	for {
		next := Int(int64(len(t.array) + 1))
		v := t.hashGet(next)
		if v.IsNil() {
			return
		}
		t.removeHashKey(next)
		t.array = append(t.array, v)
	}
}

func (t *Table) hashSet(key, val Value, gc *GC) {
	if val.IsNil() {
		t.removeHashKey(key)
		return
	}
	if len(t.hash) == 0 {
		t.resizeHash(8)
	}
	i := t.mainPosition(key)
	n := &t.hash[i]
	if n.inUse && RawEquals(n.key, key) {
		n.val = val
		if gc != nil {
			gc.WriteBarrier(t, val)
		}
		return
	}
	if !n.inUse {
		n.inUse = true
		n.key = key
		n.val = val
		n.next = 0
		if gc != nil {
			gc.WriteBarrier(t, key)
			gc.WriteBarrier(t, val)
		}
		return
	}
	// collision: find or make the real owner of this bucket a free
	// slot, mirroring the original's newkey displacement strategy.
	mainOwnerIdx := t.mainPosition(n.key)
	if mainOwnerIdx != i {
		// n belongs to some other chain; evict it to a free slot and
		// claim i for key.
		free := t.getFreePos()
		if free < 0 {
			t.resizeHash(len(t.hash) * 2)
			t.hashSet(key, val, gc)
			return
		}
		// relink the chain that currently points at i to point at free
		// instead.
		prev := mainOwnerIdx
		for t.hash[prev].next-1 != i {
			prev = t.hash[prev].next - 1
		}
		t.hash[prev].next = free + 1
		t.hash[free] = *n
		*n = tableNode{inUse: true, key: key, val: val}
		if gc != nil {
			gc.WriteBarrier(t, key)
			gc.WriteBarrier(t, val)
		}
		return
	}
	// i is the legitimate chain head; append key as a new collision
	// node reachable from i.
	free := t.getFreePos()
	if free < 0 {
		t.resizeHash(len(t.hash) * 2)
		t.hashSet(key, val, gc)
		return
	}
	t.hash[free] = tableNode{inUse: true, key: key, val: val, next: n.next}
	n.next = free + 1
	if gc != nil {
		gc.WriteBarrier(t, key)
		gc.WriteBarrier(t, val)
	}
}

func (t *Table) removeHashKey(key Value) {
	if len(t.hash) == 0 {
		return
	}
	i := t.mainPosition(key)
	for {
		n := &t.hash[i]
		if !n.inUse {
			return
		}
		if RawEquals(n.key, key) {
			// Keep both the slot and its key intact so chains through it
			// remain walkable and so a concurrent Next(key) mid-iteration
			// can still locate this slot by its original key (§3.4/§4.2,
			// mirroring the original's setdeadkey: only the value is
			// cleared, the key's identity survives until the next rehash).
			n.val = emptyVal()
			return
		}
		if n.next == 0 {
			return
		}
		i = n.next - 1
	}
}

// getFreePos scans backward for an unused slot, matching the
// original's getfreepos (§4.2).
func (t *Table) getFreePos() int {
	for t.lastfree >= 0 {
		if !t.hash[t.lastfree].inUse {
			return t.lastfree
		}
		t.lastfree--
	}
	return -1
}

func (t *Table) mainPosition(key Value) int {
	return int(hashValue(key)) & (len(t.hash) - 1)
}

func hashValue(key Value) uint32 {
	switch {
	case key.tag == tagInt:
		return uint32(key.AsInt()) ^ uint32(key.AsInt()>>32)
	case key.tag == tagFloat:
		bits := math.Float64bits(key.AsFloat())
		return uint32(bits) ^ uint32(bits>>32)
	case key.IsString():
		s := key.AsString()
		if s.long {
			return s.hashLong(0)
		}
		return s.hash
	case key.tag == tagTrue:
		return 1
	case key.tag == tagFalse:
		return 0
	default:
		// collectable non-string: identity hash via the object's
		// stable gc-assigned id — never exposed to the language, only
		// used as a hash-bucket index.
		if o := key.object(); o != nil {
			return o.header().id
		}
		return 0
	}
}

func (t *Table) resizeHash(newSize int) {
	if newSize < 4 {
		newSize = 4
	}
	old := t.hash
	t.hash = make([]tableNode, newSize)
	t.lastfree = newSize - 1
	for i := range t.hash {
		t.hash[i].next = 0
	}
	for _, n := range old {
		if n.inUse && !n.val.IsNil() {
			t.hashSet(n.key, n.val, nil)
		}
	}
}

// Len implements the `#t` border operator (§4.2): if the array part's
// last slot is nil, binary search the array part for a border;
// otherwise its length is a border unless the hash part continues the
// sequence, which is then probed for an unbounded border.
// Non-deterministic when the table has holes, matching the
// original's contract (§9 Open Question: documented, not fixed).
func (t *Table) Len() int64 {
	n := len(t.array)
	if n > 0 && t.array[n-1].IsNil() {
		// binary search for a border inside the array part
		lo, hi := 0, n
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if t.array[mid-1].IsNil() {
				hi = mid
			} else {
				lo = mid
			}
		}
		return int64(lo)
	}
	if len(t.hash) == 0 {
		return int64(n)
	}
	// unbounded search into the hash part, doubling until a nil is
	// found, then binary search that range.
	i, j := int64(n), int64(n)+1
	for !t.hashGet(Int(j)).IsNil() {
		i = j
		if j > math.MaxInt32/2 {
			// linear fallback to avoid overflow on adversarial inputs
			for !t.hashGet(Int(i + 1)).IsNil() {
				i++
			}
			return i
		}
		j *= 2
	}
	for j-i > 1 {
		mid := (i + j) / 2
		if t.hashGet(Int(mid)).IsNil() {
			j = mid
		} else {
			i = mid
		}
	}
	return i
}

// Next implements stateless iteration (§4.2): given the previous key
// (Nil to start), returns the following live key/value pair, or
// ok=false when iteration is exhausted. Safe across Set-to-nil
// removals of the current key because a removed slot keeps its
// original key (only the value is cleared) rather than being unlinked,
// so iterIndex can still locate it.
func (t *Table) Next(key Value) (nk, nv Value, ok bool) {
	idx := t.iterIndex(key)
	for idx < len(t.array) {
		if !t.array[idx].IsNil() {
			return Int(int64(idx + 1)), t.array[idx], true
		}
		idx++
	}
	hi := idx - len(t.array)
	for hi < len(t.hash) {
		n := &t.hash[hi]
		if n.inUse && !n.val.IsNil() {
			return n.key, n.val, true
		}
		hi++
	}
	return Nil(), Nil(), false
}

// iterIndex resolves key (as returned by a previous Next, or Nil for
// the first call) to a linear cursor over array-part-then-hash-part.
func (t *Table) iterIndex(key Value) int {
	if key.IsNil() {
		return 0
	}
	key = normalizeKey(key)
	if key.tag == tagInt {
		if idx := arrayIndex(key.AsInt()); idx >= 0 && idx < len(t.array) {
			return idx + 1
		}
	}
	for j := range t.hash {
		n := &t.hash[j]
		if n.inUse && RawEquals(n.key, key) {
			return len(t.array) + j + 1
		}
	}
	panic("vire: invalid key to 'next'")
}
