package vire

import (
	"crypto/rand"
	"encoding/binary"
)

// GCString is a heap string object (§3.3). Short strings are
// interned — equality is pointer equality. Long strings are not
// interned; their hash is computed lazily the first time they're
// used as a table key.
type GCString struct {
	gcHeader
	bytes []byte
	hash  uint32
	long  bool
	// hashed is only meaningful for long strings: short strings are
	// always hashed at interning time.
	hashed bool

	// external, if set, borrows bytes from a caller-owned buffer; free
	// is invoked when the string dies during a GC sweep.
	external bool
	free     func()

	// snext chains this string into its StringTable bucket. Distinct
	// from gcHeader.next (the GC's allgc list) — a string lives in
	// both lists simultaneously.
	snext *GCString
}

func (s *GCString) header() *gcHeader { return &s.gcHeader }

// gcTrace is a no-op: strings are leaves in the object graph.
func (s *GCString) gcTrace(gc *GC) {}

func (s *GCString) String() string { return string(s.bytes) }
func (s *GCString) Bytes() []byte  { return s.bytes }
func (s *GCString) Len() int       { return len(s.bytes) }

// stringsEqual implements §4.1 eq: pointer equality for two short
// strings (both interned, so identical bytes imply identical
// pointer); length-then-byte compare otherwise.
func stringsEqual(a, b *GCString) bool {
	if a == b {
		return true
	}
	if a.long != b.long && !a.long && !b.long {
		// two distinct interned short strings can never hold the
		// same bytes (§4.1 invariant) — this branch cannot actually
		// observe equal content, but keep the explicit contract.
		return false
	}
	if len(a.bytes) != len(b.bytes) {
		return false
	}
	for i := range a.bytes {
		if a.bytes[i] != b.bytes[i] {
			return false
		}
	}
	return true
}

func hashBytes(seed uint32, b []byte) uint32 {
	// FNV-1a variant mixed with the per-process seed (§3.4 "seeded
	// per-process to mitigate collision attacks").
	h := seed ^ 2166136261
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

// hashLong computes and memoizes a long string's hash the first time
// it's used as a table key (§4.1 hash_long).
func (s *GCString) hashLong(seed uint32) uint32 {
	if !s.hashed {
		s.hash = hashBytes(seed, s.bytes)
		s.hashed = true
	}
	return s.hash
}

// StringTable is the global short-string interning table (§4.1): a
// chaining hash table, resized to keep nuse/size in the documented
// load range.
type StringTable struct {
	seed    uint32
	buckets []*GCString
	nuse    int
	gc      *GC
}

const shortStringCap = 40

func newStringTable(seed uint32, gc *GC) *StringTable {
	return &StringTable{seed: seed, buckets: make([]*GCString, 32), gc: gc}
}

// RandomSeed reads OS randomness for the default string-hash seed
// (§9 Open Question: "default should be OS randomness").
func RandomSeed() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is exceptionally rare (kernel entropy
		// source gone); fall back to a fixed seed rather than panic
		// inside VM construction.
		return 0x9e3779b9
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (t *StringTable) bucketFor(hash uint32) int { return int(hash) & (len(t.buckets) - 1) }

// NewShort returns the interned short string for bytes, allocating it
// the first time those bytes are seen (§4.1 new_short).
func (t *StringTable) NewShort(b []byte) *GCString {
	hash := hashBytes(t.seed, b)
	idx := t.bucketFor(hash)
	for s := t.buckets[idx]; s != nil; s = s.snext {
		if s.hash == hash && len(s.bytes) == len(b) && bytesEqual(s.bytes, b) {
			return s
		}
	}
	return t.insert(idx, hash, b)
}

// insert performs the actual head-of-chain insertion; split out of
// NewShort to keep the probe loop above free of allocation on the hit
// path.
func (t *StringTable) insert(idx int, hash uint32, b []byte) *GCString {
	s := &GCString{bytes: append([]byte(nil), b...), hash: hash, hashed: true}
	s.gcHeader.tag = tagShortStr
	s.snext = t.buckets[idx]
	t.buckets[idx] = s
	t.nuse++
	if t.gc != nil {
		t.gc.track(s)
	}
	if t.nuse > len(t.buckets) {
		t.resize(len(t.buckets) * 2)
	}
	return s
}

// NewLong allocates a non-interned long string (§4.1 new_long).
func (t *StringTable) NewLong(b []byte) *GCString {
	s := &GCString{bytes: append([]byte(nil), b...), long: true}
	s.gcHeader.tag = tagLongStr
	if t.gc != nil {
		t.gc.track(s)
	}
	return s
}

// NewLongExternal allocates a long string that borrows bytes from a
// caller-owned buffer. free is invoked (if non-nil) when the string
// is swept.
func (t *StringTable) NewLongExternal(b []byte, free func()) *GCString {
	s := &GCString{bytes: b, long: true, external: true, free: free}
	s.gcHeader.tag = tagLongStr
	if t.gc != nil {
		t.gc.track(s)
	}
	return s
}

// remove unlinks a dead short string from its bucket chain; called by
// the GC sweep phase (§4.1 remove).
func (t *StringTable) remove(dead *GCString) {
	idx := t.bucketFor(dead.hash)
	if t.buckets[idx] == dead {
		t.buckets[idx] = dead.snext
		t.nuse--
		return
	}
	for s := t.buckets[idx]; s != nil && s.snext != nil; s = s.snext {
		if s.snext == dead {
			s.snext = dead.snext
			t.nuse--
			return
		}
	}
}

// resize rehashes every short string into a new bucket array sized
// newSize (§4.1 resize).
func (t *StringTable) resize(newSize int) {
	if newSize < 4 {
		newSize = 4
	}
	fresh := make([]*GCString, newSize)
	for _, head := range t.buckets {
		for s := head; s != nil; {
			next := s.snext
			idx := int(s.hash) & (newSize - 1)
			s.snext = fresh[idx]
			fresh[idx] = s
			s = next
		}
	}
	t.buckets = fresh
}

// maybeShrink halves the table when load drops below 1/4, as part of
// the GC's sweep-phase housekeeping.
func (t *StringTable) maybeShrink() {
	for len(t.buckets) > 32 && t.nuse < len(t.buckets)/4 {
		t.resize(len(t.buckets) / 2)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
