package vire

// AllocFunc is the single allocation facade every runtime allocation
// flows through (§4.4):
//
//	ptr == nil && newSize > 0   -> new allocation
//	ptr != nil && newSize == 0  -> free
//	otherwise                  -> resize
//
// Go's runtime already owns real memory management, so this facade
// doesn't actually back every []byte/struct allocation in the module
// (that would require routing `make`/`new` through unsafe machinery
// for no safety benefit — see DESIGN.md). It is exercised at one
// place: growth of Thread value stacks (§4.8). String byte storage
// and other allocations do not pass through it.
type AllocFunc func(oldSize, newSize int) bool

// defaultAlloc always "succeeds". A custom AllocFunc's refusal is
// reported by charge, but Thread.grow ignores that result, so a
// refusal neither raises an error nor triggers an emergency collection.
func defaultAlloc(oldSize, newSize int) bool { return true }

// allocDebt tracks the bytes outstanding and the signed GC debt
// counter described in §4.4. Every tracked allocation/free updates
// both; nothing calls overThreshold or settle, so the debt never
// forces a GC step.
type allocDebt struct {
	alloc     AllocFunc
	totalBytes int64
	debt       int64
	threshold  int64
}

func newAllocDebt(alloc AllocFunc) *allocDebt {
	if alloc == nil {
		alloc = defaultAlloc
	}
	return &allocDebt{alloc: alloc, threshold: 1 << 16}
}

// charge records a size delta (positive for growth, negative for a
// free) and reports whether the embedder's AllocFunc allowed it.
func (d *allocDebt) charge(oldSize, newSize int) bool {
	if !d.alloc(oldSize, newSize) {
		return false
	}
	delta := int64(newSize - oldSize)
	d.totalBytes += delta
	d.debt += delta
	return true
}

func (d *allocDebt) overThreshold() bool { return d.debt > d.threshold }

func (d *allocDebt) settle(work int64) { d.debt -= work }
