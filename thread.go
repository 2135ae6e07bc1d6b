package vire

// ThreadStatus is a coroutine's run state (§4.10 original terms:
// LUA_OK/LUA_YIELD plus the thread-specific running/suspended/normal/
// dead states).
type ThreadStatus uint8

const (
	ThreadSuspended ThreadStatus = iota
	ThreadRunning
	ThreadNormal // resumed another coroutine, sitting in the middle of the chain
	ThreadDead
)

// Thread is a coroutine: its own register stack and call-info chain,
// sharing the owning GlobalState's heap, string table and GC (§3.7,
// §4.10). The first Thread created by NewState is the main thread and
// is never resumable as a coroutine itself.
type Thread struct {
	gcHeader

	g *GlobalState

	stack    []Value
	base     *CallInfo
	current  *CallInfo

	status ThreadStatus

	// openUpvals is sorted descending by stackIdx (highest slot first)
	// so FindOrMakeUpvalue and CloseUpvalsFrom can linear-scan it from
	// the top of the stack down (§4.8).
	openUpvals *Upvalue

	// tbc holds the stack indices of pending to-be-closed variables,
	// innermost-last so unwinding pops LIFO (§4.11).
	tbc []int

	// resumer is the coroutine that last resumed this one, recorded by
	// Resume. Nothing reads it: status changes and errors travel
	// through the channel handshake in coroutine.go (§4.10).
	resumer *Thread

	// errHandler is traced by the collector but not consulted by
	// PCall, which takes its message handler as an argument (§4.9).
	errHandler Value
}

func (t *Thread) header() *gcHeader { return &t.gcHeader }

func (t *Thread) gcTrace(gc *GC) {
	for _, v := range t.stack {
		gc.markValue(v)
	}
	for uv := t.openUpvals; uv != nil; uv = uv.openNext {
		gc.markObject(uv)
	}
	for ci := t.base; ci != nil; ci = ci.Next {
		if ci.Closure != nil {
			gc.markObject(ci.Closure)
		}
		if ci.Go != nil {
			gc.markObject(ci.Go)
		}
	}
	gc.markValue(t.errHandler)
}

// newThread allocates a fresh coroutine sharing g's heap.
func newThread(g *GlobalState) *Thread {
	th := &Thread{g: g, stack: make([]Value, initialStackSize)}
	th.gcHeader.tag = tagThreadV
	ci := &CallInfo{Base: 0, FuncIdx: 0, Top: 0, NResults: -1}
	th.base = ci
	th.current = ci
	g.gc.track(th)
	return th
}

const initialStackSize = 64

// Status reports the coroutine's current run state.
func (t *Thread) Status() ThreadStatus { return t.status }

// Get/Set read and write an absolute stack slot. grow extends the
// value stack, routing the size delta through the shared AllocFunc.
// Open upvalues and CallInfos hold stack indices, which stay valid —
// growth only reallocates the slice — so nothing needs fixing up
// (§4.8's index-not-pointer discipline).
func (t *Thread) Get(idx int) Value  { return t.stack[idx] }
func (t *Thread) Set(idx int, v Value) { t.stack[idx] = v }

func (t *Thread) grow(minSize int) {
	if minSize <= len(t.stack) {
		return
	}
	newSize := len(t.stack) * 2
	if newSize < minSize {
		newSize = minSize
	}
	old := len(t.stack)
	fresh := make([]Value, newSize)
	copy(fresh, t.stack)
	for i := old; i < newSize; i++ {
		fresh[i] = Nil()
	}
	t.g.debt.charge(old*valueSize, newSize*valueSize)
	t.stack = fresh
}

const valueSize = 24 // approximate Value footprint, for debt accounting only

// FindOrMakeUpvalue returns the open Upvalue for stack slot idx,
// creating it if no open upvalue there yet exists (§4.8 findupval).
func (t *Thread) FindOrMakeUpvalue(idx int) *Upvalue {
	var prev *Upvalue
	uv := t.openUpvals
	for uv != nil && uv.stackIdx > idx {
		prev = uv
		uv = uv.openNext
	}
	if uv != nil && uv.stackIdx == idx {
		return uv
	}
	fresh := &Upvalue{owner: t, stackIdx: idx}
	fresh.gcHeader.tag = tagUpval
	fresh.openNext = uv
	if prev == nil {
		t.openUpvals = fresh
	} else {
		prev.openNext = fresh
	}
	t.g.gc.track(fresh)
	return fresh
}

// CloseUpvalsFrom closes every open upvalue at or above stack index
// from, called when a frame returns or a <close>/break unwinds past
// those slots (§4.8, §4.11).
func (t *Thread) CloseUpvalsFrom(from int) {
	for t.openUpvals != nil && t.openUpvals.stackIdx >= from {
		uv := t.openUpvals
		t.openUpvals = uv.openNext
		uv.Close()
	}
}
