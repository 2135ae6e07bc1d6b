package vire

// gcColor is one of the tri-color marking states (§4.5).
type gcColor uint8

const (
	gcWhite0 gcColor = iota
	gcWhite1
	gcGray
	gcBlack
)

// gcAge names the generational-mode age ladder (§4.6). track sets
// every object to New and sweepStep turns Touched1 into Old; nothing
// else moves an object along the ladder. The collector runs no minor
// collections: every cycle is a full incremental one, whatever
// GCMode is configured.
type gcAge uint8

const (
	ageNew gcAge = iota
	ageSurvival
	ageOld0
	ageOld1
	ageOld
	ageTouched1
	ageTouched2
)

// gcHeader is the common object header every heap-allocated value
// embeds (§4.5). next threads the object into the GC's single
// intrusive allgc list — the one list sweep-enumeration
// invariant (§8) actually examines. gclist, by contrast, is
// implemented as a plain Go slice (see GC.gray below): an intrusive
// gray-list pointer would need a per-type field duplicated across
// Table/LuaClosure/Thread/Userdata for no observable difference in
// behavior, so it's kept as ordinary worklist bookkeeping instead.
type gcHeader struct {
	next    gcObject
	tag     Tag
	color   gcColor
	age     gcAge
	marked  bool   // finalizer bookkeeping: already queued for __gc
	closing bool   // to-be-closed bookkeeping (§4.11)
	id      uint32 // stable identity hash, assigned at track() time
}

// gcObject is any heap value the collector tracks: GCString, Table,
// LuaClosure, CClosure, Thread, Userdata, Upvalue, Proto.
type gcObject interface {
	header() *gcHeader
	// gcTrace visits every Value/gcObject this object references,
	// marking each reachable through mark/markValue. Leaf objects
	// (GCString) implement it as a no-op.
	gcTrace(gc *GC)
}

// gcPhase is the incremental collector's state machine (§4.5).
type gcPhase uint8

const (
	phasePause gcPhase = iota
	phasePropagate
	phaseAtomic
	phaseSweep
	phaseCallFinalizers
)

// GCMode selects incremental or generational collection (§4.6).
type GCMode uint8

const (
	ModeIncremental GCMode = iota
	ModeGenerational
)

// RootProvider supplies the collector's root set: the main thread,
// the registry table, and any globals the embedding State exposes.
// Decoupled from *State via an interface so gc.go doesn't import the
// embedding layer.
type RootProvider interface {
	GCRoots() []Value
}

// GC is the tri-color incremental / generational collector (§4.5,
// §4.6). It does not itself reclaim memory — Go's runtime already
// does that safely — it reproduces the VM-visible protocol: object
// colors, write barriers, weak-table clearing order, and finalizer
// ordering. "Sweeping" an object means dropping the collector's last
// strong reference to it (unlinking it from allgc and its owning
// container); the Go garbage collector reclaims the backing memory on
// its own schedule once nothing else reaches it. See DESIGN.md.
type GC struct {
	mode GCMode
	roots RootProvider
	strings *StringTable

	allgc      gcObject
	currentWhite gcColor
	phase      gcPhase

	gray      []gcObject
	grayagain []gcObject

	weak      []*Table // tables with __mode; revisited/cleared in atomic
	allweak   []*Table

	finobj   []gcObject // objects with a live __gc, not yet queued
	tobefnz  []gcObject // finalizer queue, FIFO (§4.9)

	debt   *allocDebt
	nextID uint32

	deadWhite   gcColor
	sweepCursor *gcObject

	pauseMul   int // §4.5 "pause" tunable, percent
	stepMulPct int // "step multiplier" tunable, percent

	// generational tunables (§4.6)
	minorMulPct int
	majorMinor  int

	emergency bool
}

func newGC(mode GCMode, debt *allocDebt, roots RootProvider, strings *StringTable) *GC {
	return &GC{
		mode:         mode,
		roots:        roots,
		strings:      strings,
		currentWhite: gcWhite0,
		phase:        phasePause,
		debt:         debt,
		pauseMul:     200,
		stepMulPct:   100,
		minorMulPct:  20,
		majorMinor:   100,
	}
}

func (gc *GC) isWhite(o gcObject) bool {
	c := o.header().color
	return c == gcWhite0 || c == gcWhite1
}

func (gc *GC) isDead(o gcObject, deadWhite gcColor) bool { return o.header().color == deadWhite }

// track registers a freshly allocated object: prepended to allgc,
// colored the current white, aged New (§4.5 create_obj).
func (gc *GC) track(o gcObject) {
	h := o.header()
	h.color = gc.currentWhite
	h.age = ageNew
	h.next = gc.allgc
	gc.nextID++
	h.id = gc.nextID
	gc.allgc = o
}

// markObject transitions a white object to gray and pushes it on the
// mark worklist (§4.5 mark). No-op if already gray/black.
func (gc *GC) markObject(o gcObject) {
	if o == nil {
		return
	}
	h := o.header()
	if h.color != gc.currentWhite {
		return
	}
	h.color = gcGray
	gc.gray = append(gc.gray, o)
}

// markValue marks the collectable payload of v, if any.
func (gc *GC) markValue(v Value) { gc.markObject(v.object()) }

// barrierForward implements the forward write barrier (§4.5): fired
// when a black object obtains a reference to a white one. Marks the
// white object (or its collectable payload) directly rather than
// waiting for the next propagate step to reach it, preserving the
// strong tri-color invariant.
func (gc *GC) barrierForward(owner gcObject, ref Value) {
	if owner == nil || gc.phase == phasePause {
		return
	}
	if owner.header().color != gcBlack {
		return
	}
	if o := ref.object(); o != nil && gc.isWhite(o) {
		gc.markObject(o)
	}
}

// barrierBack implements the backward write barrier (§4.5): used for
// objects that mutate too often for per-write forward marking to pay
// off — Tables and Thread stacks. Instead the mutated black object is
// pushed back onto grayagain so the atomic phase re-traces it
// wholesale via its own gcTrace.
func (gc *GC) barrierBack(o gcObject) {
	if o == nil {
		return
	}
	h := o.header()
	if h.color != gcBlack {
		return
	}
	h.color = gcGray
	gc.grayagain = append(gc.grayagain, o)
}

// WriteBarrier is the single entry point call sites use: owner just
// stored ref into one of its own fields/slots. Dispatches to the
// cheaper forward barrier unless owner is a Table or Thread, which use
// the back barrier (§4.5 rationale: both mutate too often for
// per-element forward marking to be a net win).
func (gc *GC) WriteBarrier(owner gcObject, ref Value) {
	switch owner.(type) {
	case *Table, *Thread:
		gc.barrierBack(owner)
	default:
		gc.barrierForward(owner, ref)
	}
}

// Step advances the incremental collector by one unit of work,
// returning the amount of work actually performed. Step runs only when
// the embedder calls it (directly or through CollectGarbage); the
// allocation debt never triggers it.
func (gc *GC) Step() int64 {
	switch gc.phase {
	case phasePause:
		gc.startCycle()
		return 1
	case phasePropagate:
		return gc.propagateStep()
	case phaseAtomic:
		gc.atomic()
		return 64
	case phaseSweep:
		return gc.sweepStep()
	case phaseCallFinalizers:
		gc.callOneFinalizer()
		return 8
	}
	return 0
}

// StepAll drives the collector through one entire cycle synchronously
// (used by CollectGarbage("collect") / tests that want determinism).
func (gc *GC) StepAll() {
	gc.Step() // pause -> propagate
	for gc.phase != phasePause {
		gc.Step()
	}
}

func (gc *GC) startCycle() {
	gc.phase = phasePropagate
	gc.gray = gc.gray[:0]
	gc.grayagain = gc.grayagain[:0]
	gc.weak = gc.weak[:0]
	gc.allweak = gc.allweak[:0]
	if gc.roots != nil {
		for _, v := range gc.roots.GCRoots() {
			gc.markValue(v)
		}
	}
}

func (gc *GC) propagateStep() int64 {
	if len(gc.gray) == 0 {
		gc.phase = phaseAtomic
		return 1
	}
	n := len(gc.gray) - 1
	o := gc.gray[n]
	gc.gray = gc.gray[:n]
	o.header().color = gcBlack
	o.gcTrace(gc)
	return 1
}

// atomic finishes marking (re-tracing every grayagain object), clears
// unreachable entries from weak tables (the value-weak and fully weak
// tables on weak in one pass, then the ephemerons on allweak iterated
// to a fixpoint), decides which finalizable objects move to tobefnz,
// and flips the white color for the next cycle (§4.5, §4.10).
func (gc *GC) atomic() {
	for len(gc.grayagain) > 0 {
		n := len(gc.grayagain) - 1
		o := gc.grayagain[n]
		gc.grayagain = gc.grayagain[:n]
		o.header().color = gcBlack
		o.gcTrace(gc)
		for len(gc.gray) > 0 {
			gc.propagateStep()
		}
	}

	for _, t := range gc.weak {
		t.clearWeakSlots(gc)
	}
	// ephemerons (key-weak) need a fixpoint: clearing one may free a
	// value that was itself reachable only via another ephemeron's
	// value slot.
	changed := true
	for changed {
		changed = false
		for _, t := range gc.allweak {
			if t.clearWeakSlots(gc) {
				changed = true
			}
		}
	}

	gc.queueFinalizables()

	deadWhite := gc.currentWhite
	gc.currentWhite = otherWhite(deadWhite)
	gc.deadWhite = deadWhite
	gc.phase = phaseSweep
	gc.sweepCursor = &gc.allgc
}

func otherWhite(c gcColor) gcColor {
	if c == gcWhite0 {
		return gcWhite1
	}
	return gcWhite0
}

// sweepStep reclaims one dead object per call: unlinked from allgc,
// and from the string table if it's a GCString, then dropped — Go's
// own GC reclaims the memory once nothing else references it.
// Survivors (black/gray-touched) are reset to the new white so the
// next cycle treats them as unmarked again.
func (gc *GC) sweepStep() int64 {
	cur := *gc.sweepCursor
	if cur == nil {
		gc.strings.maybeShrink()
		if len(gc.tobefnz) > 0 {
			gc.phase = phaseCallFinalizers
		} else {
			gc.phase = phasePause
		}
		return 1
	}
	h := cur.header()
	next := h.next
	if gc.isDead(cur, gc.deadWhite) {
		*gc.sweepCursor = next
		if s, ok := cur.(*GCString); ok {
			gc.strings.remove(s)
			if s.external && s.free != nil {
				s.free()
			}
		}
		return 1
	}
	h.color = gc.currentWhite
	if h.age == ageTouched1 {
		h.age = ageOld
	}
	gc.sweepCursor = &h.next
	return 1
}

// queueFinalizables moves any tracked object whose metatable has
// __gc, that hasn't run its finalizer yet, and that is now dead
// (otherwise-unreachable) onto tobefnz, re-marking it alive in the
// process (§4.9's one-resurrection-per-lifetime rule: moving it to
// tobefnz keeps it alive through the *next* cycle, not indefinitely).
func (gc *GC) queueFinalizables() {
	remaining := gc.finobj[:0]
	for _, o := range gc.finobj {
		if gc.isWhite(o) {
			o.header().marked = true
			gc.markObject(o)
			for len(gc.gray) > 0 {
				gc.propagateStep()
			}
			gc.tobefnz = append(gc.tobefnz, o)
			continue
		}
		remaining = append(remaining, o)
	}
	gc.finobj = remaining
}

// RegisterFinalizable records that o's metatable carries __gc (§4.9).
// SetMetatable does not call it; the embedder registers o itself.
func (gc *GC) RegisterFinalizable(o gcObject) {
	if o.header().marked {
		return
	}
	gc.finobj = append(gc.finobj, o)
}

// PopFinalizer pops the next object queued for finalization, or nil.
// The embedding layer's pcall-protected runner calls this and invokes
// __gc itself (gc.go has no notion of metamethod dispatch).
func (gc *GC) PopFinalizer() gcObject {
	if len(gc.tobefnz) == 0 {
		return nil
	}
	o := gc.tobefnz[0]
	gc.tobefnz = gc.tobefnz[1:]
	return o
}

// callOneFinalizer doesn't itself invoke anything: actual __gc
// invocation happens via PopFinalizer from the state layer, so that a
// failing finalizer reports through the normal protected-call
// machinery instead of panicking out of the collector. This phase
// just hands the (possibly still non-empty) queue back to the caller
// and returns to pause — draining tobefnz is the embedder's job,
// paced by its own polling loop, not the collector's.
func (gc *GC) callOneFinalizer() {
	gc.phase = phasePause
}

// RegisterWeak records a table whose weak-key/weak-value flags are set
// so atomic can clear its dead slots; ephemeron (key-weak,
// value-strong) tables go on allweak since they need fixpoint
// iteration, others on weak. Nothing in the package sets those flags:
// SetMetatable does not read __mode, so no table is treated as weak.
func (gc *GC) RegisterWeak(t *Table, ephemeron bool) {
	if ephemeron {
		gc.allweak = append(gc.allweak, t)
	} else {
		gc.weak = append(gc.weak, t)
	}
}
