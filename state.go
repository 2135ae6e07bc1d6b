package vire

// GlobalState is the heap shared by a main thread and every coroutine
// spawned from it (§3.7): one GC, one string table, one set of
// per-base-type default metatables, one registry. Mirrors the
// original's separation between lua_State (a thread) and global_State
// (everything a thread borrows).
type GlobalState struct {
	gc      *GC
	strings *StringTable
	debt    *allocDebt

	typeMetatables [16]*Table // indexed by Tag base type

	registry *Table
	nextRef  int64

	main *Thread

	// coroLink holds this instance's coroutine resume/yield channel
	// pairs. Scoped per GlobalState (not a package-level map) so that
	// independent VM instances — which spec.md §5 allows to run on
	// separate OS threads with no shared memory — never contend on a
	// shared map; only one goroutine drives a given coroutine's entry
	// at a time, so no further synchronization is needed here.
	coroLink map[*Thread]*coroChannels

	Config *Config
}

// GCRoots implements RootProvider: the registry (which itself holds
// the main thread and every ref'd value, §4.14) plus every live
// thread's own stack, since a suspended coroutine isn't reachable
// through the registry unless the embedder explicitly stashed it.
func (g *GlobalState) GCRoots() []Value {
	roots := []Value{fromTable(g.registry)}
	for th := range g.coroLink {
		roots = append(roots, fromThread(th))
	}
	for _, mt := range g.typeMetatables {
		if mt != nil {
			roots = append(roots, fromTable(mt))
		}
	}
	return roots
}

// NewState constructs a fresh runtime: string table, GC, registry
// table (with the main thread pre-registered at a well-known key so
// it's always reachable), and the main Thread.
func NewState(cfg *Config) *State {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	g := &GlobalState{Config: cfg, coroLink: make(map[*Thread]*coroChannels)}
	g.debt = newAllocDebt(cfg.Alloc)
	g.gc = newGC(cfg.GCMode, g.debt, g, nil)
	g.strings = newStringTable(cfg.StringSeed, g.gc)
	g.gc.strings = g.strings

	g.registry = NewTable(g.gc)
	g.main = newThread(g)
	g.registry.Set(fromString(g.strings.NewShort([]byte("main"))), fromThread(g.main), g.gc)

	return &State{g: g, th: g.main}
}

// State is the embedder-facing handle (§4.14): a safe typed Go facade
// over a Thread, rather than the original's index-based stack API —
// Go callers pass and receive Values directly.
type State struct {
	g  *GlobalState
	th *Thread
}

// MainThread returns the State's underlying main Thread, for
// coroutine.create-style APIs that need to spawn siblings of it.
func (s *State) MainThread() *Thread { return s.th }

// NewTable allocates an empty table tracked by this State's GC.
func (s *State) NewTable() *Table { return NewTable(s.g.gc) }

// NewString interns (if short) or allocates (if long) a Go string as
// a GCString, per §3.3's shortStringCap boundary.
func (s *State) NewString(str string) *GCString {
	b := []byte(str)
	if len(b) <= shortStringCap {
		return s.g.strings.NewShort(b)
	}
	return s.g.strings.NewLong(b)
}

// NewClosure wraps a host GoFunction with captured upvalues.
func (s *State) NewClosure(fn GoFunction, ups ...Value) *CClosure {
	return NewCClosure(fn, ups, s.g.gc)
}

// Globals returns the registry's global-variables table, creating it
// on first use (lazily, so a State that never touches globals never
// pays for the table).
func (s *State) Globals() *Table {
	key := fromString(s.g.strings.NewShort([]byte("_G")))
	v := s.g.registry.Get(key)
	if v.IsTable() {
		return v.AsTable()
	}
	t := NewTable(s.g.gc)
	s.g.registry.Set(key, fromTable(t), s.g.gc)
	return t
}

// SetTypeMetatable installs the shared metatable for every value of a
// given base type other than table/userdata, which carry their own
// (§4.12) — e.g. giving all strings a metatable whose __index is the
// string library.
func (s *State) SetTypeMetatable(base Tag, mt *Table) { s.g.typeMetatables[base] = mt }

// Call invokes fn with args, under PCall protection, returning results
// or the *Error raised.
func (s *State) Call(fn Value, args ...Value) ([]Value, *Error) {
	var out []Value
	err := s.th.PCall(Nil(), func() error {
		out = s.g.callValue(s.th, fn, args, -1)
		return nil
	})
	return out, err
}

// Load instantiates a closure over proto with no upvalues bound
// (top-level chunks compile to a Proto with zero upvalues in the
// original convention, aside from the implicit _ENV upvalue an
// embedder wires up itself by assigning into the closure's Upvalues).
func (s *State) Load(proto *Proto) *LuaClosure { return NewLuaClosure(proto, s.g.gc) }

// CollectGarbage drives the collector. "step" advances one increment
// of work (what an embedder calls periodically from its own event
// loop); "collect" forces a complete cycle synchronously, draining
// any queued finalizers as it goes (§4.5, §4.9).
func (s *State) CollectGarbage(what string) {
	switch what {
	case "step":
		s.g.gc.Step()
		s.runDueFinalizers()
	case "collect":
		s.g.gc.StepAll()
		s.runDueFinalizers()
	}
}

func (s *State) runDueFinalizers() {
	for {
		o, ok := s.g.gc.popFinalizable()
		if !ok {
			break
		}
		s.runFinalizer(o)
	}
}

// popFinalizable exposes PopFinalizer under the name the embedding
// layer's polling loop expects, with the bool-ok idiom it prefers over
// a nil-interface check at call sites.
func (gc *GC) popFinalizable() (gcObject, bool) {
	o := gc.PopFinalizer()
	return o, o != nil
}

// runFinalizer invokes a dead object's __gc, swallowing any error it
// raises: a failing finalizer must not prevent the rest of the queue
// or the embedder's loop from continuing (§4.9).
func (s *State) runFinalizer(o gcObject) {
	defer func() { recover() }()
	var v Value
	switch x := o.(type) {
	case *Table:
		v = fromTable(x)
	case *Userdata:
		v = fromUserdata(x)
	default:
		return
	}
	mm := s.g.getMetamethod(v, mmGC)
	if mm.IsNil() {
		return
	}
	s.th.PCall(Nil(), func() error {
		s.g.callValue(s.th, mm, []Value{v}, 0)
		return nil
	})
}

// Ref stores v in the registry under a fresh integer key and returns
// it, for embedders that need a stable handle outliving a Go stack
// frame (§4.14, mirroring luaL_ref/luaL_unref).
func (s *State) Ref(v Value) int64 {
	s.g.nextRef++
	id := s.g.nextRef
	s.g.registry.Set(Int(-id), v, s.g.gc)
	return id
}

func (s *State) GetRef(id int64) Value { return s.g.registry.Get(Int(-id)) }

func (s *State) Unref(id int64) { s.g.registry.Set(Int(-id), Nil(), s.g.gc) }
