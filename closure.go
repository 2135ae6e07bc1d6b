package vire

// Upvalue is a captured variable (§3.5). Open upvalues point into a
// live stack slot (by index, not pointer — §4.8's stack-reallocation
// discipline: the Thread's stack can grow and move underneath a
// running call); closing an upvalue copies the Value out into val and
// switches it to the closed state.
type Upvalue struct {
	gcHeader

	owner *Thread // nil once closed
	stackIdx int  // index into owner.stack while open

	val Value // authoritative once closed

	// openNext chains this upvalue into its owning Thread's
	// open-upvalue list, kept sorted by stackIdx so FindOrMakeUpvalue
	// can do a single linear scan (§4.8).
	openNext *Upvalue
}

func (u *Upvalue) header() *gcHeader { return &u.gcHeader }

func (u *Upvalue) gcTrace(gc *GC) {
	gc.markValue(u.Get())
}

// Get reads the upvalue's current value, whether open or closed.
func (u *Upvalue) Get() Value {
	if u.owner != nil {
		return u.owner.stack[u.stackIdx]
	}
	return u.val
}

// Set writes through to the live stack slot while open, or to the
// closed storage afterward.
func (u *Upvalue) Set(v Value, gc *GC) {
	if u.owner != nil {
		u.owner.stack[u.stackIdx] = v
	} else {
		u.val = v
	}
	if gc != nil {
		gc.WriteBarrier(u, v)
	}
}

func (u *Upvalue) IsOpen() bool { return u.owner != nil }

// Close detaches the upvalue from its stack slot, copying the value
// out; called when the owning stack frame returns or a to-be-closed
// unwind passes this slot (§4.8).
func (u *Upvalue) Close() {
	if u.owner == nil {
		return
	}
	u.val = u.owner.stack[u.stackIdx]
	u.owner = nil
	u.openNext = nil
}

// LuaClosure pairs a compiled Prototype with its captured upvalues
// (§3.5).
type LuaClosure struct {
	gcHeader

	Proto    *Proto
	Upvalues []*Upvalue
}

func (c *LuaClosure) header() *gcHeader { return &c.gcHeader }

func (c *LuaClosure) gcTrace(gc *GC) {
	gc.markObject(c.Proto)
	for _, uv := range c.Upvalues {
		gc.markObject(uv)
	}
}

// NewLuaClosure allocates a closure over proto with one empty upvalue
// slot per entry of proto.Upvalues (filled in by OpClosure from those
// descriptors, or by the embedder for a top-level closure, §4.8).
func NewLuaClosure(proto *Proto, gc *GC) *LuaClosure {
	c := &LuaClosure{Proto: proto, Upvalues: make([]*Upvalue, len(proto.Upvalues))}
	c.gcHeader.tag = tagLuaFn
	if gc != nil {
		gc.track(c)
	}
	return c
}

// CClosure is a host function bundled with captured Values (§3.5),
// the heavier sibling of the bare GoFunction light-C-function.
type CClosure struct {
	gcHeader

	Fn      GoFunction
	Upvalues []Value
}

func (c *CClosure) header() *gcHeader { return &c.gcHeader }

func (c *CClosure) gcTrace(gc *GC) {
	for _, v := range c.Upvalues {
		gc.markValue(v)
	}
}

// NewCClosure allocates a host closure capturing ups.
func NewCClosure(fn GoFunction, ups []Value, gc *GC) *CClosure {
	c := &CClosure{Fn: fn, Upvalues: append([]Value(nil), ups...)}
	c.gcHeader.tag = tagCFn
	if gc != nil {
		gc.track(c)
	}
	return c
}

// Userdata is a host value opaque to the language, carrying an
// optional metatable and a block of per-instance Values (the "uservalue"
// slots, §3.6).
type Userdata struct {
	gcHeader

	Data       any
	Metatable  *Table
	UserValues []Value
}

func (u *Userdata) header() *gcHeader { return &u.gcHeader }

func (u *Userdata) gcTrace(gc *GC) {
	for _, v := range u.UserValues {
		gc.markValue(v)
	}
	if u.Metatable != nil {
		gc.markObject(u.Metatable)
	}
}

// NewUserdata allocates a full userdata wrapping data with nUserValues
// extra Value slots.
func NewUserdata(data any, nUserValues int, gc *GC) *Userdata {
	u := &Userdata{Data: data, UserValues: make([]Value, nUserValues)}
	u.gcHeader.tag = tagFullUD
	if gc != nil {
		gc.track(u)
	}
	return u
}
