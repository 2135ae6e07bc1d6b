package vire

// mmEvent indexes the no-metamethod absence bitmap (§4.12) and names
// the metafield each event dispatches to.
type mmEvent uint8

const (
	mmIndex mmEvent = iota
	mmNewIndex
	mmCall
	mmAdd
	mmSub
	mmMul
	mmMod
	mmPow
	mmDiv
	mmIDiv
	mmBAnd
	mmBOr
	mmBXor
	mmShl
	mmShr
	mmUnm
	mmBNot
	mmLen
	mmConcat
	mmEq
	mmLt
	mmLe
	mmToString
	mmGC
	mmClose
	mmMode
	mmMetatable
	mmName
	mmCount
)

var mmNames = [mmCount]string{
	"__index", "__newindex", "__call",
	"__add", "__sub", "__mul", "__mod", "__pow", "__div", "__idiv",
	"__band", "__bor", "__bxor", "__shl", "__shr",
	"__unm", "__bnot", "__len", "__concat",
	"__eq", "__lt", "__le",
	"__tostring", "__gc", "__close", "__mode", "__metatable", "__name",
}

func (e mmEvent) String() string { return mmNames[e] }

// getMetatable returns v's metatable: tables and userdata carry their
// own; every other type shares one per-GlobalState default metatable,
// settable only by the embedding API (§4.12).
func (g *GlobalState) getMetatable(v Value) *Table {
	switch {
	case v.IsTable():
		return v.AsTable().Metatable()
	case v.IsUserdata():
		if v.tag == tagFullUD {
			return v.AsUserdata().Metatable
		}
		return g.typeMetatables[tUserdata]
	default:
		return g.typeMetatables[v.tag.base()]
	}
}

// getMetamethod looks up event on v's metatable, honoring the
// no-metamethod absence bitmap fast path for tables (§4.12).
func (g *GlobalState) getMetamethod(v Value, event mmEvent) Value {
	if v.IsTable() {
		t := v.AsTable()
		if t.flags&(1<<event) != 0 {
			return Nil()
		}
		mt := t.Metatable()
		if mt == nil {
			return Nil()
		}
		m := mt.Get(g.metaKey(event))
		if m.IsNil() {
			t.flags |= 1 << event
		}
		return m
	}
	mt := g.getMetatable(v)
	if mt == nil {
		return Nil()
	}
	return mt.Get(g.metaKey(event))
}

func (g *GlobalState) metaKey(event mmEvent) Value {
	return fromString(g.strings.NewShort([]byte(mmNames[event])))
}

// Index implements §4.12's chained __index dispatch: up to 100 hops
// through table/function __index metamethods before declaring a loop
// (matching the original's MAXTAGLOOP safeguard).
func (g *GlobalState) Index(th *Thread, v, key Value) Value {
	for i := 0; i < 100; i++ {
		if v.IsTable() {
			t := v.AsTable()
			raw := t.Get(key)
			if !raw.IsNil() {
				return raw
			}
			mm := g.getMetamethod(v, mmIndex)
			if mm.IsNil() {
				return Nil()
			}
			if mm.IsFunction() {
				return g.callValue(th, mm, []Value{v, key}, 1)[0]
			}
			v = mm
			continue
		}
		mm := g.getMetamethod(v, mmIndex)
		if mm.IsNil() {
			panic(NewErrorf("attempt to index a %s value", v.Type()))
		}
		if mm.IsFunction() {
			return g.callValue(th, mm, []Value{v, key}, 1)[0]
		}
		v = mm
	}
	panic(NewErrorf("'__index' chain too long; possible loop"))
}

// NewIndex implements the __newindex counterpart (§4.12).
func (g *GlobalState) NewIndex(th *Thread, v, key, val Value) {
	for i := 0; i < 100; i++ {
		if v.IsTable() {
			t := v.AsTable()
			if !t.Get(key).IsNil() {
				t.Set(key, val, g.gc)
				return
			}
			mm := g.getMetamethod(v, mmNewIndex)
			if mm.IsNil() {
				t.Set(key, val, g.gc)
				return
			}
			if mm.IsFunction() {
				g.callValue(th, mm, []Value{v, key, val}, 0)
				return
			}
			v = mm
			continue
		}
		mm := g.getMetamethod(v, mmNewIndex)
		if mm.IsNil() {
			panic(NewErrorf("attempt to index a %s value", v.Type()))
		}
		if mm.IsFunction() {
			g.callValue(th, mm, []Value{v, key, val}, 0)
			return
		}
		v = mm
	}
	panic(NewErrorf("'__newindex' chain too long; possible loop"))
}

// Arith dispatches an arithmetic/bitwise event to a's or b's
// metamethod when at least one operand isn't a plain number (§4.12,
// §3.2's coercion rules are tried first by the VM before falling back
// here).
func (g *GlobalState) Arith(th *Thread, event mmEvent, a, b Value) Value {
	mm := g.getMetamethod(a, event)
	if mm.IsNil() {
		mm = g.getMetamethod(b, event)
	}
	if mm.IsNil() {
		panic(NewErrorf("attempt to perform arithmetic on a %s value", a.Type()))
	}
	return g.callValue(th, mm, []Value{a, b}, 1)[0]
}

// Equals implements §3.2/§4.12 equality: raw equality first, __eq
// only consulted when both operands are tables or both are full
// userdata and raw equality said no.
func (g *GlobalState) Equals(th *Thread, a, b Value) bool {
	if RawEquals(a, b) {
		return true
	}
	sameFamily := (a.IsTable() && b.IsTable()) || (a.tag == tagFullUD && b.tag == tagFullUD)
	if !sameFamily {
		return false
	}
	mm := g.getMetamethod(a, mmEq)
	if mm.IsNil() {
		mm = g.getMetamethod(b, mmEq)
	}
	if mm.IsNil() {
		return false
	}
	return g.callValue(th, mm, []Value{a, b}, 1)[0].Truthy()
}

// ToStringMeta renders v via __tostring/__name when present, falling
// back to Value.String (§4.13).
func (g *GlobalState) ToStringMeta(th *Thread, v Value) string {
	if mm := g.getMetamethod(v, mmToString); !mm.IsNil() {
		return g.callValue(th, mm, []Value{v}, 1)[0].String()
	}
	if mt := g.getMetatable(v); mt != nil {
		if name := mt.Get(g.metaKey(mmName)); name.IsString() {
			return name.AsString().String() + ": " + v.String()[len(v.Type())+2:]
		}
	}
	return v.String()
}
