package vire

import (
	"fmt"
	"math"
)

// Tag is the single-byte type tag carried by every Value (§3.1).
//
//	bits 0..3: base type
//	bits 4..5: variant
//	bit  6:    collectable (payload is a heap object traced by the GC)
//	bit  7:    reserved
type Tag uint8

const (
	bitCollectable Tag = 1 << 6

	baseMask    Tag = 0x0F
	variantMask Tag = 0x30
	variantShl      = 4
)

// Base types.
const (
	tNil Tag = iota
	tBoolean
	tNumber
	tString
	tTable
	tFunction
	tUserdata
	tThread
	tUpvalue // internal, never escapes to user-visible Values
	tProto   // internal
)

func makeTag(base Tag, variant uint8, collectable bool) Tag {
	t := (base & baseMask) | ((Tag(variant) << variantShl) & variantMask)
	if collectable {
		t |= bitCollectable
	}
	return t
}

func (t Tag) base() Tag         { return t & baseMask }
func (t Tag) variant() uint8    { return uint8((t & variantMask) >> variantShl) }
func (t Tag) collectable() bool { return t&bitCollectable != 0 }

// Nil variants (§3.1): all compare truthy-equal to the user, but the
// VM must keep them distinct internally.
const (
	variantNilNormal uint8 = iota
	variantNilEmpty
	variantNilNotATable
)

// Number variants.
const (
	variantNumInt uint8 = iota
	variantNumFloat
)

// Boolean variants.
const (
	variantBoolFalse uint8 = iota
	variantBoolTrue
)

// String variants.
const (
	variantStrShort uint8 = iota
	variantStrLong
)

// Function variants.
const (
	variantFnLua uint8 = iota
	variantFnC
	variantFnLightC
)

var (
	tagNil       = makeTag(tNil, variantNilNormal, false)
	tagEmpty     = makeTag(tNil, variantNilEmpty, false)
	tagNotATable = makeTag(tNil, variantNilNotATable, false)
	tagFalse     = makeTag(tBoolean, variantBoolFalse, false)
	tagTrue      = makeTag(tBoolean, variantBoolTrue, false)
	tagInt       = makeTag(tNumber, variantNumInt, false)
	tagFloat     = makeTag(tNumber, variantNumFloat, false)
	tagShortStr  = makeTag(tString, variantStrShort, true)
	tagLongStr   = makeTag(tString, variantStrLong, true)
	tagTableV    = makeTag(tTable, 0, true)
	tagLuaFn     = makeTag(tFunction, variantFnLua, true)
	tagCFn       = makeTag(tFunction, variantFnC, true)
	tagLightCFn  = makeTag(tFunction, variantFnLightC, false)
	tagFullUD    = makeTag(tUserdata, 0, true)
	tagLightUD   = makeTag(tUserdata, 1, false)
	tagThreadV   = makeTag(tThread, 0, true)
	tagUpval     = makeTag(tUpvalue, 0, true)
	tagProto     = makeTag(tProto, 0, true)
)

// GoFunction is a light-C-function equivalent: a bare host callback,
// no captured state, no closure allocation (§3.5).
type GoFunction func(th *Thread) (nresults int, err error)

// Value is the tagged-union runtime representation (§3.1). Copying a
// Value is always a plain struct copy; for collectable payloads the
// copy never implies ownership transfer by itself — callers writing a
// Value into a heap slot must route through a write barrier (§4.5).
type Value struct {
	tag Tag
	num uint64 // integer bits (two's complement) or IEEE-754 float bits
	ref any    // gcObject | light-userdata payload | GoFunction | nil
}

// ---- Constructors ----

func Nil() Value       { return Value{tag: tagNil} }
func emptyVal() Value  { return Value{tag: tagEmpty} }
func notATable() Value { return Value{tag: tagNotATable} }

func Bool(b bool) Value {
	if b {
		return Value{tag: tagTrue}
	}
	return Value{tag: tagFalse}
}

func Int(i int64) Value { return Value{tag: tagInt, num: uint64(i)} }

func Float(f float64) Value { return Value{tag: tagFloat, num: math.Float64bits(f)} }

// LightUserdata wraps a bare host pointer. Not traced by the GC.
func LightUserdata(p any) Value { return Value{tag: tagLightUD, ref: p} }

// LightCFunction wraps a bare host callback. Not traced by the GC,
// not a closure — just a function pointer value (§3.5).
func LightCFunction(f GoFunction) Value { return Value{tag: tagLightCFn, ref: f} }

func fromString(s *GCString) Value {
	t := tagShortStr
	if s.long {
		t = tagLongStr
	}
	return Value{tag: t, ref: s}
}

func fromTable(t *Table) Value   { return Value{tag: tagTableV, ref: t} }
func fromThread(t *Thread) Value { return Value{tag: tagThreadV, ref: t} }

func fromLuaClosure(c *LuaClosure) Value { return Value{tag: tagLuaFn, ref: c} }
func fromCClosure(c *CClosure) Value     { return Value{tag: tagCFn, ref: c} }

func fromUserdata(u *Userdata) Value { return Value{tag: tagFullUD, ref: u} }

// ---- Predicates ----

func (v Value) IsNil() bool     { return v.tag.base() == tNil }
func (v Value) IsBoolean() bool { return v.tag.base() == tBoolean }
func (v Value) IsNumber() bool  { return v.tag.base() == tNumber }
func (v Value) IsInteger() bool { return v.tag == tagInt }
func (v Value) IsFloat() bool   { return v.tag == tagFloat }
func (v Value) IsString() bool  { return v.tag.base() == tString }
func (v Value) IsTable() bool   { return v.tag == tagTableV }
func (v Value) IsFunction() bool {
	return v.tag == tagLuaFn || v.tag == tagCFn || v.tag == tagLightCFn
}
func (v Value) IsThread() bool      { return v.tag == tagThreadV }
func (v Value) IsUserdata() bool    { return v.tag == tagFullUD || v.tag == tagLightUD }
func (v Value) IsCollectable() bool { return v.tag.collectable() }

// Truthy implements §3.1: only nil and false are falsy.
func (v Value) Truthy() bool { return !v.IsNil() && v.tag != tagFalse }

// Type returns the language-visible type name.
func (v Value) Type() string {
	switch v.tag.base() {
	case tNil:
		return "nil"
	case tBoolean:
		return "boolean"
	case tNumber:
		return "number"
	case tString:
		return "string"
	case tTable:
		return "table"
	case tFunction:
		return "function"
	case tUserdata:
		return "userdata"
	case tThread:
		return "thread"
	default:
		return "no value"
	}
}

// ---- Accessors ----
//
// Accessors assert the tag; DebugChecks gates the panic so release
// embedders pay nothing for it (§4.3).
var DebugChecks = false

func (v Value) assert(ok bool, want string) {
	if DebugChecks && !ok {
		panic(fmt.Sprintf("vire: Value is a %s, not a %s", v.Type(), want))
	}
}

func (v Value) AsInt() int64 {
	v.assert(v.tag == tagInt, "integer")
	return int64(v.num)
}

func (v Value) AsFloat() float64 {
	v.assert(v.tag == tagFloat, "float")
	return math.Float64frombits(v.num)
}

// AsNumber returns the value widened to float64 regardless of integer
// or float subtype; used by arithmetic's float-coercion paths.
func (v Value) AsNumber() float64 {
	if v.tag == tagInt {
		return float64(int64(v.num))
	}
	return math.Float64frombits(v.num)
}

func (v Value) AsBool() bool {
	v.assert(v.tag == tagTrue || v.tag == tagFalse, "boolean")
	return v.tag == tagTrue
}

func (v Value) AsString() *GCString {
	v.assert(v.IsString(), "string")
	s, _ := v.ref.(*GCString)
	return s
}

func (v Value) AsTable() *Table {
	v.assert(v.IsTable(), "table")
	t, _ := v.ref.(*Table)
	return t
}

func (v Value) AsThread() *Thread {
	v.assert(v.IsThread(), "thread")
	t, _ := v.ref.(*Thread)
	return t
}

func (v Value) AsUserdata() *Userdata {
	v.assert(v.IsUserdata(), "userdata")
	u, _ := v.ref.(*Userdata)
	return u
}

func (v Value) AsLightUserdata() any {
	v.assert(v.tag == tagLightUD, "light userdata")
	return v.ref
}

// object returns the underlying gcObject for collectable tags, or
// nil. Used internally by the GC to trace roots.
func (v Value) object() gcObject {
	if !v.tag.collectable() {
		return nil
	}
	g, _ := v.ref.(gcObject)
	return g
}

// ---- Equality ----

// RawEquals implements §4.3's raw equality: same tag family compares
// payloads; numbers cross-compare int vs float by value (§8 S6); NaN
// is never equal to itself via the normal float comparison.
func RawEquals(a, b Value) bool {
	if a.tag.base() == tNumber && b.tag.base() == tNumber {
		if a.tag == tagInt && b.tag == tagInt {
			return a.num == b.num
		}
		return a.AsNumber() == b.AsNumber()
	}
	if a.tag.base() != b.tag.base() {
		return false
	}
	switch a.tag.base() {
	case tNil:
		return true // all nil variants compare equal at language level
	case tBoolean:
		return a.tag == b.tag
	case tString:
		return stringsEqual(a.AsString(), b.AsString())
	case tTable:
		return a.ref.(*Table) == b.ref.(*Table)
	case tFunction:
		if a.tag != b.tag {
			return false
		}
		return a.ref == b.ref
	case tUserdata:
		return a.ref == b.ref
	case tThread:
		return a.ref.(*Thread) == b.ref.(*Thread)
	}
	return false
}

// String renders v for debugging / tostring's default path (no
// __tostring dispatch here — that's §4.13's job).
func (v Value) String() string {
	switch v.tag.base() {
	case tNil:
		return "nil"
	case tBoolean:
		return fmt.Sprintf("%t", v.AsBool())
	case tNumber:
		if v.tag == tagInt {
			return fmt.Sprintf("%d", v.AsInt())
		}
		return formatFloat(v.AsFloat())
	case tString:
		return v.AsString().String()
	case tTable:
		return fmt.Sprintf("table: %p", v.ref)
	case tFunction:
		return fmt.Sprintf("function: %p", v.ref)
	case tUserdata:
		return fmt.Sprintf("userdata: %p", v.ref)
	case tThread:
		return fmt.Sprintf("thread: %p", v.ref)
	default:
		return "no value"
	}
}
