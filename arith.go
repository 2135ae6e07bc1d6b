package vire

import (
	"math"
	"strings"
)

// binOp implements §3.2's arithmetic/bitwise coercion table: both
// operands try to coerce to numbers first (a numeric string counts,
// per §3.2's "arithmetic on strings" rule); division and power always
// produce a float; bitwise ops require both operands to have an exact
// integer representation; anything that doesn't fit falls through to
// the §4.12 metamethod.
func (g *GlobalState) binOp(th *Thread, op OpCode, a, b Value) Value {
	an, aok := coerceNumber(a)
	bn, bok := coerceNumber(b)
	if aok && bok {
		switch op {
		case OpAdd, OpSub, OpMul, OpMod, OpIDiv:
			if an.tag == tagInt && bn.tag == tagInt {
				return intArith(op, an.AsInt(), bn.AsInt())
			}
			return Float(floatArith(op, an.AsNumber(), bn.AsNumber()))
		case OpPow, OpDiv:
			return Float(floatArith(op, an.AsNumber(), bn.AsNumber()))
		case OpBAnd, OpBOr, OpBXor, OpShl, OpShr:
			ai, aexact := toIntegerExact(an)
			bi, bexact := toIntegerExact(bn)
			if aexact && bexact {
				return Int(bitwiseArith(op, ai, bi))
			}
		}
	}
	return g.Arith(th, opToEvent(op), a, b)
}

// coerceNumber implements §3.2: a Value is already a number, or (for
// arithmetic contexts only) a string that parses as one.
func coerceNumber(v Value) (Value, bool) {
	if v.IsNumber() {
		return v, true
	}
	if v.IsString() {
		if n, ok := ParseNumber(v.AsString().String()); ok {
			return n, true
		}
	}
	return Value{}, false
}

func toIntegerExact(v Value) (int64, bool) {
	if v.tag == tagInt {
		return v.AsInt(), true
	}
	f := v.AsFloat()
	i := int64(f)
	return i, float64(i) == f
}

func intArith(op OpCode, a, b int64) Value {
	switch op {
	case OpAdd:
		return Int(a + b)
	case OpSub:
		return Int(a - b)
	case OpMul:
		return Int(a * b)
	case OpMod:
		if b == 0 {
			panic(NewErrorf("attempt to perform 'n%%0'"))
		}
		m := a % b
		if m != 0 && (m^b) < 0 {
			m += b
		}
		return Int(m)
	case OpIDiv:
		if b == 0 {
			panic(NewErrorf("attempt to perform 'n//0'"))
		}
		q := a / b
		if (a%b != 0) && ((a ^ b) < 0) {
			q--
		}
		return Int(q)
	}
	panic("vire: unreachable intArith op")
}

func floatArith(op OpCode, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpPow:
		return math.Pow(a, b)
	case OpMod:
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m
	case OpIDiv:
		return math.Floor(a / b)
	}
	panic("vire: unreachable floatArith op")
}

func bitwiseArith(op OpCode, a, b int64) int64 {
	switch op {
	case OpBAnd:
		return a & b
	case OpBOr:
		return a | b
	case OpBXor:
		return a ^ b
	case OpShl:
		return shiftLeft(a, b)
	case OpShr:
		return shiftLeft(a, -b)
	}
	panic("vire: unreachable bitwiseArith op")
}

// shiftLeft implements §3.2's shift semantics: shifts by >=64 (either
// direction) yield 0; a negative count shifts the other way.
func shiftLeft(a, n int64) int64 {
	if n <= -64 || n >= 64 {
		return 0
	}
	if n >= 0 {
		return int64(uint64(a) << uint(n))
	}
	return int64(uint64(a) >> uint(-n))
}

func opToEvent(op OpCode) mmEvent {
	switch op {
	case OpAdd:
		return mmAdd
	case OpSub:
		return mmSub
	case OpMul:
		return mmMul
	case OpMod:
		return mmMod
	case OpPow:
		return mmPow
	case OpDiv:
		return mmDiv
	case OpIDiv:
		return mmIDiv
	case OpBAnd:
		return mmBAnd
	case OpBOr:
		return mmBOr
	case OpBXor:
		return mmBXor
	case OpShl:
		return mmShl
	case OpShr:
		return mmShr
	}
	panic("vire: unreachable opToEvent")
}

func (g *GlobalState) unaryMinus(th *Thread, v Value) Value {
	if n, ok := coerceNumber(v); ok {
		if n.tag == tagInt {
			return Int(-n.AsInt())
		}
		return Float(-n.AsFloat())
	}
	return g.Arith(th, mmUnm, v, v)
}

func (g *GlobalState) bitwiseNot(th *Thread, v Value) Value {
	if n, ok := coerceNumber(v); ok {
		if i, exact := toIntegerExact(n); exact {
			return Int(^i)
		}
	}
	return g.Arith(th, mmBNot, v, v)
}

// length implements §3.2/§4.12 `#`: strings get their byte length
// directly; tables consult __len first, falling back to Table.Len.
func (g *GlobalState) length(th *Thread, v Value) Value {
	if v.IsString() {
		return Int(int64(v.AsString().Len()))
	}
	if mm := g.getMetamethod(v, mmLen); !mm.IsNil() {
		return g.callValue(th, mm, []Value{v}, 1)[0]
	}
	if v.IsTable() {
		return Int(v.AsTable().Len())
	}
	panic(NewErrorf("attempt to get length of a %s value", v.Type()))
}

// concat implements `..` across registers base..base+n (inclusive),
// coercing numbers to strings and falling back to __concat for any
// adjacent pair that isn't string/number (§3.2, §4.12). Concat is
// right-associative in the original; the run is folded pairwise from
// the right, allocating one intermediate string per folded pair.
func (g *GlobalState) concat(th *Thread, ci *CallInfo, fromReg, toReg int) Value {
	n := toReg - fromReg + 1
	vals := make([]Value, n)
	for i := 0; i < n; i++ {
		vals[i] = th.stack[ci.Base+fromReg+i]
	}
	for len(vals) > 1 {
		a, b := vals[len(vals)-2], vals[len(vals)-1]
		if concatable(a) && concatable(b) {
			var sb strings.Builder
			sb.WriteString(concatString(a))
			sb.WriteString(concatString(b))
			vals[len(vals)-2] = fromString(g.strings.NewLong([]byte(sb.String())))
			vals = vals[:len(vals)-1]
			continue
		}
		mm := g.getMetamethod(a, mmConcat)
		if mm.IsNil() {
			mm = g.getMetamethod(b, mmConcat)
		}
		if mm.IsNil() {
			bad := a
			if concatable(a) {
				bad = b
			}
			panic(NewErrorf("attempt to concatenate a %s value", bad.Type()))
		}
		vals[len(vals)-2] = g.callValue(th, mm, []Value{a, b}, 1)[0]
		vals = vals[:len(vals)-1]
	}
	return vals[0]
}

func concatable(v Value) bool { return v.IsString() || v.IsNumber() }

func concatString(v Value) string {
	if v.IsString() {
		return v.AsString().String()
	}
	return v.String()
}

// less/lessEqual implement §3.2/§4.12 ordered comparisons: two
// integers compare as integers, any other pair of numbers compares as
// float64, strings compare byte-lexicographically, anything else needs
// __lt/__le.
func (g *GlobalState) less(th *Thread, a, b Value) bool {
	if a.tag == tagInt && b.tag == tagInt {
		return a.AsInt() < b.AsInt()
	}
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber()
	}
	if a.IsString() && b.IsString() {
		return a.AsString().String() < b.AsString().String()
	}
	mm := g.getMetamethod(a, mmLt)
	if mm.IsNil() {
		mm = g.getMetamethod(b, mmLt)
	}
	if mm.IsNil() {
		panic(NewErrorf("attempt to compare two %s values", a.Type()))
	}
	return g.callValue(th, mm, []Value{a, b}, 1)[0].Truthy()
}

func (g *GlobalState) lessEqual(th *Thread, a, b Value) bool {
	if a.tag == tagInt && b.tag == tagInt {
		return a.AsInt() <= b.AsInt()
	}
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() <= b.AsNumber()
	}
	if a.IsString() && b.IsString() {
		return a.AsString().String() <= b.AsString().String()
	}
	mm := g.getMetamethod(a, mmLe)
	if mm.IsNil() {
		mm = g.getMetamethod(b, mmLe)
	}
	if mm.IsNil() {
		panic(NewErrorf("attempt to compare two %s values", a.Type()))
	}
	return g.callValue(th, mm, []Value{a, b}, 1)[0].Truthy()
}

// forNumbers/forContinues/forStep implement the numeric `for`'s setup
// and step rules (§3.2/§4.8 FORPREP/FORLOOP): all-integer loops stay
// integer arithmetic; any float operand promotes the whole loop.
func forNumbers(init, limit, step Value) (Value, Value, Value) {
	if init.tag == tagInt && limit.tag == tagInt && step.tag == tagInt {
		if step.AsInt() == 0 {
			panic(NewErrorf("'for' step is zero"))
		}
		return init, limit, step
	}
	fi, fl, fs := init.AsNumber(), limit.AsNumber(), step.AsNumber()
	if fs == 0 {
		panic(NewErrorf("'for' step is zero"))
	}
	return Float(fi), Float(fl), Float(fs)
}

func forContinues(v, limit, step Value) bool {
	if v.tag == tagInt {
		if step.AsInt() > 0 {
			return v.AsInt() <= limit.AsInt()
		}
		return v.AsInt() >= limit.AsInt()
	}
	if step.AsNumber() > 0 {
		return v.AsNumber() <= limit.AsNumber()
	}
	return v.AsNumber() >= limit.AsNumber()
}

func forStep(v, step Value) Value {
	if v.tag == tagInt {
		return Int(v.AsInt() + step.AsInt())
	}
	return Float(v.AsNumber() + step.AsNumber())
}
