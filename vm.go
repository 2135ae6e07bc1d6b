package vire

// callValue is the single entry point every call instruction, pcall,
// metamethod dispatch, and the embedding API funnels through (§4.8,
// §4.9). fn is the value being called (already resolved through any
// __call chain below); args are already-evaluated argument Values;
// nresults is the number of results the caller wants (-1 = all of
// them, §4.8 LUA_MULTRET).
func (g *GlobalState) callValue(th *Thread, fn Value, args []Value, nresults int) []Value {
	const maxCallDepth = 200
	if th.depth() >= maxCallDepth {
		panic(&Error{Kind: ErrStackOverflow, Value: Bool(false)._errStr("stack overflow")})
	}
	switch {
	case fn.tag == tagLightCFn:
		return g.callGoFunction(th, fn.ref.(GoFunction), args, nresults)
	case fn.tag == tagCFn:
		cc := fn.ref.(*CClosure)
		return g.callGoFunction(th, cc.Fn, args, nresults)
	case fn.tag == tagLuaFn:
		return g.callLuaClosure(th, fn.ref.(*LuaClosure), args, nresults)
	default:
		mm := g.getMetamethod(fn, mmCall)
		if mm.IsNil() {
			panic(NewErrorf("attempt to call a %s value", fn.Type()))
		}
		extended := append([]Value{fn}, args...)
		return g.callValue(th, mm, extended, nresults)
	}
}

func (th *Thread) depth() int {
	n := 0
	for ci := th.current; ci != nil && ci != th.base; ci = ci.Prev {
		n++
	}
	return n
}

func (g *GlobalState) callGoFunction(th *Thread, fn GoFunction, args []Value, nresults int) []Value {
	base := th.current.Top
	th.grow(base + len(args) + 1)
	for i, a := range args {
		th.stack[base+i] = a
	}
	ci := &CallInfo{Prev: th.current, Base: base, Top: base + len(args), NResults: nresults}
	th.current.Next = ci
	th.current = ci
	n, err := fn(th)
	th.current = ci.Prev
	th.current.Next = nil
	if err != nil {
		if verr, ok := err.(*Error); ok {
			panic(verr)
		}
		panic(NewErrorf("%s", err.Error()))
	}
	results := make([]Value, n)
	copy(results, th.stack[base:base+n])
	return adjustResults(results, nresults)
}

func (g *GlobalState) callLuaClosure(th *Thread, cl *LuaClosure, args []Value, nresults int) []Value {
	p := cl.Proto
	base := th.current.Top
	th.grow(base + p.MaxStackSize + len(args) + 1)
	n := copy(th.stack[base:], args)
	for i := n; i < p.NumParams; i++ {
		th.stack[base+i] = Nil()
	}
	var varargs []Value
	if p.IsVararg && len(args) > p.NumParams {
		varargs = append(varargs, args[p.NumParams:]...)
	}
	for i := p.NumParams; i < p.MaxStackSize; i++ {
		th.stack[base+i] = Nil()
	}
	ci := &CallInfo{
		Prev: th.current, Closure: cl,
		Base: base, Top: base + p.MaxStackSize,
		NResults: nresults, Status: CistLua,
	}
	th.current.Next = ci
	th.current = ci
	results := g.execute(th, ci, varargs)
	th.current = ci.Prev
	th.current.Next = nil
	return adjustResults(results, nresults)
}

func adjustResults(got []Value, want int) []Value {
	if want < 0 {
		return got
	}
	for len(got) < want {
		got = append(got, Nil())
	}
	return got[:want]
}

// execute runs ci's bytecode to completion (a RETURN instruction) and
// returns its result Values. Loops back into callValue for CALL/
// TAILCALL, so Go's own call stack mirrors the Lua call stack depth
// (bounded by maxCallDepth rather than by a manual C-stack check,
// since Go stacks grow dynamically).
func (g *GlobalState) execute(th *Thread, ci *CallInfo, varargs []Value) []Value {
	p := ci.Closure.Proto
	r := func(i int) Value { return th.stack[ci.Base+i] }
	setR := func(i int, v Value) {
		th.stack[ci.Base+i] = v
		g.gc.barrierBack(th)
	}
	rk := func(arg int) Value {
		if IsConstant(arg) {
			return p.Constants[ConstantIndex(arg)]
		}
		return r(arg)
	}

	for {
		inst := p.Code[ci.PC]
		ci.PC++
		switch inst.Op() {
		case OpMove:
			setR(inst.A(), r(inst.B()))
		case OpLoadK:
			setR(inst.A(), p.Constants[inst.Bx()])
		case OpLoadBool:
			setR(inst.A(), Bool(inst.B() != 0))
			if inst.C() != 0 {
				ci.PC++
			}
		case OpLoadNil:
			for i := 0; i <= inst.B(); i++ {
				setR(inst.A()+i, Nil())
			}
		case OpGetUpval:
			setR(inst.A(), ci.Closure.Upvalues[inst.B()].Get())
		case OpSetUpval:
			ci.Closure.Upvalues[inst.B()].Set(r(inst.A()), g.gc)
		case OpGetTabUp:
			uv := ci.Closure.Upvalues[inst.B()].Get()
			setR(inst.A(), g.Index(th, uv, rk(inst.C())))
		case OpGetTable:
			setR(inst.A(), g.Index(th, r(inst.B()), rk(inst.C())))
		case OpSetTabUp:
			uv := ci.Closure.Upvalues[inst.A()].Get()
			g.NewIndex(th, uv, rk(inst.B()), rk(inst.C()))
		case OpSetTable:
			g.NewIndex(th, r(inst.A()), rk(inst.B()), rk(inst.C()))
		case OpNewTable:
			setR(inst.A(), fromTable(NewTable(g.gc)))
		case OpSelf:
			obj := r(inst.B())
			setR(inst.A()+1, obj)
			setR(inst.A(), g.Index(th, obj, rk(inst.C())))
		case OpAdd, OpSub, OpMul, OpMod, OpPow, OpDiv, OpIDiv,
			OpBAnd, OpBOr, OpBXor, OpShl, OpShr:
			setR(inst.A(), g.binOp(th, inst.Op(), rk(inst.B()), rk(inst.C())))
		case OpUnm:
			setR(inst.A(), g.unaryMinus(th, r(inst.B())))
		case OpBNot:
			setR(inst.A(), g.bitwiseNot(th, r(inst.B())))
		case OpNot:
			setR(inst.A(), Bool(!r(inst.B()).Truthy()))
		case OpLen:
			setR(inst.A(), g.length(th, r(inst.B())))
		case OpConcat:
			setR(inst.A(), g.concat(th, ci, inst.B(), inst.C()))
		case OpJmp:
			ci.PC += inst.SBx()
		case OpEq:
			if g.Equals(th, rk(inst.B()), rk(inst.C())) != (inst.A() != 0) {
				ci.PC++
			}
		case OpLt:
			if g.less(th, rk(inst.B()), rk(inst.C())) != (inst.A() != 0) {
				ci.PC++
			}
		case OpLe:
			if g.lessEqual(th, rk(inst.B()), rk(inst.C())) != (inst.A() != 0) {
				ci.PC++
			}
		case OpTest:
			if r(inst.A()).Truthy() != (inst.C() != 0) {
				ci.PC++
			}
		case OpTestSet:
			v := r(inst.B())
			if v.Truthy() == (inst.C() != 0) {
				setR(inst.A(), v)
			} else {
				ci.PC++
			}
		case OpCall:
			nargs := inst.B() - 1
			var args []Value
			if nargs < 0 {
				args = append([]Value(nil), th.stack[ci.Base+inst.A()+1:ci.Top]...)
			} else {
				args = make([]Value, nargs)
				for i := 0; i < nargs; i++ {
					args[i] = r(inst.A() + 1 + i)
				}
			}
			want := inst.C() - 1
			ci.Top = ci.Base + inst.A()
			results := g.callValue(th, r(inst.A()), args, want)
			for i, v := range results {
				setR(inst.A()+i, v)
			}
			if want < 0 {
				ci.Top = ci.Base + inst.A() + len(results)
			}
		case OpTailCall:
			nargs := inst.B() - 1
			var args []Value
			if nargs < 0 {
				args = append([]Value(nil), th.stack[ci.Base+inst.A()+1:ci.Top]...)
			} else {
				args = make([]Value, nargs)
				for i := 0; i < nargs; i++ {
					args[i] = r(inst.A() + 1 + i)
				}
			}
			th.CloseUpvalsFrom(ci.Base)
			return g.callValue(th, r(inst.A()), args, ci.NResults)
		case OpReturn:
			nret := inst.B() - 1
			var out []Value
			if nret < 0 {
				out = append([]Value(nil), th.stack[ci.Base+inst.A():ci.Top]...)
			} else {
				out = make([]Value, nret)
				for i := 0; i < nret; i++ {
					out[i] = r(inst.A() + i)
				}
			}
			th.CloseUpvalsFrom(ci.Base)
			return out
		case OpForPrep:
			// SBx targets the instruction just past the loop (mirrors a
			// plain JMP): entering the loop is the fallthrough case,
			// skipping it is the only case that actually jumps.
			initV, limitV, stepV := r(inst.A()), r(inst.A()+1), r(inst.A()+2)
			init, limit, step := forNumbers(initV, limitV, stepV)
			setR(inst.A(), init)
			setR(inst.A()+1, limit)
			setR(inst.A()+2, step)
			if !forContinues(init, limit, step) {
				ci.PC += inst.SBx()
			} else {
				setR(inst.A()+3, init)
			}
		case OpForLoop:
			init, limit, step := r(inst.A()), r(inst.A()+1), r(inst.A()+2)
			next := forStep(init, step)
			if forContinues(next, limit, step) {
				setR(inst.A(), next)
				setR(inst.A()+3, next)
				ci.PC += inst.SBx()
			}
		case OpTForCall:
			f, s, ctrl := r(inst.A()), r(inst.A()+1), r(inst.A()+2)
			results := g.callValue(th, f, []Value{s, ctrl}, inst.C())
			for i, v := range results {
				setR(inst.A()+3+i, v)
			}
		case OpTForLoop:
			if !r(inst.A() + 1).IsNil() {
				setR(inst.A(), r(inst.A()+1))
				ci.PC += inst.SBx()
			}
		case OpSetList:
			t := r(inst.A()).AsTable()
			n := inst.B()
			if n == 0 {
				n = ci.Top - (ci.Base + inst.A() + 1)
			}
			base := inst.C()
			for i := 1; i <= n; i++ {
				t.Set(Int(int64(base+i)), r(inst.A()+i), g.gc)
			}
		case OpClosure:
			sub := p.Protos[inst.Bx()]
			nc := NewLuaClosure(sub, g.gc)
			for i, uvd := range sub.Upvalues {
				if uvd.InStack {
					nc.Upvalues[i] = th.FindOrMakeUpvalue(ci.Base + uvd.Index)
				} else {
					nc.Upvalues[i] = ci.Closure.Upvalues[uvd.Index]
				}
			}
			setR(inst.A(), fromLuaClosure(nc))
		case OpVararg:
			want := inst.B() - 1
			if want < 0 {
				want = len(varargs)
				ci.Top = ci.Base + inst.A() + want
			}
			for i := 0; i < want; i++ {
				if i < len(varargs) {
					setR(inst.A()+i, varargs[i])
				} else {
					setR(inst.A()+i, Nil())
				}
			}
		case OpClose:
			th.CloseUpvalsFrom(ci.Base + inst.A())
		case OpTbc:
			th.tbc = append(th.tbc, ci.Base+inst.A())
		}
	}
}
