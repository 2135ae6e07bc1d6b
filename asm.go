package vire

// Assembler builds a Proto instruction-by-instruction. The lexer and
// parser are out of scope (§1 Non-goals); this is the only supported
// way to construct bytecode, whether by a future front end, a test,
// or a hand-assembled embedding.
type Assembler struct {
	proto *Proto
	gc    *GC

	constIndex map[Value]int
	labels     map[string]int   // label name -> resolved PC
	pending    map[string][]int // label name -> PCs awaiting SBx patch
}

// NewAssembler starts building a fresh Proto.
func NewAssembler(gc *GC) *Assembler {
	return &Assembler{
		proto:      NewProto(gc),
		gc:         gc,
		constIndex: make(map[Value]int),
		labels:     make(map[string]int),
		pending:    make(map[string][]int),
	}
}

func (a *Assembler) SetSource(name string) *Assembler { a.proto.Source = name; return a }

func (a *Assembler) SetParams(n int, vararg bool) *Assembler {
	a.proto.NumParams = n
	a.proto.IsVararg = vararg
	return a
}

func (a *Assembler) SetMaxStack(n int) *Assembler { a.proto.MaxStackSize = n; return a }

// Constant interns val into the constant pool, returning its index;
// repeated identical constants (by RawEquals) share a slot.
func (a *Assembler) Constant(val Value) int {
	for i, k := range a.proto.Constants {
		if RawEquals(k, val) {
			return i
		}
	}
	idx := len(a.proto.Constants)
	a.proto.Constants = append(a.proto.Constants, val)
	return idx
}

// ConstantString is a convenience wrapper around Constant for string
// literals, interning through the short/long boundary like State.NewString.
func (a *Assembler) ConstantString(strings *StringTable, s string) int {
	b := []byte(s)
	var gs *GCString
	if len(b) <= shortStringCap {
		gs = strings.NewShort(b)
	} else {
		gs = strings.NewLong(b)
	}
	return a.Constant(fromString(gs))
}

// Upvalue declares this Proto's i-th upvalue source. Must be called
// in order (0, 1, 2, ...).
func (a *Assembler) Upvalue(name string, inStack bool, index int) *Assembler {
	a.proto.Upvalues = append(a.proto.Upvalues, UpvalDesc{Name: name, InStack: inStack, Index: index})
	return a
}

// Nested registers a child prototype (for OP_CLOSURE's Bx operand)
// and returns its index.
func (a *Assembler) Nested(p *Proto) int {
	a.proto.Protos = append(a.proto.Protos, p)
	return len(a.proto.Protos) - 1
}

func (a *Assembler) emit(i Instruction, line int32) int {
	pc := len(a.proto.Code)
	a.proto.Code = append(a.proto.Code, i)
	a.proto.LineInfo = append(a.proto.LineInfo, line)
	return pc
}

func (a *Assembler) EmitABC(op OpCode, b, c1, c2 int, line int32) int {
	return a.emit(EncodeABC(op, b, c1, c2), line)
}

func (a *Assembler) EmitABx(op OpCode, x, bx int, line int32) int {
	return a.emit(EncodeABx(op, x, bx), line)
}

// EmitJump emits a JMP (or any other iAsBx opcode) targeting label;
// a label already bound by Label is resolved immediately, any other
// is resolved later by Label. Returns the instruction's PC.
func (a *Assembler) EmitJump(op OpCode, aOperand int, label string, line int32) int {
	if target, ok := a.labels[label]; ok {
		pc := len(a.proto.Code)
		return a.emit(EncodeAsBx(op, aOperand, target-(pc+1)), line)
	}
	pc := a.emit(EncodeAsBx(op, aOperand, 0), line)
	a.pending[label] = append(a.pending[label], pc)
	return pc
}

// Label binds name to the next instruction's PC and patches every
// pending jump to it.
func (a *Assembler) Label(name string) {
	pc := len(a.proto.Code)
	a.labels[name] = pc
	for _, jpc := range a.pending[name] {
		inst := a.proto.Code[jpc]
		offset := pc - (jpc + 1)
		a.proto.Code[jpc] = EncodeAsBx(inst.Op(), inst.A(), offset)
	}
	delete(a.pending, name)
}

// Finish validates that every forward jump was eventually labeled and
// returns the completed Proto.
func (a *Assembler) Finish() *Proto {
	if len(a.pending) > 0 {
		panic("vire: assembler has unresolved jump labels")
	}
	return a.proto
}
