package vire

// UpvalDesc describes where a closure's upvalue comes from when it's
// instantiated by OP_CLOSURE: either the enclosing function's stack
// (InStack) at Index, or the enclosing function's own upvalue array
// at Index (§4.8, original_source/src/lobject.h Upvaldesc).
type UpvalDesc struct {
	Name    string
	InStack bool
	Index   int
}

// LocalVarInfo is debug info for one local variable's live range
// (§4.7), carried in Proto.Locals; neither the interpreter, the
// disassembler nor error messages consult it.
type LocalVarInfo struct {
	Name      string
	StartPC   int
	EndPC     int
}

// Proto is a compiled function prototype (§3.5, §4.8): bytecode plus
// everything needed to instantiate closures over it. Bytecode
// assembly is out of the parser's scope (§1 Non-goals), so the only
// way to build one is the Assembler in asm.go.
type Proto struct {
	gcHeader

	Code      []Instruction
	Constants []Value
	Protos    []*Proto // nested function prototypes, for OP_CLOSURE
	Upvalues  []UpvalDesc

	NumParams   int
	IsVararg    bool
	MaxStackSize int

	Source   string
	LineInfo []int32 // Code[i] originates from source line LineInfo[i]
	Locals   []LocalVarInfo
}

func (p *Proto) header() *gcHeader { return &p.gcHeader }

func (p *Proto) gcTrace(gc *GC) {
	for _, k := range p.Constants {
		gc.markValue(k)
	}
	for _, sub := range p.Protos {
		gc.markObject(sub)
	}
}

// NewProto allocates an empty prototype; Assembler populates it.
func NewProto(gc *GC) *Proto {
	p := &Proto{}
	p.gcHeader.tag = tagProto
	if gc != nil {
		gc.track(p)
	}
	return p
}

// LineAt returns the source line a given program counter originated
// from, or 0 if no debug info was recorded (§4.7).
func (p *Proto) LineAt(pc int) int32 {
	if pc < 0 || pc >= len(p.LineInfo) {
		return 0
	}
	return p.LineInfo[pc]
}
