package vire

// CallStatus flags describe why/how a frame was entered, mirroring
// the original's CIST_* bits (§4.8).
type CallStatus uint16

const (
	CistLua CallStatus = 1 << iota
	CistHook
	CistReentry
	CistYielded
	CistYieldableProtected
	CistTail
	CistFinalizer // this call is running a __gc finalizer (§4.9/§9)
	CistTbc
)

// CallInfo is one activation record in a Thread's call chain (§4.8).
// Frames are index-addressed into the owning Thread's stack rather
// than holding Go slice headers directly, so a stack growth (which
// may reallocate the backing array) never invalidates a live frame —
// the same discipline the original enforces via savestack/restorestack.
type CallInfo struct {
	Prev, Next *CallInfo

	Closure *LuaClosure // nil for a Go-function frame
	Go      *CClosure   // traced by the collector when set; callGoFunction leaves it nil

	Base    int // first stack slot usable as register 0
	FuncIdx int // stack slot holding the called function value
	Top     int // one past the highest stack slot this frame may use

	PC int // next instruction to execute, for Lua frames

	NResults int // expected result count at the call site; -1 = LUA_MULTRET

	Status CallStatus
}

func (ci *CallInfo) IsLua() bool  { return ci.Status&CistLua != 0 }
func (ci *CallInfo) IsTail() bool { return ci.Status&CistTail != 0 }
