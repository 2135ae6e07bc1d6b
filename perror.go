package vire

import "fmt"

// ErrorKind classifies a runtime error for embedders that want to
// branch on it without string-matching a message (§4.9, §7).
type ErrorKind uint8

const (
	ErrRuntime ErrorKind = iota
	ErrSyntax            // reserved: the assembler may raise this for malformed Protos
	ErrMemory
	ErrErrorInError // error raised while already unwinding the message handler
	ErrStackOverflow
)

// Error is the runtime error type every Vire-raised failure uses
// (§4.9). Value carries the raised Lua-level value (often but not
// always a string), exactly as `error()` received it.
type Error struct {
	Kind      ErrorKind
	Value     Value
	Traceback string
}

func (e *Error) Error() string {
	if e.Value.IsString() {
		return e.Value.String()
	}
	return fmt.Sprintf("(error object is a %s value)", e.Value.Type())
}

// NewError wraps a raised Value in the standard error type.
func NewError(v Value) *Error { return &Error{Kind: ErrRuntime, Value: v} }

// NewErrorf builds a string-valued runtime error, the common case for
// host-originated errors (bad argument, wrong type, etc.).
func NewErrorf(format string, args ...any) *Error {
	return &Error{Kind: ErrRuntime, Value: Bool(false)._errStr(fmt.Sprintf(format, args...))}
}

// _errStr is a tiny helper so NewErrorf doesn't need direct access to
// a *GlobalState to intern the message; it builds a standalone
// (non-interned) long GCString, acceptable for an error message that
// is typically formatted once and not looked up again.
func (Value) _errStr(msg string) Value {
	s := &GCString{bytes: []byte(msg), long: true, hashed: false}
	s.gcHeader.tag = tagLongStr
	return fromString(s)
}

// PCall invokes fn (already pushed and set up as the active call by
// the caller) under protection: any *Error raised within it, or any
// Go panic tagged as a Vire runtime error, is recovered and returned
// rather than unwinding past PCall. msgh, if non-nil, transforms the
// error value before it's returned (xpcall's message handler, §4.9).
//
// The original uses setjmp/longjmp; idiomatic Go unwinds via panic
// recovered here, which plays correctly with defer-based cleanup
// (to-be-closed variables, open upvalues) the same way longjmp's
// stack unwinding does in the C implementation.
func (th *Thread) PCall(msgh Value, fn func() error) (err *Error) {
	savedTop := th.current.Top
	savedTbc := len(th.tbc)
	defer func() {
		if r := recover(); r != nil {
			verr, ok := r.(*Error)
			if !ok {
				verr = &Error{Kind: ErrRuntime, Value: Bool(false)._errStr(fmt.Sprint(r))}
			}
			verr = th.unwindTo(savedTop, savedTbc, verr)
			if !msgh.IsNil() {
				th.callMessageHandler(msgh, verr)
			}
			err = verr
		}
	}()
	if e := fn(); e != nil {
		verr, ok := e.(*Error)
		if !ok {
			verr = &Error{Kind: ErrRuntime, Value: Bool(false)._errStr(e.Error())}
		}
		verr = th.unwindTo(savedTop, savedTbc, verr)
		if !msgh.IsNil() {
			th.callMessageHandler(msgh, verr)
		}
		return verr
	}
	return nil
}

// unwindTo runs the centralized cleanup every error path (panic or
// returned error) shares: close to-be-closed variables LIFO down to
// the saved mark, then open upvalues above the saved stack top
// (§4.11, §4.8). A closer that raises its own error takes over verr —
// "the new error replaces the current one" — which is why every
// runCloser call folds its result back into verr rather than being
// fire-and-forget.
func (th *Thread) unwindTo(savedTop, savedTbc int, verr *Error) *Error {
	for len(th.tbc) > savedTbc {
		n := len(th.tbc) - 1
		idx := th.tbc[n]
		th.tbc = th.tbc[:n]
		verr = th.runCloser(idx, verr)
	}
	th.CloseUpvalsFrom(savedTop)
	th.current.Top = savedTop
	return verr
}

// callMessageHandler invokes xpcall's handler with the raw error
// value and stores its result in verr.Value, swallowing a
// second-level error-in-the-handler by folding verr into an
// ErrErrorInError (§4.9 edge case).
func (th *Thread) callMessageHandler(handler Value, verr *Error) {
	defer func() {
		if recover() != nil {
			verr.Kind = ErrErrorInError
			verr.Value = Bool(false)._errStr("error in error handling")
		}
	}()
	verr.Value = th.g.callValue(th, handler, []Value{verr.Value}, 1)[0]
}

// runCloser invokes obj's __close metamethod with err (or Nil if the
// call is completing normally) as the second argument, returning the
// error that should propagate onward. A closer raising its own error
// does not abort the unwind (subsequent closers still run), but per
// §4.11/§7 that new error replaces verr rather than being discarded.
func (th *Thread) runCloser(idx int, verr *Error) *Error {
	v := th.stack[idx]
	if v.IsNil() || v.tag == tagFalse {
		return verr
	}
	mm := th.g.getMetamethod(v, mmClose)
	if mm.IsNil() {
		return verr
	}
	errVal := Nil()
	if verr != nil {
		errVal = verr.Value
	}
	if closeErr := th.callCloser(mm, v, errVal); closeErr != nil {
		return closeErr
	}
	return verr
}

// callCloser invokes mm(v, errVal), recovering any panic it raises
// (whether a *Error or a bare Go panic) into a fresh *Error rather than
// letting it escape past the caller's own unwind loop.
func (th *Thread) callCloser(mm, v, errVal Value) (closeErr *Error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				closeErr = e
			} else {
				closeErr = &Error{Kind: ErrRuntime, Value: Bool(false)._errStr(fmt.Sprint(r))}
			}
		}
	}()
	th.g.callValue(th, mm, []Value{v, errVal}, 0)
	return nil
}
