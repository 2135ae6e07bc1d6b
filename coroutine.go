package vire

// Coroutines are cooperative tasks sharing one GlobalState (§4.10).
// The original suspends a coroutine by longjmp-ing out of the
// interpreter loop and resuming it by longjmp-ing back in with the C
// stack frozen in place; Go has no equivalent of freezing a call
// stack mid-function, so each coroutine instead gets its own
// goroutine blocked on a channel handshake, which is the idiomatic Go
// analogue of "a suspendable stack" — the goroutine's stack plays the
// role the original's saved C stack does, and the channel handshake
// plays the role of longjmp.

// yieldSignal is what Yield sends across a coroutine's resume
// channel to hand control back to its resumer.
type yieldSignal struct {
	values []Value
	err    *Error
	done   bool
}

type coroChannels struct {
	toCoro   chan []Value
	fromCoro chan yieldSignal
}

// NewCoroutine spawns a new Thread wrapping fn as its body, suspended
// until the first Resume (§4.10). The channel handshake is keyed on
// this GlobalState's own coroLink map rather than a package-level one:
// spec.md §5 allows multiple VM instances to run in parallel OS
// threads with no shared memory between them, and a package global
// shared by every *GlobalState* would race across instances (and,
// per §9, defeats the "no static globals" design goal a clean
// embedding API is supposed to offer).
func (s *State) NewCoroutine(fn Value) *Thread {
	th := newThread(s.g)
	ch := &coroChannels{toCoro: make(chan []Value), fromCoro: make(chan yieldSignal)}
	s.g.coroLink[th] = ch
	go func() {
		args := <-ch.toCoro
		var results []Value
		err := th.PCall(Nil(), func() error {
			results = s.g.callValue(th, fn, args, -1)
			return nil
		})
		th.status = ThreadDead
		ch.fromCoro <- yieldSignal{values: results, err: err, done: true}
	}()
	return th
}

// Resume transfers control to th with args, blocking the calling
// goroutine until th either yields, returns, or errors (§4.10).
func (s *State) Resume(from, th *Thread, args []Value) ([]Value, *Error) {
	if th.status == ThreadDead {
		return nil, NewError(Bool(false)._errStr("cannot resume dead coroutine"))
	}
	if th.status == ThreadRunning || th.status == ThreadNormal {
		return nil, NewError(Bool(false)._errStr("cannot resume non-suspended coroutine"))
	}
	ch, ok := s.g.coroLink[th]
	if !ok {
		return nil, NewError(Bool(false)._errStr("cannot resume a non-coroutine thread"))
	}
	if from != nil {
		from.status = ThreadNormal
	}
	th.status = ThreadRunning
	th.resumer = from
	ch.toCoro <- args
	sig := <-ch.fromCoro
	if from != nil {
		from.status = ThreadRunning
	}
	if !sig.done {
		th.status = ThreadSuspended
	} else {
		delete(s.g.coroLink, th)
	}
	return sig.values, sig.err
}

// Yield suspends the calling coroutine, handing values back to its
// resumer, and blocks until the next Resume sends fresh arguments.
// Panics (via the original's terminology, "attempt to yield from
// outside a coroutine") if th isn't actually running as a coroutine
// body, and refuses to yield across a finalizer frame (§9 Open
// Question: "disallowed, matching the original's hard restriction").
func (s *State) Yield(th *Thread, values []Value) []Value {
	if th.current.Status&CistFinalizer != 0 {
		panic(NewErrorf("attempt to yield from inside a finalizer"))
	}
	ch, ok := s.g.coroLink[th]
	if !ok {
		panic(NewErrorf("attempt to yield from outside a coroutine"))
	}
	ch.fromCoro <- yieldSignal{values: values}
	return <-ch.toCoro
}
