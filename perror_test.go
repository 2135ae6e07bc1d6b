package vire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPCallRecoversRaisedError(t *testing.T) {
	s := NewState(nil)
	th := s.th
	err := th.PCall(Nil(), func() error {
		panic(NewErrorf("boom"))
	})
	assert.NotNil(t, err)
	assert.Equal(t, "boom", err.Value.String())
}

func TestPCallRecoversPlainGoError(t *testing.T) {
	s := NewState(nil)
	th := s.th
	err := th.PCall(Nil(), func() error {
		return errors.New("plain failure")
	})
	assert.NotNil(t, err)
	assert.Equal(t, "plain failure", err.Value.String())
}

func TestPCallReturnsNilOnSuccess(t *testing.T) {
	s := NewState(nil)
	th := s.th
	err := th.PCall(Nil(), func() error { return nil })
	assert.Nil(t, err)
}

func TestPCallMessageHandlerTransformsError(t *testing.T) {
	s := NewState(nil)
	th := s.th
	handler := s.NewClosure(func(h *Thread) (int, error) {
		h.Set(h.current.Base, fromString(s.NewString("wrapped")))
		return 1, nil
	})
	err := th.PCall(fromCClosure(handler), func() error {
		panic(NewErrorf("original"))
	})
	assert.NotNil(t, err)
	assert.Equal(t, "wrapped", err.Value.String())
}

func TestPCallErrorInMessageHandlerFoldsToGenericMessage(t *testing.T) {
	s := NewState(nil)
	th := s.th
	handler := s.NewClosure(func(h *Thread) (int, error) {
		panic(NewErrorf("handler itself blew up"))
	})
	err := th.PCall(fromCClosure(handler), func() error {
		panic(NewErrorf("original"))
	})
	assert.NotNil(t, err)
	assert.Equal(t, "error in error handling", err.Value.String())
}

func TestRunCloserInvokesCloseMetamethodOnUnwind(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)

	closed := false
	tbl := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__close")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		closed = true
		return 0, nil
	})), s.g.gc)
	tbl.SetMetatable(mt, s.g.gc)
	th.Set(0, fromTable(tbl))
	th.tbc = append(th.tbc, 0)

	err := th.PCall(Nil(), func() error {
		panic(NewErrorf("failure triggers unwind"))
	})
	assert.NotNil(t, err)
	assert.True(t, closed, "a pending to-be-closed value must run __close during unwind")
}

func TestRunCloserOwnErrorReplacesThePropagatedOne(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)

	tbl := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__close")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		panic(NewErrorf("closer itself fails"))
	})), s.g.gc)
	tbl.SetMetatable(mt, s.g.gc)
	th.Set(0, fromTable(tbl))
	th.tbc = append(th.tbc, 0)

	var err *Error
	assert.NotPanics(t, func() {
		err = th.PCall(Nil(), func() error {
			panic(NewErrorf("original failure"))
		})
	})
	assert.NotNil(t, err)
	assert.Equal(t, "closer itself fails", err.Value.String(), "a failing __close must replace the error it was called to report, not the other way around")
}

func TestUnwindToSurfacesCloserErrorEvenWithNoPriorError(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)

	tbl := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__close")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		panic(NewErrorf("closer fails with nothing to report beforehand"))
	})), s.g.gc)
	tbl.SetMetatable(mt, s.g.gc)
	th.Set(0, fromTable(tbl))
	savedTbc := len(th.tbc)
	th.tbc = append(th.tbc, 0)

	got := th.unwindTo(th.current.Top, savedTbc, nil)
	assert.NotNil(t, got)
	assert.Equal(t, "closer fails with nothing to report beforehand", got.Value.String())
}

func TestRunCloserLeavesVerrUntouchedWhenCloserSucceeds(t *testing.T) {
	s := NewState(nil)
	th := s.th
	th.grow(4)

	tbl := s.NewTable()
	mt := s.NewTable()
	mt.Set(fromString(s.NewString("__close")), fromCClosure(s.NewClosure(func(h *Thread) (int, error) {
		return 0, nil
	})), s.g.gc)
	tbl.SetMetatable(mt, s.g.gc)
	th.Set(0, fromTable(tbl))

	original := NewErrorf("original failure")
	got := th.runCloser(0, original)
	assert.Same(t, original, got)
}
