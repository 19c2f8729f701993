package todolist

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Makepad-fr/tada/internal/api"
)

// ErrNoSession is returned when the view-model is built without a usable
// session.
var ErrNoSession = errors.New("todolist: no session; run `tada auth login`")

// Op names a mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Kind classifies why a mutation failed.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindStatus
	KindMalformed
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	case KindSession:
		return "session"
	}
	return "unknown"
}

// MutationError is the failure side of a mutation result.
type MutationError struct {
	Op     Op
	Kind   Kind
	Status int // set for KindStatus and KindSession
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s todo: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Message is the inline text shown next to the form.
func (e *MutationError) Message() string {
	switch e.Kind {
	case KindSession:
		return "Your session has expired. Run `tada auth login` and try again."
	case KindStatus:
		var se *api.StatusError
		if errors.As(e.Err, &se) && se.Message != "" {
			return fmt.Sprintf("Could not %s the todo (%d: %s).", e.Op, e.Status, se.Message)
		}
		return fmt.Sprintf("Could not %s the todo (status %d).", e.Op, e.Status)
	case KindMalformed:
		return "The server sent an unexpected response."
	default:
		return "Could not reach the server. Check your connection and try again."
	}
}

func classify(op Op, err error) *MutationError {
	if err == nil {
		return nil
	}
	me := &MutationError{Op: op, Kind: KindTransport, Err: err}
	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		me.Status = se.Code
		me.Kind = KindStatus
		if se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden {
			me.Kind = KindSession
		}
	case errors.Is(err, api.ErrMalformedResponse):
		me.Kind = KindMalformed
	}
	return me
}
