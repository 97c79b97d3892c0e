package dashboard

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("registration not found")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidFilter  = errors.New("invalid status filter")
	ErrPageOutOfRange = errors.New("page out of range")
)

// FetchError reports a failed read of the registration store.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch registrations: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write or delete. The in-memory state is unchanged when it
// is returned.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s registration %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
