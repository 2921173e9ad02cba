package event

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError through errors.Is.
	ErrNotFound = errors.New("event: backing document not found")
	// ErrReadOnly is returned when modifying a non-editable variant.
	ErrReadOnly = errors.New("event: variant is read-only")
	// ErrDuplicateID is returned when a combined id is already in a Set.
	ErrDuplicateID = errors.New("event: duplicate combined id")
)

// NotFoundError reports that no document backs an event.
type NotFoundError struct {
	Prefix string
	ID     string
	Path   string
}

func (e *NotFoundError) Error() string {
	switch e.Prefix {
	case ICSPrefix:
		return fmt.Sprintf("cannot find file for ICS event with ID %s", e.ID)
	case RemotePrefix:
		return fmt.Sprintf("cannot find file for remote event with ID %s", e.ID)
	default:
		return fmt.Sprintf("cannot find file for event %s", JoinID(e.Prefix, e.ID))
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// OpenError wraps a surface failure while opening an existing document.
type OpenError struct {
	Prefix string
	ID     string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", JoinID(e.Prefix, e.ID), e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
