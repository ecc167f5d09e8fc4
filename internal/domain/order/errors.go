package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrVersionConflict is returned by repositories when a save loses an
// optimistic concurrency race. The Service converts it into a
// PersistenceError for callers.
var ErrVersionConflict = errors.New("order version conflict")

// NotFoundError indicates that an order, a line item, or a pending return
// request does not exist.
type NotFoundError struct {
	Kind string // "order", "line item", "return request"
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidStateError indicates that the requested transition is not legal
// from the line item's current status. The message names the operation and
// the allowed source states so admin UIs can react precisely.
type InvalidStateError struct {
	Op      string
	Status  ItemStatus
	Allowed []ItemStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed from status %q (allowed: %v)", e.Op, e.Status, e.Allowed)
}

// QuantityExceededError indicates that the requested quantity exceeds the
// quantity still eligible for the operation.
type QuantityExceededError struct {
	Op        string
	Requested int
	Remaining int
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("%s quantity %d exceeds remaining eligible quantity %d", e.Op, e.Requested, e.Remaining)
}

// PersistenceError indicates the durable write failed after a valid in-memory
// mutation. The mutation is discarded; no partial state is observable.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting order: %s", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
