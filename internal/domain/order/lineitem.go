package order

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when an operation is invoked with a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// requestReturnSources are the statuses a return may be requested from.
// ReturnRequested is included so a customer can amend a pending request, and
// ReturnRejected is an intentional loop-back: a rejected item stays eligible
// for a fresh request rather than being a dead end.
var requestReturnSources = []ItemStatus{ItemDelivered, ItemReturnRequested, ItemReturnRejected}

// cancelSources are the statuses a cancellation may be applied from. Once an
// item has shipped it can no longer be cancelled, only returned.
var cancelSources = []ItemStatus{ItemProcessing, ItemReadyToShip, ItemPartiallyCancelled}

// RequestReturn reserves qty units for return and appends a return-history
// entry in the requested state. The refund is computed later, at approval
// time. Requesting again while a request is pending amends it: the new entry
// becomes the active one.
//
// The quantity guard checks only against previously returned units, not
// cancelled ones. The cancellation guard is equally independent; the two are
// intentionally not combined (pending a product decision, see DESIGN.md).
func (li *LineItem) RequestReturn(qty int, reason ReturnReason, now time.Time) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	switch li.Status {
	case ItemDelivered, ItemReturnRequested, ItemReturnRejected:
	default:
		return &InvalidStateError{Op: "return request", Status: li.Status, Allowed: requestReturnSources}
	}
	remaining := li.Quantity - li.ReturnedQuantity
	if qty > remaining {
		return &QuantityExceededError{Op: "return", Requested: qty, Remaining: remaining}
	}

	li.Status = ItemReturnRequested
	li.ReturnedQuantity += qty
	li.ReturnReason = reason
	li.Returns = append(li.Returns, ReturnRecord{
		At:       now,
		Quantity: qty,
		Reason:   reason,
		Status:   ReturnEntryRequested,
		Refund:   decimal.Zero,
	})
	idx := len(li.Returns) - 1
	li.PendingReturn = &idx
	return nil
}

// ApproveReturn computes the refund for the pending request and moves the
// item to the approved state. The refund is set, not accumulated: approval
// supersedes any earlier approved amount on this item.
func (li *LineItem) ApproveReturn(adminID string, now time.Time) (decimal.Decimal, error) {
	if li.Status != ItemReturnRequested {
		return decimal.Zero, &InvalidStateError{
			Op:      "return approval",
			Status:  li.Status,
			Allowed: []ItemStatus{ItemReturnRequested},
		}
	}
	entry := li.pendingEntry()
	if entry == nil {
		return decimal.Zero, &NotFoundError{Kind: "return request"}
	}

	refund := li.RefundFor(entry.Quantity)
	li.Status = ItemReturnApproved
	li.RefundAmount = refund
	entry.Status = ReturnEntryApproved
	entry.Refund = refund
	entry.ProcessedBy = adminID
	return refund, nil
}

// RejectReturn declines the pending request and reverts the quantity
// reservation, restoring ReturnedQuantity to its pre-request value.
// Rejection is not a dead end: the freed quantity keeps the item eligible
// for a fresh request. The history entry stays as an audit trail.
func (li *LineItem) RejectReturn(adminID string, now time.Time) error {
	if li.Status != ItemReturnRequested {
		return &InvalidStateError{
			Op:      "return rejection",
			Status:  li.Status,
			Allowed: []ItemStatus{ItemReturnRequested},
		}
	}
	entry := li.pendingEntry()
	if entry == nil {
		return &NotFoundError{Kind: "return request"}
	}

	li.Status = ItemReturnRejected
	li.ReturnedQuantity -= entry.Quantity
	entry.Status = ReturnEntryRejected
	entry.ProcessedBy = adminID
	li.PendingReturn = nil
	return nil
}

// CompleteReturn marks the approved return as received and returns the
// item's refund amount for the caller to add to the order's cumulative
// refunded total. The status guard is the sole protection against
// double-processing the same approval; it must stay exact.
func (li *LineItem) CompleteReturn(adminID string, now time.Time) (decimal.Decimal, error) {
	if li.Status != ItemReturnApproved {
		return decimal.Zero, &InvalidStateError{
			Op:      "return completion",
			Status:  li.Status,
			Allowed: []ItemStatus{ItemReturnApproved},
		}
	}
	entry := li.pendingEntry()
	if entry == nil {
		return decimal.Zero, &NotFoundError{Kind: "return request"}
	}

	li.Status = ItemReturnReceived
	entry.Status = ReturnEntryCompleted
	li.PendingReturn = nil
	return li.RefundAmount, nil
}

// Cancel cancels qty units before shipment. A full cancellation (all units
// cancelled) moves the item to the cancelled state; anything less moves it
// to partially cancelled. The computed refund accrues both on the item and
// in the returned value.
func (li *LineItem) Cancel(qty int, reason, actor string, now time.Time) (decimal.Decimal, error) {
	if qty < 1 {
		return decimal.Zero, ErrInvalidQuantity
	}
	switch li.Status {
	case ItemProcessing, ItemReadyToShip, ItemPartiallyCancelled:
	default:
		return decimal.Zero, &InvalidStateError{Op: "cancellation", Status: li.Status, Allowed: cancelSources}
	}
	remaining := li.Quantity - li.CancelledQuantity
	if qty > remaining {
		return decimal.Zero, &QuantityExceededError{Op: "cancel", Requested: qty, Remaining: remaining}
	}

	refund := li.RefundFor(qty)
	li.CancelledQuantity += qty
	li.RefundAmount = li.RefundAmount.Add(refund)
	li.CancelReason = reason
	if li.CancelledQuantity == li.Quantity {
		li.Status = ItemCancelled
	} else {
		li.Status = ItemPartiallyCancelled
	}
	li.Cancellations = append(li.Cancellations, CancellationRecord{
		At:       now,
		Quantity: qty,
		Reason:   reason,
		Refund:   refund,
		Actor:    actor,
	})
	return refund, nil
}

// Force sets the status unconditionally. It belongs to the administrative
// override path, never to the guarded state machine. If an approved return
// is still pending it is closed out as completed and its refund is returned
// so the caller can settle the order total.
func (li *LineItem) Force(newStatus ItemStatus) (refund decimal.Decimal, completed bool) {
	li.Status = newStatus
	if entry := li.pendingEntry(); entry != nil && entry.Status == ReturnEntryApproved {
		entry.Status = ReturnEntryCompleted
		li.PendingReturn = nil
		return li.RefundAmount, true
	}
	return decimal.Zero, false
}
