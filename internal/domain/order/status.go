package order

// ItemStatus is the lifecycle state of a single line item. Items advance
// monotonically; the only backward edge is the rejection path, which returns
// a rejected item to return-request eligibility.
type ItemStatus string

const (
	ItemProcessing         ItemStatus = "processing"
	ItemReadyToShip        ItemStatus = "ready_to_ship"
	ItemShipped            ItemStatus = "order_shipped"
	ItemDelivered          ItemStatus = "order_delivered"
	ItemPartiallyCancelled ItemStatus = "partially_cancelled"
	ItemCancelled          ItemStatus = "order_cancelled"
	ItemUnableToProcess    ItemStatus = "unable_to_process"
	ItemReturnRequested    ItemStatus = "return_requested"
	ItemReturnApproved     ItemStatus = "return_approved"
	ItemReturnRejected     ItemStatus = "return_rejected"
	ItemReturnReceived     ItemStatus = "return_received"
	ItemRefunded           ItemStatus = "refunded"
)

// ItemStatuses lists every line-item status, exported for admin UIs.
var ItemStatuses = []ItemStatus{
	ItemProcessing,
	ItemReadyToShip,
	ItemShipped,
	ItemDelivered,
	ItemPartiallyCancelled,
	ItemCancelled,
	ItemUnableToProcess,
	ItemReturnRequested,
	ItemReturnApproved,
	ItemReturnRejected,
	ItemReturnReceived,
	ItemRefunded,
}

// ValidItemStatus reports whether s is a known line-item status.
func ValidItemStatus(s ItemStatus) bool {
	for _, known := range ItemStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// returnTerminal reports whether the item has completed the return flow.
func returnTerminal(s ItemStatus) bool {
	return s == ItemReturnReceived || s == ItemRefunded
}

// Status is the order-level status, derived from the statuses of all line
// items and persisted only for query convenience.
type Status string

const (
	StatusProcessing        Status = "processing"
	StatusShipped           Status = "shipped"
	StatusDelivered         Status = "delivered"
	StatusCancelled         Status = "cancelled"
	StatusPartiallyReturned Status = "partially_returned"
	StatusFullyReturned     Status = "fully_returned"
)

// AggregateStatus derives the order-level status from the current line-item
// statuses. It is a pure function: given the same items and prior status it
// always returns the same value and mutates nothing.
//
// Rule precedence matters: cancellation and return outcomes are checked
// before delivery and shipping. When no rule matches (for example a mix of
// processing-complete and return-requested items), the prior status is kept
// unchanged.
func AggregateStatus(items []LineItem, prior Status) Status {
	if len(items) == 0 {
		return prior
	}

	allCancelled := true
	allReturned := true
	anyReturned := false
	allDelivered := true
	allShipped := true
	anyInProgress := false

	for i := range items {
		s := items[i].Status
		if s != ItemCancelled {
			allCancelled = false
		}
		if returnTerminal(s) {
			anyReturned = true
		} else {
			allReturned = false
		}
		if s != ItemDelivered {
			allDelivered = false
		}
		if s != ItemShipped {
			allShipped = false
		}
		if s == ItemProcessing || s == ItemReadyToShip {
			anyInProgress = true
		}
	}

	switch {
	case allCancelled:
		return StatusCancelled
	case allReturned:
		return StatusFullyReturned
	case anyReturned:
		return StatusPartiallyReturned
	case allDelivered:
		return StatusDelivered
	case allShipped:
		return StatusShipped
	case anyInProgress:
		return StatusProcessing
	default:
		return prior
	}
}
