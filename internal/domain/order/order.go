package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root for a customer order. It owns its line items
// by value; every mutation goes through the Service so that the order-level
// status and refund totals stay consistent with the items.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Items          []LineItem      `json:"items"`
	Total          decimal.Decimal `json:"total"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	PaymentMethod  string          `json:"payment_method"`
	Status         Status          `json:"status"`

	// Version implements optimistic concurrency control: the repository
	// refuses a save when the stored version differs from the loaded one.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is one product entry within an order, carrying a snapshot of the
// product at checkout time plus its own status lifecycle. Line items have no
// identity outside their order; they are addressed by index.
type LineItem struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	OfferPercent decimal.Decimal `json:"offer_percent"`
	Size         string          `json:"size,omitempty"`
	Color        string          `json:"color,omitempty"`
	Pot          *PotAddOn       `json:"pot,omitempty"`

	Quantity          int             `json:"quantity"`
	CancelledQuantity int             `json:"cancelled_quantity"`
	ReturnedQuantity  int             `json:"returned_quantity"`
	RefundAmount      decimal.Decimal `json:"refund_amount"`
	Status            ItemStatus      `json:"status"`
	ReturnReason      ReturnReason    `json:"return_reason,omitempty"`
	CancelReason      string          `json:"cancel_reason,omitempty"`

	Returns       []ReturnRecord       `json:"returns,omitempty"`
	Cancellations []CancellationRecord `json:"cancellations,omitempty"`

	// PendingReturn indexes the active entry in Returns while a request is
	// unresolved (requested or approved). Nil when no return is in flight.
	PendingReturn *int `json:"pending_return,omitempty"`
}

// PotAddOn is an optional pot bundled with a plant, priced separately and
// refunded together with the plant.
type PotAddOn struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ReturnReason is the closed set of reasons a customer may select when
// requesting a return.
type ReturnReason string

const (
	ReasonDamaged        ReturnReason = "damaged"
	ReasonWrongItem      ReturnReason = "wrong_item"
	ReasonNotAsDescribed ReturnReason = "not_as_described"
	ReasonQuality        ReturnReason = "quality"
	ReasonOther          ReturnReason = "other"
)

// ValidReturnReason reports whether r is a known return reason.
func ValidReturnReason(r ReturnReason) bool {
	switch r {
	case ReasonDamaged, ReasonWrongItem, ReasonNotAsDescribed, ReasonQuality, ReasonOther:
		return true
	}
	return false
}

// ReturnEntryStatus tracks a return-history entry through its own sub-flow.
type ReturnEntryStatus string

const (
	ReturnEntryRequested ReturnEntryStatus = "requested"
	ReturnEntryApproved  ReturnEntryStatus = "approved"
	ReturnEntryRejected  ReturnEntryStatus = "rejected"
	ReturnEntryCompleted ReturnEntryStatus = "completed"
)

// ReturnRecord is one append-only entry in a line item's return history.
type ReturnRecord struct {
	At          time.Time         `json:"at"`
	Quantity    int               `json:"quantity"`
	Reason      ReturnReason      `json:"reason"`
	Status      ReturnEntryStatus `json:"status"`
	Refund      decimal.Decimal   `json:"refund"`
	ProcessedBy string            `json:"processed_by,omitempty"`
}

// CancellationRecord is one append-only entry in a line item's cancellation
// history. Cancellations have no approval flow; each entry is final.
type CancellationRecord struct {
	At       time.Time       `json:"at"`
	Quantity int             `json:"quantity"`
	Reason   string          `json:"reason,omitempty"`
	Refund   decimal.Decimal `json:"refund"`
	Actor    string          `json:"actor"`
}

// AuditEntry records an administrative status override, kept separate from
// the guarded state machine so overrides are always distinguishable from
// normal transitions.
type AuditEntry struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"order_id"`
	ItemIndex int        `json:"item_index"`
	Actor     string     `json:"actor"`
	OldStatus ItemStatus `json:"old_status"`
	NewStatus ItemStatus `json:"new_status"`
	At        time.Time  `json:"at"`
}

// EffectiveUnitPrice is the refund basis for one unit: unit price plus any
// pot add-on, after the offer discount.
func (li *LineItem) EffectiveUnitPrice() decimal.Decimal {
	price := li.UnitPrice
	if li.Pot != nil {
		price = price.Add(li.Pot.Price)
	}
	if li.OfferPercent.IsZero() {
		return price
	}
	factor := decimal.NewFromInt(1).Sub(li.OfferPercent.Div(decimal.NewFromInt(100)))
	return price.Mul(factor)
}

// RefundFor computes the refund for qty units at the effective unit price.
// Full precision is kept here; rounding to 2 decimal places happens only at
// the serialization boundary.
func (li *LineItem) RefundFor(qty int) decimal.Decimal {
	return li.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(qty)))
}

// Subtotal is the pre-refund value of the line item.
func (li *LineItem) Subtotal() decimal.Decimal {
	return li.RefundFor(li.Quantity)
}

// pendingEntry returns the active return-history entry, or nil when no
// return is in flight.
func (li *LineItem) pendingEntry() *ReturnRecord {
	if li.PendingReturn == nil || *li.PendingReturn >= len(li.Returns) {
		return nil
	}
	return &li.Returns[*li.PendingReturn]
}

// Repository defines persistence operations for orders. Update must apply
// the whole aggregate atomically and fail with ErrVersionConflict when the
// stored version differs from o.Version.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Update(ctx context.Context, o *Order) error
}

// AuditLog records administrative overrides.
type AuditLog interface {
	Append(ctx context.Context, e AuditEntry) error
}

// Event describes a completed state transition, handed to the notification
// dispatcher after the durable write commits.
type Event struct {
	OrderID     string
	UserID      string
	ItemIndex   int
	SKU         string
	Action      string
	ItemStatus  ItemStatus
	OrderStatus Status
	Refund      decimal.Decimal
	At          time.Time
}

// Notifier receives transition events. Implementations must not block and
// must never fail the transition: delivery is strictly best effort.
type Notifier interface {
	Notify(e Event)
}
