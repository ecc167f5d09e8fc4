package order

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdora/order-backend/internal/domain/product"
)

// ErrEmptyItems is returned when an order is placed without line items.
var ErrEmptyItems = errors.New("items required")

// ServiceConfig holds non-dependency configuration for the Service.
type ServiceConfig struct {
	// ShippingFee is the flat fee added to every order total.
	ShippingFee decimal.Decimal
}

// Service owns the order aggregate. Every mutating operation follows the
// same discipline: serialize on the order id, load the aggregate, apply the
// guarded transition in memory, recompute the derived order status, persist
// atomically, and only then hand a notification event to the dispatcher.
// Guard violations are detected before any mutation; a failed save discards
// the mutation entirely, so callers never observe partial state.
type Service struct {
	cfg      ServiceConfig
	orders   Repository
	products product.Repository
	audit    AuditLog
	notifier Notifier
	locks    *keyedLock
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	cfg ServiceConfig,
	orders Repository,
	products product.Repository,
	audit AuditLog,
	notifier Notifier,
) *Service {
	return &Service{
		cfg:      cfg,
		orders:   orders,
		products: products,
		audit:    audit,
		notifier: notifier,
		locks:    newKeyedLock(),
		now:      time.Now,
	}
}

// PlaceOrderRequest holds the input for placing an order at checkout.
type PlaceOrderRequest struct {
	UserID        string
	PaymentMethod string
	Items         []PlaceOrderItem
}

// PlaceOrderItem selects one catalog product, its variant, and an optional
// pot add-on.
type PlaceOrderItem struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
	PotID     string
}

// PlaceOrder snapshots the selected products into a new order with every
// line item in the processing state and persists it.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, 0, len(req.Items)*2)
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		ids = append(ids, item.ProductID)
		if item.PotID != "" {
			ids = append(ids, item.PotID)
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	now := s.now()
	items := make([]LineItem, len(req.Items))
	itemsTotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &NotFoundError{Kind: "product", ID: item.ProductID}
		}

		li := LineItem{
			SKU:          p.ID,
			Name:         p.Name,
			UnitPrice:    p.Price,
			OfferPercent: p.OfferPercent,
			Size:         item.Size,
			Color:        item.Color,
			Quantity:     item.Quantity,
			RefundAmount: decimal.Zero,
			Status:       ItemProcessing,
		}
		if item.PotID != "" {
			pot, ok := byID[item.PotID]
			if !ok {
				return nil, &NotFoundError{Kind: "product", ID: item.PotID}
			}
			li.Pot = &PotAddOn{Name: pot.Name, Price: pot.Price}
		}

		items[i] = li
		itemsTotal = itemsTotal.Add(li.Subtotal())
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Items:          items,
		Total:          itemsTotal.Add(s.cfg.ShippingFee),
		ShippingFee:    s.cfg.ShippingFee,
		RefundedAmount: decimal.Zero,
		PaymentMethod:  req.PaymentMethod,
		Status:         StatusProcessing,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	s.notifier.Notify(Event{
		OrderID:     o.ID,
		UserID:      o.UserID,
		ItemIndex:   -1,
		Action:      "order_placed",
		OrderStatus: o.Status,
		At:          now,
	})
	return o, nil
}

// Get loads a single order.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListByUser loads all orders belonging to a user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// RequestReturn reserves qty units of a delivered line item for return.
func (s *Service) RequestReturn(ctx context.Context, orderID string, itemIndex, qty int, reason ReturnReason) (*Order, error) {
	return s.mutate(ctx, orderID, itemIndex, "return_requested",
		func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error) {
			return decimal.Zero, li.RequestReturn(qty, reason, now)
		})
}

// ApproveReturn approves the pending return request on a line item and
// computes its refund.
func (s *Service) ApproveReturn(ctx context.Context, orderID string, itemIndex int, adminID string) (*Order, error) {
	return s.mutate(ctx, orderID, itemIndex, "return_approved",
		func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error) {
			return li.ApproveReturn(adminID, now)
		})
}

// RejectReturn declines the pending return request on a line item.
func (s *Service) RejectReturn(ctx context.Context, orderID string, itemIndex int, adminID string) (*Order, error) {
	return s.mutate(ctx, orderID, itemIndex, "return_rejected",
		func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error) {
			return decimal.Zero, li.RejectReturn(adminID, now)
		})
}

// CompleteReturn records receipt of an approved return and settles its
// refund into the order's cumulative refunded amount.
func (s *Service) CompleteReturn(ctx context.Context, orderID string, itemIndex int, adminID string) (*Order, error) {
	return s.mutate(ctx, orderID, itemIndex, "return_completed",
		func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error) {
			refund, err := li.CompleteReturn(adminID, now)
			if err != nil {
				return decimal.Zero, err
			}
			o.RefundedAmount = o.RefundedAmount.Add(refund)
			return refund, nil
		})
}

// CancelItem cancels qty units of an unshipped line item.
func (s *Service) CancelItem(ctx context.Context, orderID string, itemIndex, qty int, reason, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, itemIndex, "item_cancelled",
		func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error) {
			return li.Cancel(qty, reason, actor, now)
		})
}

// ForceItemStatus is the administrative override: it sets a line item's
// status without transition guards and records the override in the audit
// log. If the item still carries an approved return, the return is closed
// out and its refund settled, matching the guarded completion path.
func (s *Service) ForceItemStatus(ctx context.Context, orderID string, itemIndex int, newStatus ItemStatus, adminID string) (*Order, error) {
	var oldStatus ItemStatus
	o, err := s.mutate(ctx, orderID, itemIndex, "status_forced",
		func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error) {
			oldStatus = li.Status
			refund, completed := li.Force(newStatus)
			if completed {
				o.RefundedAmount = o.RefundedAmount.Add(refund)
			}
			return refund, nil
		})
	if err != nil {
		return nil, err
	}

	entry := AuditEntry{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		ItemIndex: itemIndex,
		Actor:     adminID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		At:        s.now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		// The state change is already durable; surface the audit failure so
		// the operator retries rather than losing the override trail.
		return nil, &PersistenceError{Err: errors.Wrap(err, "append audit entry")}
	}
	return o, nil
}

// mutate runs one guarded transition under the per-order lock. The order of
// steps is load, transition, aggregate, save, notify; any error before the
// save leaves the stored aggregate untouched, and a save error discards the
// in-memory mutation.
func (s *Service) mutate(
	ctx context.Context,
	orderID string,
	itemIndex int,
	action string,
	fn func(o *Order, li *LineItem, now time.Time) (decimal.Decimal, error),
) (*Order, error) {
	unlock := s.locks.lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if itemIndex < 0 || itemIndex >= len(o.Items) {
		return nil, &NotFoundError{Kind: "line item", ID: strconv.Itoa(itemIndex)}
	}

	now := s.now()
	li := &o.Items[itemIndex]
	refund, err := fn(o, li, now)
	if err != nil {
		return nil, err
	}

	o.Status = AggregateStatus(o.Items, o.Status)
	o.UpdatedAt = now
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	s.notifier.Notify(Event{
		OrderID:     o.ID,
		UserID:      o.UserID,
		ItemIndex:   itemIndex,
		SKU:         li.SKU,
		Action:      action,
		ItemStatus:  li.Status,
		OrderStatus: o.Status,
		Refund:      refund,
		At:          now,
	})
	return o, nil
}
