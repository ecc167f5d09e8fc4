package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/verdora/order-backend/internal/domain/order"
)

type placeOrderRequest struct {
	UserID        string           `json:"user_id" validate:"required"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	Items         []placeOrderItem `json:"items" validate:"required,min=1,dive"`
}

type placeOrderItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	PotID     string `json:"pot_id"`
}

type returnRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason" validate:"required,oneof=damaged wrong_item not_as_described quality other"`
}

type cancelRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason"`
}

type forceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// decode reads the JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, r, err)
		return false
	}
	return true
}

// itemIndex parses the {index} path segment.
func itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || idx < 0 {
		writeError(w, http.StatusBadRequest, "item index must be a non-negative integer")
		return 0, false
	}
	return idx, true
}

func writeOrder(w http.ResponseWriter, status int, o *order.Order) {
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, status, &e)
}

// PlaceOrder creates a new order from the catalog selection in the body.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]order.PlaceOrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.PlaceOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			PotID:     it.PotID,
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:        req.UserID,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, o)
}

// GetOrder returns one order with its full line item detail.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// ListUserOrders returns a user's orders, newest first.
func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// RequestReturn opens (or amends) a return request for one line item.
func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.RequestReturn(r.Context(), r.PathValue("id"), idx, req.Quantity, order.ReturnReason(req.Reason))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// CancelItem cancels all or part of one line item before it ships.
func (h *Handler) CancelItem(w http.ResponseWriter, r *http.Request) {
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.CancelItem(r.Context(), r.PathValue("id"), idx, req.Quantity, req.Reason, "customer")
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// ApproveReturn approves the pending return request on a line item.
func (h *Handler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}
	o, err := h.orders.ApproveReturn(r.Context(), r.PathValue("id"), idx, adminActor(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// RejectReturn rejects the pending return request on a line item.
func (h *Handler) RejectReturn(w http.ResponseWriter, r *http.Request) {
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}
	o, err := h.orders.RejectReturn(r.Context(), r.PathValue("id"), idx, adminActor(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// CompleteReturn marks an approved return as received and settles the refund.
func (h *Handler) CompleteReturn(w http.ResponseWriter, r *http.Request) {
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}
	o, err := h.orders.CompleteReturn(r.Context(), r.PathValue("id"), idx, adminActor(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// ForceItemStatus overrides a line item's status without transition guards.
// Every call is recorded in the audit log.
func (h *Handler) ForceItemStatus(w http.ResponseWriter, r *http.Request) {
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}
	var req forceStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status := order.ItemStatus(req.Status)
	if !order.ValidItemStatus(status) {
		writeError(w, http.StatusUnprocessableEntity, "unknown item status "+strconv.Quote(req.Status))
		return
	}

	o, err := h.orders.ForceItemStatus(r.Context(), r.PathValue("id"), idx, status, adminActor(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}
