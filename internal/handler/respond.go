package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/go-faster/sdk/zctx"

	"github.com/verdora/order-backend/internal/domain/order"
	"github.com/verdora/order-backend/internal/domain/product"
)

// writeJSON writes pre-encoded JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, code, &e)
}

// respondError maps domain errors to HTTP status codes. Unknown errors are
// logged and hidden behind a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *order.NotFoundError
		invalid    *order.InvalidStateError
		exceeded   *order.QuantityExceededError
		persist    *order.PersistenceError
		validation validator.ValidationErrors
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, invalid.Error())
	case errors.As(err, &exceeded):
		writeError(w, http.StatusUnprocessableEntity, exceeded.Error())
	case errors.Is(err, order.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, validation.Error())
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &persist):
		writeError(w, http.StatusServiceUnavailable, "temporary storage failure, retry the request")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// money emits a monetary amount rounded to cents. Domain values keep full
// precision; rounding happens only here at the serialization boundary.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("user_id")
	e.Str(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("shipping_fee")
	money(e, o.ShippingFee)
	e.FieldStart("refunded_amount")
	money(e, o.RefundedAmount)
	e.FieldStart("payment_method")
	e.Str(o.PaymentMethod)
	e.FieldStart("items")
	e.ArrStart()
	for i := range o.Items {
		encodeLineItem(e, &o.Items[i])
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updated_at")
	encodeTime(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeLineItem(e *jx.Encoder, li *order.LineItem) {
	e.ObjStart()
	e.FieldStart("sku")
	e.Str(li.SKU)
	e.FieldStart("name")
	e.Str(li.Name)
	e.FieldStart("unit_price")
	money(e, li.UnitPrice)
	e.FieldStart("offer_percent")
	e.Num(jx.Num(li.OfferPercent.String()))
	if li.Size != "" {
		e.FieldStart("size")
		e.Str(li.Size)
	}
	if li.Color != "" {
		e.FieldStart("color")
		e.Str(li.Color)
	}
	if li.Pot != nil {
		e.FieldStart("pot")
		e.ObjStart()
		e.FieldStart("name")
		e.Str(li.Pot.Name)
		e.FieldStart("price")
		money(e, li.Pot.Price)
		e.ObjEnd()
	}
	e.FieldStart("quantity")
	e.Int(li.Quantity)
	e.FieldStart("cancelled_quantity")
	e.Int(li.CancelledQuantity)
	e.FieldStart("returned_quantity")
	e.Int(li.ReturnedQuantity)
	e.FieldStart("refund_amount")
	money(e, li.RefundAmount)
	e.FieldStart("status")
	e.Str(string(li.Status))
	if li.ReturnReason != "" {
		e.FieldStart("return_reason")
		e.Str(string(li.ReturnReason))
	}
	if li.CancelReason != "" {
		e.FieldStart("cancel_reason")
		e.Str(li.CancelReason)
	}
	if len(li.Returns) > 0 {
		e.FieldStart("returns")
		e.ArrStart()
		for _, rec := range li.Returns {
			e.ObjStart()
			e.FieldStart("at")
			encodeTime(e, rec.At)
			e.FieldStart("quantity")
			e.Int(rec.Quantity)
			e.FieldStart("reason")
			e.Str(string(rec.Reason))
			e.FieldStart("status")
			e.Str(string(rec.Status))
			e.FieldStart("refund")
			money(e, rec.Refund)
			if rec.ProcessedBy != "" {
				e.FieldStart("processed_by")
				e.Str(rec.ProcessedBy)
			}
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	if len(li.Cancellations) > 0 {
		e.FieldStart("cancellations")
		e.ArrStart()
		for _, rec := range li.Cancellations {
			e.ObjStart()
			e.FieldStart("at")
			encodeTime(e, rec.At)
			e.FieldStart("quantity")
			e.Int(rec.Quantity)
			if rec.Reason != "" {
				e.FieldStart("reason")
				e.Str(rec.Reason)
			}
			e.FieldStart("refund")
			money(e, rec.Refund)
			e.FieldStart("actor")
			e.Str(rec.Actor)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("offer_percent")
	e.Num(jx.Num(p.OfferPercent.String()))
	if len(p.Sizes) > 0 {
		e.FieldStart("sizes")
		e.ArrStart()
		for _, s := range p.Sizes {
			e.Str(s)
		}
		e.ArrEnd()
	}
	if len(p.Colors) > 0 {
		e.FieldStart("colors")
		e.ArrStart()
		for _, c := range p.Colors {
			e.Str(c)
		}
		e.ArrEnd()
	}
	e.FieldStart("image")
	e.ObjStart()
	e.FieldStart("thumbnail")
	e.Str(h.imageURL(p.Image.Thumbnail))
	e.FieldStart("mobile")
	e.Str(h.imageURL(p.Image.Mobile))
	e.FieldStart("tablet")
	e.Str(h.imageURL(p.Image.Tablet))
	e.FieldStart("desktop")
	e.Str(h.imageURL(p.Image.Desktop))
	e.ObjEnd()
	e.ObjEnd()
}

// imageURL prepends the configured base URL to relative image paths.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" {
		return path
	}
	if len(path) > 0 && path[0] != '/' {
		return h.imageBaseURL + "/" + path
	}
	return h.imageBaseURL + path
}
