package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdora/order-backend/internal/domain/auth"
	"github.com/verdora/order-backend/internal/domain/order"
	"github.com/verdora/order-backend/internal/domain/product"
)

const testPepper = "test-pepper"

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memProductRepo struct {
	products map[string]product.Product
}

func (r *memProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = make([]order.LineItem, len(o.Items))
	for i, li := range o.Items {
		item := li
		item.Returns = append([]order.ReturnRecord(nil), li.Returns...)
		item.Cancellations = append([]order.CancellationRecord(nil), li.Cancellations...)
		if li.PendingReturn != nil {
			idx := *li.PendingReturn
			item.PendingReturn = &idx
		}
		cp.Items[i] = item
	}
	return &cp
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, &order.NotFoundError{Kind: "order", ID: id}
	}
	return cloneOrder(o), nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *memOrderRepo) Update(_ context.Context, o *order.Order) error {
	stored, ok := r.orders[o.ID]
	if !ok {
		return &order.NotFoundError{Kind: "order", ID: o.ID}
	}
	if stored.Version != o.Version {
		return order.ErrVersionConflict
	}
	cp := cloneOrder(o)
	cp.Version++
	r.orders[o.ID] = cp
	return nil
}

type memAuditLog struct{ entries []order.AuditEntry }

func (l *memAuditLog) Append(_ context.Context, e order.AuditEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(order.Event) {}

type memKeyRepo struct{ keys map[string]*auth.APIKeyInfo }

func (r *memKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := r.keys[hash]
	if !ok {
		return nil, &order.NotFoundError{Kind: "api key"}
	}
	return info, nil
}

type fixture struct {
	mux      *http.ServeMux
	orders   *memOrderRepo
	products *memProductRepo
	audit    *memAuditLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProductRepo{products: map[string]product.Product{
		"plant-1": {ID: "plant-1", Name: "Monstera", Category: product.CategoryPlant, Price: dec("100"), OfferPercent: dec("10"), Sizes: []string{"S", "M"}},
		"pot-1":   {ID: "pot-1", Name: "Terracotta Pot", Category: product.CategoryPot, Price: dec("20")},
	}}
	orders := &memOrderRepo{orders: map[string]*order.Order{}}
	audit := &memAuditLog{}

	svc := order.NewService(
		order.ServiceConfig{ShippingFee: dec("10")},
		orders,
		products,
		audit,
		noopNotifier{},
	)

	h := New(Config{ImageBaseURL: "https://cdn.test"}, products, svc)

	hash := HashAPIKey([]byte(testPepper), "secret-key")
	keys := &memKeyRepo{keys: map[string]*auth.APIKeyInfo{
		hash: {ID: "default", KeyHash: hash, Name: "ops", Scopes: []string{"manage_orders"}},
	}}

	mux := http.NewServeMux()
	h.Routes(mux, APIKeyAuth(keys, []byte(testPepper)))

	return &fixture{mux: mux, orders: orders, products: products, audit: audit}
}

func (f *fixture) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-API-Key", "secret-key")
	}

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// seedDeliveredOrder stores an order whose single line item already reached
// the delivered state.
func (f *fixture) seedDeliveredOrder() string {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := &order.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Items: []order.LineItem{{
			SKU:          "plant-1",
			Name:         "Monstera",
			UnitPrice:    dec("100"),
			OfferPercent: dec("10"),
			Quantity:     2,
			RefundAmount: decimal.Zero,
			Status:       order.ItemDelivered,
		}},
		Total:          dec("190"),
		ShippingFee:    dec("10"),
		RefundedAmount: decimal.Zero,
		PaymentMethod:  "card",
		Status:         order.StatusDelivered,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.orders.orders[o.ID] = o
	return o.ID
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/products", nil, false)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 2)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/products/nope", nil, false)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 404, body["code"])
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"user_id":        "user-1",
		"payment_method": "card",
		"items": []map[string]any{
			{"product_id": "plant-1", "quantity": 2, "size": "M", "pot_id": "pot-1"},
		},
	}, false)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	// (100 + 20) * 0.9 * 2 + 10 shipping = 226.00
	assert.EqualValues(t, 226, body["total"])
	assert.Equal(t, "processing", body["status"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "processing", items[0].(map[string]any)["status"])
}

func TestPlaceOrder_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"payment_method": "card",
		"items":          []map[string]any{{"product_id": "plant-1", "quantity": 1}},
	}, false)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"user_id":        "user-1",
		"payment_method": "card",
		"items":          []map[string]any{{"product_id": "ghost", "quantity": 1}},
	}, false)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/orders/missing", nil, false)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 404, body["code"])
}

func TestReturnFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/return", map[string]any{
		"quantity": 2,
		"reason":   "damaged",
	}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "return_requested", item["status"])

	w = f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/return/approve", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item = decodeBody(t, w)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "return_approved", item["status"])
	assert.EqualValues(t, 180, item["refund_amount"])

	w = f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/return/complete", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeBody(t, w)
	assert.Equal(t, "fully_returned", body["status"])
	assert.EqualValues(t, 180, body["refunded_amount"])
}

func TestReturnRequest_UnknownReason(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/return", map[string]any{
		"quantity": 1,
		"reason":   "changed_my_mind",
	}, false)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestApproveReturn_RequiresAPIKey(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/return/approve", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+id+"/items/0/return/approve", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancelItem_AfterDeliveryConflicts(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/cancel", map[string]any{
		"quantity": 1,
		"reason":   "too late",
	}, false)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 409, body["code"])
}

func TestCancelItem_QuantityExceeded(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"user_id":        "user-1",
		"payment_method": "card",
		"items":          []map[string]any{{"product_id": "plant-1", "quantity": 1}},
	}, false)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody(t, w)["id"].(string)

	w = f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/cancel", map[string]any{
		"quantity": 5,
	}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestForceItemStatus_WritesAudit(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/status", map[string]any{
		"status": "order_shipped",
	}, true)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item := decodeBody(t, w)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "order_shipped", item["status"])

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "ops", f.audit.entries[0].Actor)
}

func TestForceItemStatus_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/0/status", map[string]any{
		"status": "teleported",
	}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestItemIndex_OutOfRange(t *testing.T) {
	f := newFixture(t)
	id := f.seedDeliveredOrder()

	w := f.do(t, http.MethodPost, "/api/orders/"+id+"/items/9/return", map[string]any{
		"quantity": 1,
		"reason":   "damaged",
	}, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/orders/"+id+"/items/x/return", map[string]any{
		"quantity": 1,
		"reason":   "damaged",
	}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUserOrders(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder()

	w := f.do(t, http.MethodGet, "/api/users/user-1/orders", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0]["id"])

	w = f.do(t, http.MethodGet, "/api/users/nobody/orders", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	assert.Empty(t, orders)
}
