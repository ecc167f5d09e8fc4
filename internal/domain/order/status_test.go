package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func itemsWith(statuses ...ItemStatus) []LineItem {
	items := make([]LineItem, len(statuses))
	for i, s := range statuses {
		items[i] = LineItem{SKU: "sku", Quantity: 1, Status: s}
	}
	return items
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ItemStatus
		prior    Status
		want     Status
	}{
		{
			name:     "all cancelled",
			statuses: []ItemStatus{ItemCancelled, ItemCancelled},
			prior:    StatusProcessing,
			want:     StatusCancelled,
		},
		{
			name:     "all return terminal",
			statuses: []ItemStatus{ItemReturnReceived, ItemRefunded},
			prior:    StatusDelivered,
			want:     StatusFullyReturned,
		},
		{
			name:     "some return terminal",
			statuses: []ItemStatus{ItemReturnReceived, ItemDelivered},
			prior:    StatusDelivered,
			want:     StatusPartiallyReturned,
		},
		{
			name:     "return beats delivery precedence",
			statuses: []ItemStatus{ItemRefunded, ItemDelivered, ItemDelivered},
			prior:    StatusDelivered,
			want:     StatusPartiallyReturned,
		},
		{
			name:     "all delivered",
			statuses: []ItemStatus{ItemDelivered, ItemDelivered},
			prior:    StatusShipped,
			want:     StatusDelivered,
		},
		{
			name:     "all shipped",
			statuses: []ItemStatus{ItemShipped, ItemShipped},
			prior:    StatusProcessing,
			want:     StatusShipped,
		},
		{
			name:     "any processing",
			statuses: []ItemStatus{ItemProcessing, ItemShipped},
			prior:    StatusShipped,
			want:     StatusProcessing,
		},
		{
			name:     "ready to ship counts as processing",
			statuses: []ItemStatus{ItemReadyToShip, ItemDelivered},
			prior:    StatusShipped,
			want:     StatusProcessing,
		},
		{
			// A partial cancellation alone has no rule of its own: the
			// remaining processing item drives the order status.
			name:     "cancelled mixed with processing",
			statuses: []ItemStatus{ItemCancelled, ItemProcessing},
			prior:    StatusShipped,
			want:     StatusProcessing,
		},
		{
			// No rule matches a mix of pending-return and delivered-adjacent
			// states: the prior status is kept unchanged.
			name:     "no rule matched keeps prior",
			statuses: []ItemStatus{ItemReturnRequested, ItemDelivered},
			prior:    StatusDelivered,
			want:     StatusDelivered,
		},
		{
			name:     "rejected mix keeps prior",
			statuses: []ItemStatus{ItemReturnRejected, ItemShipped},
			prior:    StatusShipped,
			want:     StatusShipped,
		},
		{
			name:     "no items keeps prior",
			statuses: nil,
			prior:    StatusProcessing,
			want:     StatusProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateStatus(itemsWith(tt.statuses...), tt.prior)
			assert.Equal(t, tt.want, got)
		})
	}
}

// AggregateStatus is a pure projection: repeated calls with unchanged inputs
// agree, and the items themselves are never mutated.
func TestAggregateStatus_Pure(t *testing.T) {
	items := itemsWith(ItemReturnReceived, ItemProcessing, ItemCancelled)

	first := AggregateStatus(items, StatusProcessing)
	second := AggregateStatus(items, StatusProcessing)

	assert.Equal(t, first, second)
	assert.Equal(t, ItemReturnReceived, items[0].Status)
	assert.Equal(t, ItemProcessing, items[1].Status)
	assert.Equal(t, ItemCancelled, items[2].Status)
}
