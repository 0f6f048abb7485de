package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storesync-api/internal/model"
)

func TestMilestone(t *testing.T) {
	partner, user := "eBayPartner", "eBayUser"
	refundedAt := "2026-03-05T10:00:00.000Z"
	base := OrderFacts{Site: "UK", CreatedDate: "2026-03-01T10:00:00.000Z", ModifiedAt: "2026-03-04T10:00:00.000Z"}

	tests := []struct {
		name      string
		status    model.OrderStatus
		refund    *model.Refund
		wantTitle string
		wantDesc  string
		wantTime  string
	}{
		{"placed", model.StatusActive, nil, "Order Placed", "Order placed on eBay UK for 9.99", base.CreatedDate},
		{"completed", model.StatusCompleted, nil, "Completed", "Order Completed", base.ModifiedAt},
		{"seller cancel", model.StatusCancelPending, &model.Refund{RefundedTo: &partner, RefundedAt: &refundedAt}, "Cancellation Requested", "You requested to cancel this order", refundedAt},
		{"buyer cancel", model.StatusCancelPending, &model.Refund{RefundedTo: &user}, "Cancellation Requested", "Buyer requested cancellation", base.ModifiedAt},
		{"pending without refund", model.StatusCancelPending, nil, "Cancellation Requested", "Cancellation pending", base.ModifiedAt},
		{"cancelled", model.StatusCancelled, nil, "Cancelled", "Order was cancelled and refunded", base.ModifiedAt},
		{"refunded", model.StatusCancelled, &model.Refund{RefundedAt: &refundedAt}, "Refunded", "Order was cancelled and refunded", refundedAt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			f.Status = tt.status
			ev := milestone(&f, tt.refund, "9.99")
			assert.Equal(t, tt.wantTitle, ev.Title)
			assert.Equal(t, tt.wantDesc, ev.Description)
			assert.Equal(t, tt.wantTime, ev.Timestamp)
			assert.Equal(t, tt.status, ev.Status)
		})
	}

	f := base
	f.Status = model.StatusInvalid
	assert.Empty(t, milestone(&f, nil, "1.00").Title)
}
