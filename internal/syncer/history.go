package syncer

import (
	"fmt"

	"storesync-api/internal/model"
)

// milestone returns the timeline event for a line's current status.
// The zero event is returned for statuses without a milestone.
func milestone(f *OrderFacts, refund *model.Refund, salePrice string) model.HistoryEvent {
	ev := model.HistoryEvent{Status: f.Status, Timestamp: f.ModifiedAt}

	switch f.Status {
	case model.StatusActive:
		ev.Title = "Order Placed"
		ev.Description = fmt.Sprintf("Order placed on eBay %s for %s", f.Site, salePrice)
		ev.Timestamp = f.CreatedDate

	case model.StatusInProcess:
		tracking := ""
		if f.Shipping.TrackingNumber != nil {
			tracking = *f.Shipping.TrackingNumber
		}
		ev.Title = "Shipped"
		ev.Description = "Shipped to eBay buyer. Tracking " + tracking
		if f.Shipping.ShippedAt != nil {
			ev.Timestamp = *f.Shipping.ShippedAt
		}

	case model.StatusCompleted:
		ev.Title = "Completed"
		ev.Description = "Order Completed"

	case model.StatusCancelPending:
		ev.Title = "Cancellation Requested"
		ev.Description = "Cancellation pending"
		if refund != nil {
			switch deref(refund.RefundedTo) {
			case "eBayPartner":
				ev.Description = "You requested to cancel this order"
			case "eBayUser":
				ev.Description = "Buyer requested cancellation"
			}
			ev.Timestamp = refundedAt(refund, f.ModifiedAt)
		}

	case model.StatusCancelled:
		ev.Title = "Cancelled"
		ev.Description = "Order was cancelled and refunded"
		if refund != nil {
			ev.Title = "Refunded"
			ev.Timestamp = refundedAt(refund, f.ModifiedAt)
		}

	default:
		return model.HistoryEvent{}
	}
	return ev
}

func refundedAt(r *model.Refund, fallback string) string {
	if r.RefundedAt != nil && *r.RefundedAt != "" {
		return *r.RefundedAt
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
