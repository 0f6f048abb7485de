package model

import (
	"reflect"
	"sort"
)

// OrderStatus is the marketplace order lifecycle state.
type OrderStatus string

const (
	StatusActive        OrderStatus = "Active"
	StatusInProcess     OrderStatus = "InProcess"
	StatusCompleted     OrderStatus = "Completed"
	StatusCancelPending OrderStatus = "CancelPending"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusInactive      OrderStatus = "Inactive"
	StatusInvalid       OrderStatus = "Invalid"
)

// IsCancellation reports whether refunds are read for this status.
func (s OrderStatus) IsCancellation() bool {
	return s == StatusCancelPending || s == StatusCancelled
}

// Discarded reports whether an order in this status is skipped on a user's first sync.
func (s OrderStatus) Discarded() bool {
	switch s {
	case StatusCancelled, StatusInactive, StatusInvalid:
		return true
	}
	return false
}

// KeepsRefund reports whether a refunded order in this status stays persisted.
func (s OrderStatus) KeepsRefund() bool {
	switch s {
	case StatusCompleted, StatusCancelPending, StatusCancelled:
		return true
	}
	return false
}

// Sale holds the immutable identity of a sale plus its amendable price and quantity.
type Sale struct {
	Date          string  `json:"date" bson:"date"`
	Price         float64 `json:"price" bson:"price"`
	Quantity      int     `json:"quantity" bson:"quantity"`
	Currency      string  `json:"currency" bson:"currency"`
	Platform      *string `json:"platform" bson:"platform"`
	BuyerUsername *string `json:"buyerUsername" bson:"buyerUsername"`
}

// Shipping describes fulfilment of an order line.
type Shipping struct {
	Fees             float64 `json:"fees" bson:"fees"`
	Service          *string `json:"service" bson:"service"`
	TrackingNumber   *string `json:"trackingNumber" bson:"trackingNumber"`
	TimeDays         *int    `json:"timeDays" bson:"timeDays"`
	PaymentToShipped *int    `json:"paymentToShipped" bson:"paymentToShipped"`
	ShippedAt        *string `json:"shippedAt" bson:"shippedAt"`
}

// Refund is populated only for cancellation statuses.
type Refund struct {
	Status      string  `json:"status" bson:"status"`
	Type        string  `json:"type" bson:"type"`
	Amount      float64 `json:"amount" bson:"amount"`
	Currency    string  `json:"currency" bson:"currency"`
	RefundedTo  *string `json:"refundedTo" bson:"refundedTo"`
	RefundedAt  *string `json:"refundedAt" bson:"refundedAt"`
	ReferenceID *string `json:"referenceId" bson:"referenceId"`
}

// Tax is the marketplace-collected tax on a line.
type Tax struct {
	Amount   float64 `json:"amount" bson:"amount"`
	Currency string  `json:"currency" bson:"currency"`
}

// HistoryEvent is one milestone on an order timeline.
type HistoryEvent struct {
	Title       string      `json:"title" bson:"title"`
	Description string      `json:"description" bson:"description"`
	Status      OrderStatus `json:"status" bson:"status"`
	Timestamp   string      `json:"timestamp" bson:"timestamp"`
}

// OrderRecord is one sold line item. TransactionID is distinct from the parent OrderID.
type OrderRecord struct {
	TransactionID  string         `json:"transactionId" bson:"transactionId"`
	OrderID        string         `json:"orderId,omitempty" bson:"orderId,omitempty"`
	ItemID         string         `json:"itemId" bson:"itemId"`
	Name           string         `json:"name" bson:"name"`
	Image          []string       `json:"image" bson:"image"`
	ListingDate    string         `json:"listingDate,omitempty" bson:"listingDate,omitempty"`
	CustomTag      *string        `json:"customTag,omitempty" bson:"customTag,omitempty"`
	Purchase       *Purchase      `json:"purchase,omitempty" bson:"purchase,omitempty"`
	Sale           Sale           `json:"sale" bson:"sale"`
	Shipping       Shipping       `json:"shipping" bson:"shipping"`
	Refund         *Refund        `json:"refund" bson:"refund"`
	Tax            *Tax           `json:"tax" bson:"tax"`
	AdditionalFees float64        `json:"additionalFees" bson:"additionalFees"`
	Status         OrderStatus    `json:"status" bson:"status"`
	History        []HistoryEvent `json:"history" bson:"history"`
	RecordType     RecordType     `json:"recordType" bson:"recordType"`
	StoreType      Store          `json:"storeType,omitempty" bson:"storeType,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	LastModified   string         `json:"lastModified" bson:"lastModified"`
	Depop          *DepopData     `json:"depop,omitempty" bson:"depop,omitempty"`
}

// HasEvent reports whether the timeline already carries a milestone with this title.
func (o *OrderRecord) HasEvent(title string) bool {
	for _, ev := range o.History {
		if ev.Title == title {
			return true
		}
	}
	return false
}

// AppendEvent adds ev unless its title is already present, then re-sorts the timeline.
// It returns false when nothing was appended.
func (o *OrderRecord) AppendEvent(ev HistoryEvent) bool {
	if ev.Title == "" || o.HasEvent(ev.Title) {
		return false
	}
	o.History = append(o.History, ev)
	sort.SliceStable(o.History, func(i, j int) bool {
		return eventBefore(o.History[i].Timestamp, o.History[j].Timestamp)
	})
	return true
}

func eventBefore(a, b string) bool {
	ta, errA := ParseTime(a)
	tb, errB := ParseTime(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

// EqualShipping compares two shipping blocks by value.
func EqualShipping(a, b Shipping) bool {
	return reflect.DeepEqual(a, b)
}

// EqualRefund compares two optional refunds by value.
func EqualRefund(a, b *Refund) bool {
	return reflect.DeepEqual(a, b)
}
