package syncer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storesync-api/internal/config"
	"storesync-api/internal/model"
)

// Page is one upstream page of raw records.
type Page[R any] struct {
	Records    []R
	NextCursor string
	HasMore    bool
}

// session is the per-run state handed to every variant.
type session struct {
	user    *model.User
	store   model.Store
	kind    model.Kind
	account model.ConnectedAccount
	plan    string
	limit   config.Limit
	now     time.Time
	log     *logrus.Entry

	// firstLookup is set when the kind has never been fetched for this store.
	firstLookup bool
	// timeFrom bounds time-filtered order fetches.
	timeFrom time.Time
}

func (s *session) meta() model.StoreMeta {
	return s.user.Meta(s.store)
}

// listingSource is one marketplace's listing walk.
type listingSource[R any] interface {
	// StartCursor returns the cursor of the first page to fetch.
	StartCursor(s *session) string
	// Resumable reports whether record ids double as cursors, letting a run stop mid-page.
	Resumable() bool
	FetchPage(ctx context.Context, s *session, cursor string, pageSize int) (Page[R], error)
	RecordID(raw R) string
	// Normalize maps raw onto an inventory item. A quantity of zero marks the
	// listing as gone. existing is the stored item, nil when new.
	Normalize(raw R, existing *model.InventoryItem, now time.Time) (*model.InventoryItem, error)
}

// orderSource is one marketplace's order walk.
type orderSource[R any] interface {
	StartCursor(s *session) string
	Resumable() bool
	FetchPage(ctx context.Context, s *session, cursor string, pageSize int) (Page[R], error)
	RecordID(raw R) string
	// Lines flattens a raw order into its sold lines.
	Lines(raw R, now time.Time) ([]OrderFacts, error)
	// ItemDetail recovers listing data for an item missing from inventory. It may return nil.
	ItemDetail(ctx context.Context, s *session, itemID string) (*ItemDetail, error)
}

// OrderFacts is a marketplace-neutral sold line, ready for enrichment.
type OrderFacts struct {
	TransactionID string
	OrderID       string
	ItemID        string
	Name          string
	Status        model.OrderStatus

	UnitPrice decimal.Decimal
	Quantity  int
	Currency  string
	// TotalPaid is nil when the marketplace does not report the buyer total.
	TotalPaid *decimal.Decimal
	Tax       *model.Tax

	SaleDate string
	Platform *string
	Site     string
	Buyer    *string

	Shipping model.Shipping
	// Refunded is set whenever a refund payload is present, whatever the status.
	Refunded bool
	Refund   *model.Refund

	CreatedDate string
	ModifiedAt  string

	Image []string
	Depop *model.DepopData
}

// ItemDetail is the subset of a listing needed to enrich an order.
type ItemDetail struct {
	Image      []string `json:"image"`
	DateListed string   `json:"dateListed"`
	Currency   string   `json:"currency,omitempty"`
}
