package syncer

import (
	"context"
	"strconv"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/marketplace/ebay"
	"storesync-api/internal/model"
)

// EbayAPI is the subset of the Trading API client the engine calls.
type EbayAPI interface {
	ActiveListings(ctx context.Context, token string, page, perPage int) (*ebay.GetMyeBaySellingResponse, error)
	Orders(ctx context.Context, token string, q ebay.OrderQuery) (*ebay.GetOrdersResponse, error)
	Item(ctx context.Context, token, itemID string) (*ebay.Item, error)
}

// eBay pages are numbered from 1 and always restart there.
func pageNumber(cursor string) int {
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

type ebayListings struct {
	api EbayAPI
}

func (ebayListings) StartCursor(*session) string { return "1" }

func (ebayListings) Resumable() bool { return false }

func (v ebayListings) FetchPage(ctx context.Context, s *session, cursor string, pageSize int) (Page[ebay.Item], error) {
	page := pageNumber(cursor)
	resp, err := v.api.ActiveListings(ctx, s.account.AccessToken, page, pageSize)
	if err != nil {
		return Page[ebay.Item]{}, err
	}
	return Page[ebay.Item]{
		Records:    resp.ActiveList.ItemArray.Item,
		NextCursor: strconv.Itoa(page + 1),
		HasMore:    page < resp.ActiveList.PaginationResult.TotalNumberOfPages,
	}, nil
}

func (ebayListings) RecordID(it ebay.Item) string { return it.ItemID }

func (ebayListings) Normalize(it ebay.Item, _ *model.InventoryItem, _ time.Time) (*model.InventoryItem, error) {
	if it.ItemID == "" {
		return nil, malformed("", "missing ItemID")
	}
	return &model.InventoryItem{
		ItemID:          it.ItemID,
		Name:            it.Title,
		Price:           money(it.SellingStatus.CurrentPrice.Value),
		Currency:        it.Currency(),
		Quantity:        it.QuantityAvailable,
		InitialQuantity: it.Quantity,
		Image:           model.NormalizeImages(it.PictureDetails.GalleryURL),
		DateListed:      isoTime(it.ListingDetails.StartTime),
		URL:             it.ListingDetails.ViewItemURL,
		Ebay:            &model.EbayListingData{Type: it.ListingType},
	}, nil
}

type ebayOrders struct {
	api   EbayAPI
	cache cache.Cache
	ttl   time.Duration
}

func (ebayOrders) StartCursor(*session) string { return "1" }

func (ebayOrders) Resumable() bool { return false }

func (v ebayOrders) FetchPage(ctx context.Context, s *session, cursor string, pageSize int) (Page[ebay.Order], error) {
	page := pageNumber(cursor)
	resp, err := v.api.Orders(ctx, s.account.AccessToken, ebay.OrderQuery{
		TimeFrom: s.timeFrom,
		Now:      s.now,
		Page:     page,
		PerPage:  pageSize,
	})
	if err != nil {
		return Page[ebay.Order]{}, err
	}
	return Page[ebay.Order]{
		Records:    resp.OrderArray.Order,
		NextCursor: strconv.Itoa(page + 1),
		HasMore:    resp.HasMoreOrders,
	}, nil
}

func (ebayOrders) RecordID(o ebay.Order) string { return o.OrderID }

func (ebayOrders) Lines(o ebay.Order, now time.Time) ([]OrderFacts, error) {
	if len(o.TransactionArray.Transaction) == 0 {
		return nil, malformed(o.OrderID, "order has no transactions")
	}

	status := model.OrderStatus(o.OrderStatus)
	raw := o.MonetaryDetails.Refunds.Refund
	var refund *model.Refund
	if status.IsCancellation() && raw != nil {
		refund = ebayRefund(raw)
	}

	modified := isoTime(o.CheckoutStatus.LastModifiedTime)
	if modified == "" {
		modified = model.FormatTime(now)
	}
	var buyer *string
	if o.BuyerUserID != "" {
		buyer = &o.BuyerUserID
	}

	lines := make([]OrderFacts, 0, len(o.TransactionArray.Transaction))
	for _, t := range o.TransactionArray.Transaction {
		if t.TransactionID == "" {
			return nil, malformed(o.OrderID, "transaction without TransactionID")
		}
		qty := t.QuantityPurchased
		if qty <= 0 {
			qty = 1
		}
		site := t.Item.Site
		if site == "" {
			site = "eBay"
		}

		f := OrderFacts{
			TransactionID: t.TransactionID,
			OrderID:       o.OrderID,
			ItemID:        t.Item.ItemID,
			Name:          t.Item.Title,
			Status:        status,
			UnitPrice:     t.TransactionPrice.Value,
			Quantity:      qty,
			Currency:      t.TransactionPrice.CurrencyID,
			SaleDate:      isoTime(o.CreatedTime),
			Platform:      &site,
			Site:          site,
			Buyer:         buyer,
			Shipping:      ebayShipping(&o, &t),
			Refunded:      raw != nil,
			Refund:        refund,
			CreatedDate:   isoTime(t.CreatedDate),
			ModifiedAt:    modified,
		}
		// AmountPaid covers the whole order, so fees are only derivable for single-line orders.
		if len(o.TransactionArray.Transaction) == 1 {
			paid := o.AmountPaid.Value
			f.TotalPaid = &paid
		}
		if t.Taxes != nil {
			currency := t.Taxes.TotalTaxAmount.CurrencyID
			if currency == "" {
				currency = f.Currency
			}
			f.Tax = &model.Tax{Amount: money(t.Taxes.TotalTaxAmount.Value), Currency: currency}
		}
		lines = append(lines, f)
	}
	return lines, nil
}

func (v ebayOrders) ItemDetail(ctx context.Context, s *session, itemID string) (*ItemDetail, error) {
	if itemID == "" {
		return nil, nil
	}
	d, err := cache.Fetch(ctx, v.cache, "ebay:item:"+itemID, v.ttl, func() (ItemDetail, error) {
		it, err := v.api.Item(ctx, s.account.AccessToken, itemID)
		if err != nil {
			return ItemDetail{}, err
		}
		images := model.NormalizeImages(it.PictureDetails.PictureURL...)
		if len(images) == 0 {
			images = model.NormalizeImages(it.PictureDetails.GalleryURL)
		}
		return ItemDetail{
			Image:      images,
			DateListed: isoTime(it.ListingDetails.StartTime),
			Currency:   it.Currency(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func ebayRefund(r *ebay.Refund) *model.Refund {
	currency := r.RefundAmount.CurrencyID
	if currency == "" {
		currency = "GBP"
	}
	return &model.Refund{
		Status:      r.RefundStatus,
		Type:        r.RefundType,
		Amount:      money(r.RefundAmount.Value.Abs()),
		Currency:    currency,
		RefundedTo:  optional(r.RefundTo.Value),
		RefundedAt:  optional(isoTime(r.RefundTime)),
		ReferenceID: optional(r.ReferenceID.Value),
	}
}

func ebayShipping(o *ebay.Order, t *ebay.Transaction) model.Shipping {
	tracking := t.ShippingDetails.ShipmentTrackingDetails
	return model.Shipping{
		Fees:             money(o.ShippingFees()),
		Service:          optional(tracking.ShippingCarrierUsed),
		TrackingNumber:   optional(tracking.ShipmentTrackingNumber),
		TimeDays:         wholeDays(o.ShippedTime, o.ShippingServiceSelected.ShippingPackageInfo.ActualDeliveryTime),
		PaymentToShipped: wholeDays(o.PaidTime, o.ShippedTime),
		ShippedAt:        optional(isoTime(o.ShippedTime)),
	}
}

// isoTime normalises a marketplace timestamp to the persisted layout.
// Unparseable values are kept as they are.
func isoTime(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := model.ParseTime(raw)
	if err != nil {
		return raw
	}
	return model.FormatTime(t)
}

// wholeDays returns the number of full days from a to b, nil when either is missing.
func wholeDays(a, b string) *int {
	ta, errA := model.ParseTime(a)
	tb, errB := model.ParseTime(b)
	if errA != nil || errB != nil {
		return nil
	}
	d := int(tb.Sub(ta) / (24 * time.Hour))
	return &d
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
