package syncer

import (
	"time"

	"github.com/shopspring/decimal"

	"storesync-api/internal/model"
)

// financials holds the derived money fields of a line.
type financials struct {
	SalePrice      decimal.Decimal
	AdditionalFees decimal.Decimal
}

// deriveFinancials computes salePrice = unit × quantity and
// additionalFees = totalPaid − salePrice − shipping − tax, rounded to cents.
// Cancelled lines and lines without a reported total carry no fees.
func deriveFinancials(f *OrderFacts) financials {
	sale := f.UnitPrice.Mul(decimal.NewFromInt(int64(f.Quantity)))
	out := financials{SalePrice: sale, AdditionalFees: decimal.Zero}
	if f.TotalPaid == nil || f.Status == model.StatusCancelled {
		return out
	}

	fees := f.TotalPaid.Sub(sale).Sub(decimal.NewFromFloat(f.Shipping.Fees))
	if f.Tax != nil {
		fees = fees.Sub(decimal.NewFromFloat(f.Tax.Amount))
	}
	out.AdditionalFees = fees.Round(2)
	return out
}

// newOrder builds the record for a line seen for the first time.
// inv is the matching inventory item; detail is used when there is none.
func newOrder(f *OrderFacts, store model.Store, inv *model.InventoryItem, detail *ItemDetail, now time.Time) *model.OrderRecord {
	fin := deriveFinancials(f)
	stamp := model.FormatTime(now)

	rec := &model.OrderRecord{
		TransactionID: f.TransactionID,
		OrderID:       f.OrderID,
		ItemID:        f.ItemID,
		Name:          f.Name,
		Image:         f.Image,
		Sale: model.Sale{
			Date:          f.SaleDate,
			Price:         money(fin.SalePrice),
			Quantity:      f.Quantity,
			Currency:      f.Currency,
			Platform:      f.Platform,
			BuyerUsername: f.Buyer,
		},
		Shipping:       f.Shipping,
		Refund:         f.Refund,
		Tax:            f.Tax,
		AdditionalFees: money(fin.AdditionalFees),
		Status:         f.Status,
		RecordType:     model.RecordAutomatic,
		StoreType:      store,
		CreatedAt:      stamp,
		LastModified:   stamp,
		Depop:          f.Depop,
	}

	switch {
	case inv != nil:
		if len(rec.Image) == 0 {
			rec.Image = inv.Image
		}
		rec.ListingDate = inv.DateListed
		rec.CustomTag = inv.CustomTag
		qty := inv.InitialQuantity
		rec.Purchase = &model.Purchase{
			Currency: inv.Currency,
			Date:     inv.DateListed,
			Quantity: &qty,
		}
		if inv.Purchase != nil {
			rec.Purchase.Platform = inv.Purchase.Platform
			rec.Purchase.Price = inv.Purchase.Price
		}
	case detail != nil:
		if len(rec.Image) == 0 {
			rec.Image = detail.Image
		}
		rec.ListingDate = detail.DateListed
		rec.Purchase = &model.Purchase{Currency: detail.Currency, Date: detail.DateListed}
	}
	if rec.Image == nil {
		rec.Image = []string{}
	}

	rec.AppendEvent(milestone(f, rec.Refund, fin.SalePrice.StringFixed(2)))
	return rec
}

// reconcile applies the mutable fields of f to an existing record.
// It reports whether anything changed; identity fields are never touched.
func reconcile(rec *model.OrderRecord, f *OrderFacts, now time.Time) bool {
	fin := deriveFinancials(f)
	fees := money(fin.AdditionalFees)
	price := money(fin.SalePrice)

	changed := rec.AdditionalFees != fees ||
		!model.EqualShipping(rec.Shipping, f.Shipping) ||
		rec.Status != f.Status ||
		!model.EqualRefund(rec.Refund, f.Refund) ||
		rec.Name != f.Name ||
		rec.Sale.Price != price ||
		rec.Sale.Quantity != f.Quantity

	if !changed {
		return false
	}

	rec.AdditionalFees = fees
	rec.Shipping = f.Shipping
	rec.Status = f.Status
	rec.Refund = f.Refund
	rec.Name = f.Name
	rec.Sale.Price = price
	rec.Sale.Quantity = f.Quantity
	rec.AppendEvent(milestone(f, f.Refund, fin.SalePrice.StringFixed(2)))
	rec.LastModified = model.FormatTime(now)
	return true
}

// money converts a decimal to the persisted float, rounded to cents.
func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
