package syncer

import (
	"context"
	"time"

	"storesync-api/internal/marketplace/depop"
	"storesync-api/internal/model"
)

// DepopAPI is the subset of the Depop client the engine calls.
type DepopAPI interface {
	Listings(ctx context.Context, token, shopID string, limit int, after string) (*depop.ProductsPage, error)
	Sold(ctx context.Context, token, shopID string, limit int, offsetID string) (*depop.ProductsPage, error)
}

const depopProductURL = "https://www.depop.com/products/"

func depopPage(resp *depop.ProductsPage) Page[depop.Product] {
	return Page[depop.Product]{
		Records:    resp.Products,
		NextCursor: string(resp.Meta.LastOffsetID),
		HasMore:    !resp.Meta.End && resp.Meta.LastOffsetID != "",
	}
}

func depopExt(p *depop.Product) *model.DepopData {
	ext := &model.DepopData{
		Sizes:        p.Sizes,
		BrandID:      p.BrandID,
		CategoryID:   p.CategoryID,
		VariantSetID: p.VariantSetID,
		Variants:     p.Variants,
	}
	if p.Pricing.DiscountedPrice != nil {
		d := money(p.Pricing.DiscountedPrice.TotalPrice)
		ext.DiscountedPrice = &d
	}
	return ext
}

func depopImage(p *depop.Product) []string {
	img, _ := p.Preview.Last()
	return model.NormalizeImages(img)
}

type depopListings struct {
	api DepopAPI
}

func (depopListings) StartCursor(s *session) string {
	return s.meta().Offset.Get(model.KindInventory)
}

func (depopListings) Resumable() bool { return true }

func (v depopListings) FetchPage(ctx context.Context, s *session, cursor string, pageSize int) (Page[depop.Product], error) {
	resp, err := v.api.Listings(ctx, s.account.AccessToken, s.account.ShopID, pageSize, cursor)
	if err != nil {
		return Page[depop.Product]{}, err
	}
	return depopPage(resp), nil
}

func (depopListings) RecordID(p depop.Product) string { return string(p.ID) }

func (depopListings) Normalize(p depop.Product, existing *model.InventoryItem, now time.Time) (*model.InventoryItem, error) {
	if p.ID == "" {
		return nil, malformed("", "missing product id")
	}
	qty := p.Quantity()
	if p.Sold {
		qty = 0
	}

	item := &model.InventoryItem{
		ItemID:          string(p.ID),
		Name:            p.Description,
		Price:           money(p.Pricing.OriginalPrice.TotalPrice),
		Currency:        p.Pricing.CurrencyName,
		Quantity:        qty,
		InitialQuantity: qty,
		Image:           depopImage(&p),
		DateListed:      model.FormatTime(now),
		URL:             depopProductURL + p.Slug,
		Depop:           depopExt(&p),
	}
	if existing != nil {
		item.DateListed = existing.DateListed
		item.InitialQuantity = existing.InitialQuantity
	}
	return item, nil
}

type depopOrders struct {
	api DepopAPI
}

func (depopOrders) StartCursor(s *session) string {
	return s.meta().Offset.Get(model.KindOrders)
}

func (depopOrders) Resumable() bool { return true }

func (v depopOrders) FetchPage(ctx context.Context, s *session, cursor string, pageSize int) (Page[depop.Product], error) {
	resp, err := v.api.Sold(ctx, s.account.AccessToken, s.account.ShopID, pageSize, cursor)
	if err != nil {
		return Page[depop.Product]{}, err
	}
	return depopPage(resp), nil
}

func (depopOrders) RecordID(p depop.Product) string { return string(p.ID) }

// Lines maps a sold product onto a single completed line. Depop exposes no
// buyer total, so no fees are derived.
func (depopOrders) Lines(p depop.Product, now time.Time) ([]OrderFacts, error) {
	if p.ID == "" {
		return nil, malformed("", "missing product id")
	}
	stamp := model.FormatTime(now)
	platform := "Depop"

	shipping := model.Shipping{}
	if c := p.Pricing.NationalShippingCost; c != nil {
		shipping.Fees = money(c.TotalPrice)
		shipping.Service = optional(c.Type)
	}

	return []OrderFacts{{
		TransactionID: string(p.ID),
		ItemID:        string(p.ID),
		Name:          p.Description,
		Status:        model.StatusCompleted,
		UnitPrice:     p.Pricing.Effective(),
		Quantity:      1,
		Currency:      p.Pricing.CurrencyName,
		SaleDate:      stamp,
		Platform:      &platform,
		Site:          platform,
		Shipping:      shipping,
		CreatedDate:   stamp,
		ModifiedAt:    stamp,
		Image:         depopImage(&p),
		Depop:         depopExt(&p),
	}}, nil
}

// ItemDetail has no Depop counterpart; sold products carry their own images.
func (depopOrders) ItemDetail(context.Context, *session, string) (*ItemDetail, error) {
	return nil, nil
}
