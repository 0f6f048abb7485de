package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storesync-api/internal/cache"
	"storesync-api/internal/config"
	"storesync-api/internal/lock"
	"storesync-api/internal/logging"
	"storesync-api/internal/marketplace"
	"storesync-api/internal/marketplace/depop"
	"storesync-api/internal/marketplace/ebay"
	"storesync-api/internal/model"
	"storesync-api/internal/repository"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeEbay struct {
	listings [][]ebay.Item
	orders   [][]ebay.Order
	items    map[string]*ebay.Item
	err      error

	// onListings runs inside every ActiveListings call, while the run holds its lock.
	onListings func()

	listingCalls int
	itemCalls    int
	queries      []ebay.OrderQuery
}

func (f *fakeEbay) ActiveListings(_ context.Context, _ string, page, _ int) (*ebay.GetMyeBaySellingResponse, error) {
	f.listingCalls++
	if f.onListings != nil {
		f.onListings()
	}
	if f.err != nil {
		return nil, f.err
	}
	resp := &ebay.GetMyeBaySellingResponse{}
	resp.ActiveList.PaginationResult.TotalNumberOfPages = len(f.listings)
	if page <= len(f.listings) {
		resp.ActiveList.ItemArray.Item = f.listings[page-1]
	}
	return resp, nil
}

func (f *fakeEbay) Orders(_ context.Context, _ string, q ebay.OrderQuery) (*ebay.GetOrdersResponse, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	resp := &ebay.GetOrdersResponse{HasMoreOrders: q.Page < len(f.orders)}
	if q.Page <= len(f.orders) {
		resp.OrderArray.Order = f.orders[q.Page-1]
	}
	return resp, nil
}

func (f *fakeEbay) Item(_ context.Context, _ string, itemID string) (*ebay.Item, error) {
	f.itemCalls++
	if it, ok := f.items[itemID]; ok {
		return it, nil
	}
	return nil, marketplace.Upstream("GetItem", errors.New("item not found"))
}

type fakeDepop struct {
	listings []depop.Product
	sold     []depop.Product
	cursors  []string
}

func (f *fakeDepop) Listings(_ context.Context, _, _ string, limit int, after string) (*depop.ProductsPage, error) {
	f.cursors = append(f.cursors, after)
	return productPage(f.listings, limit, after), nil
}

func (f *fakeDepop) Sold(_ context.Context, _, _ string, limit int, offsetID string) (*depop.ProductsPage, error) {
	f.cursors = append(f.cursors, offsetID)
	return productPage(f.sold, limit, offsetID), nil
}

func productPage(all []depop.Product, limit int, after string) *depop.ProductsPage {
	start := 0
	if after != "" {
		start = len(all)
		for i, p := range all {
			if string(p.ID) == after {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(all))
	page := &depop.ProductsPage{Products: all[start:end]}
	page.Meta.End = end >= len(all)
	if end > start {
		page.Meta.LastOffsetID = all[end-1].ID
	}
	return page
}

// racingGateway lets another writer bump the user document right before
// the next races store updates, so those compare-and-swap writes conflict.
type racingGateway struct {
	*repository.MemoryStore
	races int
	raced int
}

func (g *racingGateway) UpdateCounterFields(ctx context.Context, userID, path string, fields map[string]any, expectedVersion int64) error {
	if path == "store" && g.raced < g.races {
		g.raced++
		if err := g.MemoryStore.UpdateCounterFields(ctx, userID, "store.numOrders", map[string]any{"manual": 3}, -1); err != nil {
			return err
		}
	}
	return g.MemoryStore.UpdateCounterFields(ctx, userID, path, fields, expectedVersion)
}

type harness struct {
	engine *Engine
	gw     *repository.MemoryStore
	ebay   *fakeEbay
	depop  *fakeDepop
	locker *lock.LocalLocker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	limits, err := config.LoadLimits("")
	require.NoError(t, err)

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	h := &harness{
		gw:     repository.NewMemoryStore(),
		ebay:   &fakeEbay{items: map[string]*ebay.Item{}},
		depop:  &fakeDepop{},
		locker: lock.NewLocalLocker(),
	}
	h.engine = New(h.gw, h.locker, mc, h.ebay, h.depop, limits, Options{
		MaxDepth: 10,
		CacheTTL: time.Hour,
	}, logging.Discard())
	h.engine.now = func() time.Time { return testNow }
	return h
}

// seedUser stores u1 on the free plan with both marketplaces connected.
func (h *harness) seedUser(t *testing.T, mutate func(u *model.User)) {
	t.Helper()
	u := &model.User{
		ID:            "u1",
		Subscriptions: []model.Subscription{{Name: "Free - member"}},
		ConnectedAccounts: map[model.Store]model.ConnectedAccount{
			model.StoreEbay:  {AccessToken: "ebay-token"},
			model.StoreDepop: {AccessToken: "depop-token", ShopID: "shop-1"},
		},
		Store: model.StoreState{
			NumOrders: model.OrderCounters{ResetDate: "2026-04-01T00:00:00.000Z"},
			StoreMeta: map[model.Store]model.StoreMeta{},
		},
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, h.gw.PutUser(context.Background(), u))
}

func (h *harness) user(t *testing.T) *model.User {
	t.Helper()
	u, err := h.gw.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	return u
}

func (h *harness) put(t *testing.T, coll repository.Collection, id string, doc []byte) {
	t.Helper()
	require.NoError(t, h.gw.Upsert(context.Background(), "u1", coll, id, doc))
}

func getDoc[T any](t *testing.T, h *harness, coll repository.Collection, id string) *T {
	t.Helper()
	m, err := loadExisting[T](context.Background(), h.gw, "u1", coll, []string{id})
	require.NoError(t, err)
	return m[id]
}

var (
	inventoryEbay  = repository.Collection{Kind: model.KindInventory, Store: model.StoreEbay}
	ordersEbay     = repository.Collection{Kind: model.KindOrders, Store: model.StoreEbay}
	inventoryDepop = repository.Collection{Kind: model.KindInventory, Store: model.StoreDepop}
	ordersDepop    = repository.Collection{Kind: model.KindOrders, Store: model.StoreDepop}
)

func fetchedBefore(kind model.Kind) func(u *model.User) {
	return func(u *model.User) {
		meta := u.Store.StoreMeta[model.StoreEbay]
		setKindDate(&meta.LastFetchedDate, kind, "2026-03-14T00:00:00.000Z")
		u.Store.StoreMeta[model.StoreEbay] = meta
	}
}

func gbp(v string) ebay.Amount {
	return ebay.Amount{Value: decimal.RequireFromString(v), CurrencyID: "GBP"}
}

func ebayItem(id string, qty int) ebay.Item {
	var it ebay.Item
	it.ItemID = id
	it.Title = "Item " + id
	it.Site = "UK"
	it.ListingType = "FixedPriceItem"
	it.Quantity = qty
	it.QuantityAvailable = qty
	it.BuyItNowPrice = gbp("12.50")
	it.SellingStatus.CurrentPrice = gbp("12.499")
	it.ListingDetails.StartTime = "2026-01-10T09:00:00.000Z"
	it.ListingDetails.ViewItemURL = "https://www.ebay.co.uk/itm/" + id
	it.PictureDetails.GalleryURL = "https://i.ebayimg.com/" + id + ".jpg"
	return it
}

// ebayOrder builds a single-line order: id "o", transaction "t-o", paid price + 3.20 shipping.
func ebayOrder(id, status, itemID, price string) ebay.Order {
	var o ebay.Order
	o.OrderID = id
	o.OrderStatus = status
	o.CreatedTime = "2026-03-10T10:00:00.000Z"
	o.PaidTime = "2026-03-10T10:05:00.000Z"
	o.BuyerUserID = "buyer-1"
	o.CheckoutStatus.LastModifiedTime = "2026-03-10T10:05:00.000Z"
	o.AmountPaid = gbp(decimal.RequireFromString(price).Add(decimal.RequireFromString("3.20")).String())
	o.ShippingDetails.ShippingServiceOptions = marketplace.OneOrMany[ebay.ShippingServiceOption]{{
		ShippingService:     "UK_RoyalMailSecondClass",
		ShippingServiceCost: &ebay.Amount{Value: decimal.RequireFromString("3.20"), CurrencyID: "GBP"},
	}}

	var t ebay.Transaction
	t.TransactionID = "t-" + id
	t.CreatedDate = o.CreatedTime
	t.QuantityPurchased = 1
	t.TransactionPrice = gbp(price)
	t.Item.ItemID = itemID
	t.Item.Title = "Item " + itemID
	t.Item.Site = "UK"
	o.TransactionArray.Transaction = marketplace.OneOrMany[ebay.Transaction]{t}
	return o
}

func depopProduct(id string, price string) depop.Product {
	return depop.Product{
		ID:          depop.ID(id),
		Slug:        "seller-" + id,
		Description: "Vintage denim " + id,
		Pricing: depop.Pricing{
			CurrencyName:  "GBP",
			OriginalPrice: depop.Price{TotalPrice: decimal.RequireFromString(price)},
			NationalShippingCost: &depop.ShippingCost{
				TotalPrice: decimal.RequireFromString("2.99"),
				Type:       "depop",
			},
		},
		Preview: depop.Preview{"https://media.depop.com/" + id + "/P2.jpg", "https://media.depop.com/" + id + "/P1.jpg"},
	}
}
