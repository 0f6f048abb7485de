package depop

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync-api/internal/logging"
	"storesync-api/internal/marketplace"
)

func newTestServer(t *testing.T, status int, body []byte, seen *[]*http.Request) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = append(*seen, r.Clone(r.Context()))
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, logging.Discard())
}

func TestListings(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "products.json"))
	require.NoError(t, err)

	var seen []*http.Request
	c := newTestServer(t, http.StatusOK, body, &seen)

	page, err := c.Listings(context.Background(), "", "shop1", 24, "31000")
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "/api/v3/shop/shop1/products/", seen[0].URL.Path)
	assert.Equal(t, "24", seen[0].URL.Query().Get("limit"))
	assert.Equal(t, "31000", seen[0].URL.Query().Get("after"))
	assert.Equal(t, "false", seen[0].URL.Query().Get("force_fee_calculation"))
	assert.Empty(t, seen[0].Header.Get("Authorization"))

	assert.Equal(t, ID("31337"), page.Meta.LastOffsetID)
	assert.False(t, page.Meta.End)
	require.Len(t, page.Products, 2)

	jacket := page.Products[0]
	assert.Equal(t, ID("31336"), jacket.ID)
	assert.Equal(t, 3, jacket.Quantity())
	assert.True(t, decimal.RequireFromString("19.50").Equal(jacket.Pricing.Effective()))
	last, ok := jacket.Preview.Last()
	require.True(t, ok)
	assert.Equal(t, "https://img/1280.jpg", last)

	scarf := page.Products[1]
	assert.True(t, scarf.Sold)
	assert.Equal(t, 1, scarf.Quantity())
	assert.True(t, decimal.RequireFromString("12").Equal(scarf.Pricing.Effective()))
	_, ok = scarf.Preview.Last()
	assert.False(t, ok)
}

func TestSoldQuery(t *testing.T) {
	var seen []*http.Request
	c := newTestServer(t, http.StatusOK, []byte(`{"products":[],"meta":{"end":true}}`), &seen)

	page, err := c.Sold(context.Background(), "tok", "shop1", 500, "")
	require.NoError(t, err)
	assert.True(t, page.Meta.End)
	assert.Equal(t, "/api/v2/shop/shop1/filteredProducts/sold/", seen[0].URL.Path)
	assert.Equal(t, "200", seen[0].URL.Query().Get("limit"))
	assert.Equal(t, "en", seen[0].URL.Query().Get("lang"))
	assert.False(t, seen[0].URL.Query().Has("offset_id"))
	assert.Equal(t, "Bearer tok", seen[0].Header.Get("Authorization"))
}

func TestUpstreamErrors(t *testing.T) {
	var seen []*http.Request
	c := newTestServer(t, http.StatusTooManyRequests, []byte("slow down"), &seen)
	_, err := c.Sold(context.Background(), "", "shop1", 10, "")
	assert.True(t, errors.Is(err, marketplace.ErrUpstream))

	c = newTestServer(t, http.StatusOK, []byte("<html>"), &seen)
	_, err = c.Listings(context.Background(), "", "shop1", 10, "")
	assert.True(t, errors.Is(err, marketplace.ErrUpstream))
}
