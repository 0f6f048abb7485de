// Package depop reads shop products from the Depop web API.
package depop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"storesync-api/internal/marketplace"
	"storesync-api/internal/marketplace/transport"
)

// MaxPerPage caps the page size of product listings.
const MaxPerPage = 200

// Config holds Depop client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	ChromeTLS         bool
}

// Client fetches products for a shop.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Entry
}

// NewClient creates a Depop client. With ChromeTLS the client presents a browser TLS fingerprint.
func NewClient(cfg Config, log *logrus.Entry) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.ChromeTLS {
		httpClient.Transport = transport.NewChromeTransport(cfg.Timeout)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

// Listings returns one page of active products, starting after the given product id.
func (c *Client) Listings(ctx context.Context, token, shopID string, limit int, after string) (*ProductsPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampPerPage(limit)))
	q.Set("force_fee_calculation", "false")
	if after != "" {
		q.Set("after", after)
	}
	return c.get(ctx, token, fmt.Sprintf("/api/v3/shop/%s/products/", url.PathEscape(shopID)), q)
}

// Sold returns one page of sold products, starting at offsetID.
func (c *Client) Sold(ctx context.Context, token, shopID string, limit int, offsetID string) (*ProductsPage, error) {
	q := url.Values{}
	q.Set("lang", "en")
	q.Set("limit", strconv.Itoa(clampPerPage(limit)))
	q.Set("force_fee_calculation", "false")
	if offsetID != "" {
		q.Set("offset_id", offsetID)
	}
	return c.get(ctx, token, fmt.Sprintf("/api/v2/shop/%s/filteredProducts/sold/", url.PathEscape(shopID)), q)
}

func (c *Client) get(ctx context.Context, token, path string, q url.Values) (*ProductsPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Referer", "https://www.depop.com/")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, marketplace.Upstream("depop "+path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, marketplace.Upstream("depop "+path, err)
	}

	c.log.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("depop request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, fmt.Errorf("depop %s: %w", path, &marketplace.HTTPError{Status: resp.StatusCode, Body: string(body)})
	}

	var page ProductsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, marketplace.Upstream("depop "+path, fmt.Errorf("decode response: %w", err))
	}
	return &page, nil
}

func clampPerPage(n int) int {
	if n <= 0 || n > MaxPerPage {
		return MaxPerPage
	}
	return n
}
