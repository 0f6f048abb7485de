// Package ebay is a client for the eBay Trading API calls used by the sync engine.
package ebay

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"storesync-api/internal/marketplace"
)

// MaxPerPage is the largest page GetMyeBaySelling and GetOrders accept.
const MaxPerPage = 200

// Config holds Trading API credentials and limits.
type Config struct {
	Endpoint           string
	AppID              string
	DevID              string
	CertID             string
	SiteID             string
	CompatibilityLevel string
	Timeout            time.Duration
	RequestsPerSecond  float64
}

// Client calls the Trading API with an OAuth user token.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Entry
}

// NewClient creates a Trading API client.
func NewClient(cfg Config, log *logrus.Entry) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

type acked interface {
	header() responseHeader
}

func (c *Client) call(ctx context.Context, token, callName string, req any, resp acked) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := xml.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", callName, err)
	}
	body = append([]byte(xml.Header), body...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "text/xml")
	httpReq.Header.Set("X-EBAY-API-CALL-NAME", callName)
	httpReq.Header.Set("X-EBAY-API-SITEID", c.cfg.SiteID)
	httpReq.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", c.cfg.CompatibilityLevel)
	httpReq.Header.Set("X-EBAY-API-APP-NAME", c.cfg.AppID)
	httpReq.Header.Set("X-EBAY-API-DEV-NAME", c.cfg.DevID)
	httpReq.Header.Set("X-EBAY-API-CERT-NAME", c.cfg.CertID)
	httpReq.Header.Set("X-EBAY-API-IAF-TOKEN", token)

	start := time.Now()
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return marketplace.Upstream(callName, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return marketplace.Upstream(callName, err)
	}

	c.log.WithFields(logrus.Fields{
		"call":     callName,
		"status":   res.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("trading api call")

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%s: %w", callName, &marketplace.HTTPError{Status: res.StatusCode, Body: truncate(string(raw), 512)})
	}

	if err := xml.Unmarshal(raw, resp); err != nil {
		return marketplace.Upstream(callName, fmt.Errorf("decode response: %w", err))
	}

	h := resp.header()
	if h.Ack == "Failure" || h.Ack == "PartialFailure" {
		msgs := make([]string, 0, len(h.Errors))
		for _, e := range h.Errors {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", e.LongMessage, e.ErrorCode))
		}
		return marketplace.Upstream(callName, fmt.Errorf("ack %s: %s", h.Ack, strings.Join(msgs, "; ")))
	}
	return nil
}

// ActiveListings returns one page of the seller's active listings.
func (c *Client) ActiveListings(ctx context.Context, token string, page, perPage int) (*GetMyeBaySellingResponse, error) {
	req := getMyeBaySellingRequest{}
	req.ActiveList.Include = true
	req.ActiveList.Sort = "TimeLeft"
	req.ActiveList.Pagination = pagination{EntriesPerPage: clampPerPage(perPage), PageNumber: page}

	var resp GetMyeBaySellingResponse
	if err := c.call(ctx, token, "GetMyeBaySelling", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OrderQuery selects a GetOrders page.
type OrderQuery struct {
	TimeFrom time.Time
	Now      time.Time
	Page     int
	PerPage  int
}

// Orders returns one page of orders of every status since q.TimeFrom.
func (c *Client) Orders(ctx context.Context, token string, q OrderQuery) (*GetOrdersResponse, error) {
	req := getOrdersRequest{
		OrderStatus: "All",
		Pagination:  pagination{EntriesPerPage: clampPerPage(q.PerPage), PageNumber: q.Page},
	}
	from := q.TimeFrom.UTC().Format(time.RFC3339)
	if TimeKey(q.TimeFrom, q.Now) == "ModTimeFrom" {
		req.ModTimeFrom = from
		req.ModTimeTo = q.Now.UTC().Format(time.RFC3339)
	} else {
		req.CreateTimeFrom = from
		req.CreateTimeTo = q.Now.UTC().Format(time.RFC3339)
	}

	var resp GetOrdersResponse
	if err := c.call(ctx, token, "GetOrders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Item returns the detail of one listing.
func (c *Client) Item(ctx context.Context, token, itemID string) (*Item, error) {
	var resp GetItemResponse
	req := getItemRequest{ItemID: itemID, DetailLevel: "ReturnAll"}
	if err := c.call(ctx, token, "GetItem", req, &resp); err != nil {
		return nil, err
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("GetItem %s: empty item", itemID)
	}
	return resp.Item, nil
}

// TimeKey picks the GetOrders filter for timeFrom. Windows younger than 30 days
// filter on modification time so status changes are picked up.
func TimeKey(timeFrom, now time.Time) string {
	if now.Sub(timeFrom) < 30*24*time.Hour {
		return "ModTimeFrom"
	}
	return "CreateTimeFrom"
}

func clampPerPage(n int) int {
	if n <= 0 || n > MaxPerPage {
		return MaxPerPage
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
