package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guonaihong/gout"

	"stockpilot/internal/schema"
)

// DefaultTimeout bounds every remote call when the caller doesn't
// configure one. The sync engine deliberately imposes no timeout of its
// own; this is where the bound lives.
const DefaultTimeout = 10 * time.Second

// Client talks to the remote store's HTTP API.
//
//	GET    {base}/api/v1/products?user_id=...
//	PUT    {base}/api/v1/products/{id}
//	DELETE {base}/api/v1/products/{id}
//
// and the same shape under /sales, plus GET {base}/health for probes.
type Client struct {
	base    string
	timeout time.Duration
}

var _ API = (*Client)(nil)

// NewClient creates a client for the API at baseURL. A non-positive
// timeout falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// bound caps the request with the client timeout. gout's own SetTimeout
// and WithContext are mutually exclusive, so the timeout lives on the
// context we pass in.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// FetchProducts implements API.FetchProducts.
func (c *Client) FetchProducts(ctx context.Context, userID string) ([]*schema.Product, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var out []*schema.Product
	var code int
	err := gout.GET(c.base+"/api/v1/products").
		WithContext(ctx).
		SetQuery(gout.H{"user_id": userID}).
		BindJSON(&out).
		Code(&code).
		Do()
	if err := classify(err, code); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return out, nil
}

// FetchSales implements API.FetchSales.
func (c *Client) FetchSales(ctx context.Context, userID string) ([]*schema.Sale, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var out []*schema.Sale
	var code int
	err := gout.GET(c.base+"/api/v1/sales").
		WithContext(ctx).
		SetQuery(gout.H{"user_id": userID}).
		BindJSON(&out).
		Code(&code).
		Do()
	if err := classify(err, code); err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	return out, nil
}

// UpsertProduct implements API.UpsertProduct.
func (c *Client) UpsertProduct(ctx context.Context, p *schema.Product) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var code int
	err := gout.PUT(c.base+"/api/v1/products/"+url.PathEscape(p.ID)).
		WithContext(ctx).
		SetJSON(p).
		Code(&code).
		Do()
	if err := classify(err, code); err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertSale implements API.UpsertSale.
func (c *Client) UpsertSale(ctx context.Context, s *schema.Sale) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var code int
	err := gout.PUT(c.base+"/api/v1/sales/"+url.PathEscape(s.ID)).
		WithContext(ctx).
		SetJSON(s).
		Code(&code).
		Do()
	if err := classify(err, code); err != nil {
		return fmt.Errorf("upsert sale %s: %w", s.ID, err)
	}
	return nil
}

// DeleteProduct implements API.DeleteProduct.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/api/v1/products/", id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// DeleteSale implements API.DeleteSale.
func (c *Client) DeleteSale(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/api/v1/sales/", id); err != nil {
		return fmt.Errorf("delete sale %s: %w", id, err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, prefix, id string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var code int
	err := gout.DELETE(c.base+prefix+url.PathEscape(id)).
		WithContext(ctx).
		Code(&code).
		Do()
	// deleting something already gone is success
	if code == http.StatusNotFound {
		return nil
	}
	return classify(err, code)
}

// Ping implements API.Ping.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var code int
	err := gout.GET(c.base+"/health").
		WithContext(ctx).
		Code(&code).
		Do()
	return classify(err, code)
}

// classify maps a transport error and status code onto the error
// taxonomy. Transport failures and 5xx are retryable NetworkErrors; 4xx
// means the remote understood and refused, which retries can't fix.
func classify(err error, code int) error {
	if code >= 400 && code < 500 {
		return &RejectionError{Status: code}
	}
	if err != nil {
		return &NetworkError{Err: err}
	}
	if code >= 500 || code == 0 {
		return &NetworkError{Err: fmt.Errorf("server error (status %d)", code)}
	}
	return nil
}
