package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/unidrive/unidrive/internal/metrics"
	"github.com/unidrive/unidrive/internal/retry"
)

// Client lists folders on the remote drive with retry and rate limiting.
type Client struct {
	baseURL     string
	driveUserID string
	httpClient  *http.Client
	tokens      TokenSource
	limiter     *rate.Limiter
	retryPolicy retry.Policy
}

// Config holds client configuration.
type Config struct {
	BaseURL           string
	DriveUserID       string
	Tokens            TokenSource
	Timeout           time.Duration
	RetryPolicy       retry.Policy
	RequestsPerSecond float64
}

// New creates a drive API client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		driveUserID: cfg.DriveUserID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		tokens:      cfg.Tokens,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retryPolicy: cfg.RetryPolicy,
	}
}

// ListRoot lists the top-level children of the drive root.
func (c *Client) ListRoot(ctx context.Context) ([]Item, error) {
	return c.list(ctx, "list_root", c.driveURL("/root/children"))
}

// ListChildren lists the children of a folder by item ID.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]Item, error) {
	return c.list(ctx, "list_children", c.driveURL("/items/"+folderID+"/children"))
}

func (c *Client) driveURL(suffix string) string {
	return c.baseURL + "/users/" + c.driveUserID + "/drive" + suffix
}

type listPage struct {
	Value    []Item `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// list fetches every page of a children listing.
func (c *Client) list(ctx context.Context, op, url string) ([]Item, error) {
	var items []Item
	for url != "" {
		page, err := retry.Do(ctx, c.retryPolicy, func() (listPage, error) {
			return c.fetchPage(ctx, op, url)
		})
		if err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		url = page.NextLink
	}
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, op, url string) (listPage, error) {
	var page listPage

	if err := c.limiter.Wait(ctx); err != nil {
		return page, err
	}

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return page, &Error{Op: op, Err: fmt.Errorf("token: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return page, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(op, 0, time.Since(start))
		return page, retry.Retryable(&Error{Op: op, Err: err, Retryable: true})
	}
	defer resp.Body.Close()
	metrics.RecordRemoteRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		rerr := &Error{Op: op, Status: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			rerr.Retryable = true
			return page, retry.Retryable(rerr)
		}
		return page, rerr
	}

	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return page, &Error{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return page, nil
}
