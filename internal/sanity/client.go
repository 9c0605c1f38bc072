// Package sanity is a read-only client for the Sanity content lake.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/voyagen/folio/internal/fetcher"
	"github.com/voyagen/folio/internal/models"
)

const (
	DefaultAPIVersion = "2024-01-01"
	imageCDN          = "https://cdn.sanity.io/images"
)

// ErrNotFound is returned when a single-document query matches nothing.
var ErrNotFound = errors.New("document not found")

// Client queries one project/dataset over the HTTP query API.
type Client struct {
	projectID  string
	dataset    string
	apiVersion string
	useCDN     bool
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIVersion pins the dated API version ("2024-01-01").
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = strings.TrimPrefix(v, "v") }
}

// WithCDN selects the cached API host (apicdn) instead of the live one.
func WithCDN(useCDN bool) Option {
	return func(c *Client) { c.useCDN = useCDN }
}

// WithBaseURL overrides the API host, e.g. for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the transport used for queries.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for projectID/dataset, reading through the CDN by default.
func NewClient(projectID, dataset string, opts ...Option) *Client {
	c := &Client{
		projectID:  projectID,
		dataset:    dataset,
		apiVersion: DefaultAPIVersion,
		useCDN:     true,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// queryURL returns the query endpoint, e.g.
// https://p9yhyed1.apicdn.sanity.io/v2024-01-01/data/query/production
func (c *Client) queryURL() string {
	base := c.baseURL
	if base == "" {
		host := "api"
		if c.useCDN {
			host = "apicdn"
		}
		base = fmt.Sprintf("https://%s.%s.sanity.io", c.projectID, host)
	}
	return fmt.Sprintf("%s/v%s/data/query/%s", base, c.apiVersion, url.PathEscape(c.dataset))
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
	MS     int             `json:"ms"`
}

// Query runs a GROQ query and decodes its result into out. Params are
// JSON-encoded as $name arguments. A null result yields ErrNotFound.
func (c *Client) Query(ctx context.Context, groq string, params map[string]any, out any) error {
	q := url.Values{"query": {groq}}
	for name, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode param %s: %w", name, err)
		}
		q.Set("$"+name, string(b))
	}

	var resp queryResponse
	err := fetcher.GetJSON(ctx, c.httpClient, fetcher.Request{
		URL:       c.queryURL() + "?" + q.Encode(),
		UserAgent: c.userAgent,
	}, &resp)
	if err != nil {
		return err
	}
	if len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
		return ErrNotFound
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// ListMedia returns every media document, newest first.
func (c *Client) ListMedia(ctx context.Context) ([]models.Media, error) {
	var media []models.Media
	if err := c.Query(ctx, listMediaQuery, nil, &media); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.Media{}, nil
		}
		return nil, fmt.Errorf("list media: %w", err)
	}
	return media, nil
}

// GetMedia returns the media document with the given slug.
func (c *Client) GetMedia(ctx context.Context, slug string) (*models.Media, error) {
	var m models.Media
	if err := c.Query(ctx, mediaBySlugQuery, map[string]any{"slug": slug}, &m); err != nil {
		return nil, fmt.Errorf("media %q: %w", slug, err)
	}
	return &m, nil
}

// ListLogs returns every log entry, latest date first.
func (c *Client) ListLogs(ctx context.Context) ([]models.Log, error) {
	var logs []models.Log
	if err := c.Query(ctx, listLogsQuery, nil, &logs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.Log{}, nil
		}
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}

// GetLog returns the log entry with the given slug.
func (c *Client) GetLog(ctx context.Context, slug string) (*models.Log, error) {
	var l models.Log
	if err := c.Query(ctx, logBySlugQuery, map[string]any{"slug": slug}, &l); err != nil {
		return nil, fmt.Errorf("log %q: %w", slug, err)
	}
	return &l, nil
}

// ImageURLFor resolves an image asset reference to its CDN URL in this
// client's project and dataset.
func (c *Client) ImageURLFor(ref string) (string, error) {
	r, err := ParseImageRef(ref)
	if err != nil {
		return "", err
	}
	return r.URL(c.projectID, c.dataset), nil
}
