package arena

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/voyagen/folio/internal/fetcher"
	"github.com/voyagen/folio/internal/models"
)

const (
	// DefaultBaseURL is the public Are.na v2 API.
	DefaultBaseURL = "https://api.are.na/v2"

	defaultPage     = 1
	defaultPer      = 20
	defaultDrainPer = 100
)

// Sort is the ordering key for channel contents.
type Sort string

const (
	SortPosition  Sort = "position"
	SortUpdatedAt Sort = "updated_at"
)

// Valid reports whether s is empty or a key the API accepts.
func (s Sort) Valid() bool {
	return s == "" || s == SortPosition || s == SortUpdatedAt
}

// Direction is the ordering direction for channel contents.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether d is empty or a direction the API accepts.
func (d Direction) Valid() bool {
	return d == "" || d == Asc || d == Desc
}

// ContentsOptions selects one page of a channel's contents.
// Zero Page and Per mean 1 and 20; empty Sort and Direction are omitted.
type ContentsOptions struct {
	Page      int
	Per       int
	Sort      Sort
	Direction Direction
}

// PageOptions selects one page of a channel listing. Zero values mean page 1, 20 per page.
type PageOptions struct {
	Page int
	Per  int
}

// API is the set of Are.na reads the rest of the app depends on.
type API interface {
	GetChannel(ctx context.Context, slugOrID string) (*models.Channel, error)
	GetChannelContents(ctx context.Context, slugOrID string, opts ContentsOptions) (*models.ChannelPage, error)
	GetAllChannelContents(ctx context.Context, slugOrID string, per int) ([]models.Block, error)
	GetBlock(ctx context.Context, id int64) (*models.Block, error)
	SearchChannels(ctx context.Context, query string, opts PageOptions) (*models.ChannelList, error)
	GetUser(ctx context.Context, slug string) (*models.User, error)
	GetUserChannels(ctx context.Context, slug string, opts PageOptions) (*models.ChannelList, error)
}

// Client is an Are.na REST client. It never retries and imposes no timeout
// of its own; both are left to the supplied *http.Client and ctx.
type Client struct {
	baseURL     string
	accessToken string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithAccessToken enables bearer authentication. An empty token keeps requests anonymous.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = strings.TrimSpace(token) }
}

// WithHTTPClient sets the transport used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps outgoing requests per second across all calls of the
// client. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates an Are.na client. Without options it talks to the
// public API anonymously using http.DefaultClient.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetChannel fetches a channel by slug or numeric id.
func (c *Client) GetChannel(ctx context.Context, slugOrID string) (*models.Channel, error) {
	var ch models.Channel
	if err := c.get(ctx, "/channels/"+url.PathEscape(slugOrID), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChannelContents fetches one page of a channel's blocks.
func (c *Client) GetChannelContents(ctx context.Context, slugOrID string, opts ContentsOptions) (*models.ChannelPage, error) {
	q := pageQuery(opts.Page, opts.Per)
	if opts.Sort != "" {
		q.Set("sort", string(opts.Sort))
	}
	if opts.Direction != "" {
		q.Set("direction", string(opts.Direction))
	}

	var page models.ChannelPage
	if err := c.get(ctx, "/channels/"+url.PathEscape(slugOrID)+"/contents", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAllChannelContents drains every page of a channel's contents, in server
// order. Pages are requested one after another starting at 1 until the page
// index reaches the total_pages reported by the latest response. per <= 0
// means 100. Any failure discards what was collected so far.
func (c *Client) GetAllChannelContents(ctx context.Context, slugOrID string, per int) ([]models.Block, error) {
	if per <= 0 {
		per = defaultDrainPer
	}

	blocks := make([]models.Block, 0, per)
	for page := 1; ; page++ {
		resp, err := c.GetChannelContents(ctx, slugOrID, ContentsOptions{Page: page, Per: per})
		if err != nil {
			return nil, fmt.Errorf("channel %s contents page %d: %w", slugOrID, page, err)
		}
		blocks = append(blocks, resp.Contents...)

		if page >= resp.TotalPages {
			break
		}
	}
	return blocks, nil
}

// GetBlock fetches a single block.
func (c *Client) GetBlock(ctx context.Context, id int64) (*models.Block, error) {
	var b models.Block
	if err := c.get(ctx, "/blocks/"+strconv.FormatInt(id, 10), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SearchChannels searches public channels by text.
func (c *Client) SearchChannels(ctx context.Context, query string, opts PageOptions) (*models.ChannelList, error) {
	q := pageQuery(opts.Page, opts.Per)
	q.Set("q", query)

	var list models.ChannelList
	if err := c.get(ctx, "/search/channels", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetUser fetches a user profile by slug.
func (c *Client) GetUser(ctx context.Context, slug string) (*models.User, error) {
	var u models.User
	if err := c.get(ctx, "/users/"+url.PathEscape(slug), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserChannels resolves slug to a user id, then lists that id's channels.
// The listing is not attempted when the lookup fails.
func (c *Client) GetUserChannels(ctx context.Context, slug string, opts PageOptions) (*models.ChannelList, error) {
	u, err := c.GetUser(ctx, slug)
	if err != nil {
		return nil, err
	}

	var list models.ChannelList
	path := "/users/" + strconv.FormatInt(u.ID, 10) + "/channels"
	if err := c.get(ctx, path, pageQuery(opts.Page, opts.Per), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return fetcher.GetJSON(ctx, c.httpClient, fetcher.Request{
		URL:         u,
		BearerToken: c.accessToken,
		UserAgent:   c.userAgent,
	}, out)
}

func pageQuery(page, per int) url.Values {
	if page <= 0 {
		page = defaultPage
	}
	if per <= 0 {
		per = defaultPer
	}
	return url.Values{
		"page": {strconv.Itoa(page)},
		"per":  {strconv.Itoa(per)},
	}
}
