package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tokradar/tokradar/pkg/retry"
	"github.com/tokradar/tokradar/pkg/whttp"
)

// Filters narrows a feed page request.
type Filters struct {
	Kind      string // "products" or "videos"
	Region    string
	Days      int
	ShopID    string
	ProductID string
}

// Logger is the smallest logging surface the feed layer needs. Callers pass
// logrus (or anything compatible); a nil Log discards everything.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config carries upstream connection settings. Credentials come from the
// caller's configuration, never from literals here.
type Config struct {
	BaseURL string
	Token   string
	Cookie  string
	Timeout time.Duration

	MaxAttempts int
	BaseDelay   time.Duration

	Log Logger
}

// Client fetches single pages from the upstream trend feed.
type Client struct {
	cfg Config
	log Logger

	// Sleep paces retry backoff. Tests replace it.
	Sleep func(time.Duration)
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Client{cfg: cfg, log: log, Sleep: time.Sleep}
}

// PageURL builds the request URL for one page.
func (c *Client) PageURL(offset, limit int, f Filters) string {
	kind := f.Kind
	if kind == "" {
		kind = "products"
	}
	q := url.Values{}
	q.Set("region", f.Region)
	q.Set("days", strconv.Itoa(f.Days))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if f.ShopID != "" {
		q.Set("shopId", f.ShopID)
	}
	if f.ProductID != "" {
		q.Set("productID", f.ProductID)
	}
	return fmt.Sprintf("%s/api/%s/trending?%s", c.cfg.BaseURL, kind, q.Encode())
}

// FetchPage requests one page and returns its records. Transport-level
// failures retry with backoff; once retries are exhausted, or when the
// response is non-200 or unparseable, the page degrades to empty and the
// failure is logged. Only auth misconfiguration surfaces as an error,
// since no later page can succeed either.
func (c *Client) FetchPage(ctx context.Context, offset, limit int, f Filters) ([]Record, error) {
	reqURL := c.PageURL(offset, limit, f)

	var res *whttp.Response
	err := retry.Do(ctx, func() error {
		var sendErr error
		res, sendErr = whttp.SendHTTPRequest(&whttp.Request{
			Method:  "GET",
			URL:     reqURL,
			Headers: c.authHeaders(),
			Timeout: c.cfg.Timeout,
		}, nil)
		if sendErr != nil {
			return retry.Transient(sendErr)
		}
		return nil
	}, retry.Options{
		MaxAttempts: c.cfg.MaxAttempts,
		BaseDelay:   c.cfg.BaseDelay,
		Sleep:       c.Sleep,
		OnRetry: func(attempt int, err error) {
			c.log.Debugf("feed fetch attempt %d failed (offset=%d): %v", attempt, offset, err)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warnf("feed page unreachable (offset=%d): %v", offset, err)
		return []Record{}, nil
	}

	switch res.StatusCode {
	case 200:
		// fall through to parsing
	case 401, 403:
		return nil, fmt.Errorf("upstream rejected credentials (status %d)", res.StatusCode)
	default:
		if res.HTTPTitle != "" {
			c.log.Warnf("feed page returned status %d (offset=%d): %s", res.StatusCode, offset, res.HTTPTitle)
		} else {
			c.log.Warnf("feed page returned status %d (offset=%d)", res.StatusCode, offset)
		}
		return []Record{}, nil
	}

	records, ok := extractRecords(res.BodyString)
	if !ok {
		title := res.HTTPTitle
		if title == "" {
			title = "unparseable body"
		}
		c.log.Warnf("feed page is not valid JSON (offset=%d): %s", offset, title)
		return []Record{}, nil
	}
	return records, nil
}

func (c *Client) authHeaders() []whttp.Header {
	var headers []whttp.Header
	if c.cfg.Token != "" {
		headers = append(headers, whttp.Header{Name: "Authorization", Value: "Bearer " + c.cfg.Token})
	}
	if c.cfg.Cookie != "" {
		headers = append(headers, whttp.Header{Name: "Cookie", Value: c.cfg.Cookie})
	}
	return headers
}

// extractRecords normalizes the upstream's response-shape variants: the
// record list shows up under "results", under "data", or as the top-level
// array, depending on the endpoint.
func extractRecords(body string) ([]Record, bool) {
	if !gjson.Valid(body) {
		return nil, false
	}
	parsed := gjson.Parse(body)

	var list gjson.Result
	switch {
	case parsed.Get("results").IsArray():
		list = parsed.Get("results")
	case parsed.Get("data").IsArray():
		list = parsed.Get("data")
	case parsed.IsArray():
		list = parsed
	default:
		return nil, false
	}

	records := []Record{}
	for _, item := range list.Array() {
		records = append(records, Record{Raw: item.Raw})
	}
	return records, true
}
