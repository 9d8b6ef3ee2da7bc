// Package backend is a client for the forms REST API that supplies
// pages, fields and field types to the designer and accepts exported
// flows.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

type (
	// Client talks to the forms API.
	Client struct {
		httpClient *http.Client
		baseURL    string
		token      string
		retry      RetryPolicy
		log        *slog.Logger
		now        func() time.Time
	}

	// Options configures a Client.
	Options struct {
		BaseURL    string
		Token      string
		Timeout    time.Duration
		Retry      RetryPolicy
		Logger     *slog.Logger
		HTTPClient *http.Client
	}

	// RetryPolicy bounds the retries of idempotent reads.
	RetryPolicy struct {
		MaxRetries int
		BaseDelay  time.Duration
		MaxDelay   time.Duration
	}
)

var (
	ErrStatus       = errors.New("unexpected response status")
	ErrDecode       = errors.New("cannot decode response")
	ErrTokenExpired = errors.New("access token expired")
)

const (
	routePages      = "/pages/"
	routeFields     = "/fields/"
	routeFieldTypes = "/field-types/"
	routeForms      = "/forms/"
	routeConditions = "/conditions/"
)

// DefaultRetryPolicy returns the retry policy used when none is given.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	q := p
	if q.BaseDelay <= 0 {
		q.BaseDelay = 200 * time.Millisecond
	}
	if q.MaxDelay < q.BaseDelay {
		q.MaxDelay = q.BaseDelay
	}
	if q.MaxRetries < 0 {
		q.MaxRetries = 0
	}
	return q
}

// backoff returns the wait before the given retry attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	return d
}

// New returns a client for the API at opts.BaseURL.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		retry:      opts.Retry.normalized(),
		log:        logger,
		now:        time.Now,
	}
}

// Pages lists pages matching the given query parameters.
func (c *Client) Pages(ctx context.Context, params url.Values) ([]Page, error) {
	var pages []Page
	err := c.getList(ctx, routePages, params, &pages)
	return pages, err
}

// Page fetches one page.
func (c *Client) Page(ctx context.Context, id int) (Page, error) {
	var p Page
	err := c.getJSON(ctx, routePages+strconv.Itoa(id)+"/", nil, &p)
	return p, err
}

// PageWithFields fetches a page with its categories and fields.
func (c *Client) PageWithFields(ctx context.Context, id int) (PageWithFields, error) {
	var p PageWithFields
	err := c.getJSON(ctx, routePages+strconv.Itoa(id)+"/with_fields/", nil, &p)
	return p, err
}

// Fields lists fields matching the given query parameters.
func (c *Client) Fields(ctx context.Context, params url.Values) ([]Field, error) {
	var fields []Field
	err := c.getList(ctx, routeFields, params, &fields)
	return fields, err
}

// FieldTypes lists every field type.
func (c *Client) FieldTypes(ctx context.Context) ([]FieldType, error) {
	var types []FieldType
	err := c.getList(ctx, routeFieldTypes, nil, &types)
	return types, err
}

// ActiveFieldTypes lists the field types currently in use.
func (c *Client) ActiveFieldTypes(ctx context.Context) ([]FieldType, error) {
	var types []FieldType
	err := c.getList(ctx, routeFieldTypes+"active/", nil, &types)
	return types, err
}

// FormSchema fetches the rendered form schema of a page.
func (c *Client) FormSchema(ctx context.Context, pageID int) (json.RawMessage, error) {
	return c.get(ctx, routeForms+strconv.Itoa(pageID)+"/schema/", nil)
}

// Conditions lists conditions matching the given query parameters.
func (c *Client) Conditions(ctx context.Context, params url.Values) ([]json.RawMessage, error) {
	var conds []json.RawMessage
	err := c.getList(ctx, routeConditions, params, &conds)
	return conds, err
}

// Statistics fetches the form statistics summary.
func (c *Client) Statistics(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	err := c.getJSON(ctx, routeForms+"statistics/", nil, &stats)
	return stats, err
}

// ExportForm fetches the exported configuration of a page's form.
func (c *Client) ExportForm(ctx context.Context, pageID int) (json.RawMessage, error) {
	return c.get(ctx, routeForms+strconv.Itoa(pageID)+"/export/", nil)
}

// ImportForm uploads a form configuration. It is never retried.
func (c *Client) ImportForm(ctx context.Context, config any) (json.RawMessage, error) {
	body := map[string]any{"form_config": config}
	return c.send(ctx, http.MethodPost, routeForms+"import/", body)
}

// LoadDesigner fetches a page with its fields and the active field
// types concurrently.
func (c *Client) LoadDesigner(ctx context.Context, pageID int) (*DesignerData, error) {
	var data DesignerData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.PageWithFields(gctx, pageID)
		data.Page = p
		return err
	})
	g.Go(func() error {
		types, err := c.ActiveFieldTypes(gctx)
		data.FieldTypes = types
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

// getList decodes a list response. Paginated responses carry the items
// under "results".
func (c *Client) getList(ctx context.Context, path string, params url.Values, v any) error {
	data, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if res := gjson.GetBytes(data, "results"); res.Exists() {
		data = []byte(res.Raw)
	}
	return decode(data, v)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	data, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	return decode(data, v)
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// get performs a GET, retrying transport errors, 429 and 5xx responses
// with exponential backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	target := path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retry.backoff(attempt - 1)
			c.log.Warn("retrying request",
				"method", http.MethodGet, "path", path, "attempt", attempt,
				"wait", wait, "error", lastErr)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
		data, retry, err := c.do(ctx, http.MethodGet, target, nil)
		if err == nil {
			return data, nil
		}
		if !retry || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	data, _, err := c.do(ctx, method, path, payload)
	return data, err
}

// do performs one request. The second result reports whether a failure
// is worth retrying.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, bool, error) {
	if err := c.checkToken(); err != nil {
		return nil, false, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	c.log.Debug("api request",
		"method", method, "path", path, "status", resp.StatusCode,
		"elapsed", c.now().Sub(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retry := resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("%w: %s %s: status %d, body: %s",
			ErrStatus, method, path, resp.StatusCode, string(data))
	}
	return data, false, nil
}

// checkToken rejects a JWT bearer token whose expiry has passed. Opaque
// tokens are sent as they are.
func (c *Client) checkToken() error {
	if c.token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !c.now().Before(exp.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
