package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gvsdash/internal/config"
)

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means the request goes out without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Client talks to the GVS backend. Resource areas hang off it as named
// sub-clients sharing one transport, one token source and one cache.
type Client struct {
	baseURL string
	http    *resty.Client // mutations and task polls, never retried
	reads   *resty.Client // cacheable reads, retried when configured
	tokens  TokenSource
	cache   *responseCache
	log     logrus.FieldLogger

	Auth          *AuthClient
	ProcessedData *ProcessedDataClient
	Anomalies     *AnomaliesClient
	Forecasts     *ForecastsClient
	Models        *ModelsClient
	ML            *MLClient
	Notifications *NotificationsClient
}

// NewClient creates a backend client. tokens may be nil for anonymous use.
func NewClient(cfg config.APIConfig, tokens TokenSource, log logrus.FieldLogger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
		cache:   newResponseCache(cfg.CacheSize, cfg.CacheTTL),
		log:     log.WithField("component", "api"),
	}

	c.http = c.newTransport(cfg.Timeout)

	c.reads = c.newTransport(cfg.Timeout)
	if cfg.RetryCount > 0 {
		c.reads.
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				// Retry on 429 (Too Many Requests) and 5xx server errors
				return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
			})
	}

	c.Auth = &AuthClient{c: c}
	c.ProcessedData = &ProcessedDataClient{c: c}
	c.Anomalies = &AnomaliesClient{c: c}
	c.Forecasts = &ForecastsClient{c: c}
	c.Models = &ModelsClient{c: c}
	c.ML = &MLClient{c: c}
	c.Notifications = &NotificationsClient{c: c}
	return c
}

func (c *Client) newTransport(timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		OnBeforeRequest(c.decorate)
}

// decorate attaches the current bearer token and a request id.
func (c *Client) decorate(_ *resty.Client, req *resty.Request) error {
	req.SetHeader("X-Request-ID", uuid.NewString())
	if c.tokens == nil {
		return nil
	}
	if token := c.tokens.Token(req.Context()); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return nil
}

// BaseURL returns the backend root the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Invalidate drops cached reads providing any of the tags.
func (c *Client) Invalidate(tags ...Tag) {
	if n := c.cache.Invalidate(tags...); n > 0 {
		c.log.WithField("entries", n).Debug("Invalidated cached reads")
	}
}

// ResetCache drops every cached read, used when the token changes.
func (c *Client) ResetCache() {
	c.cache.Clear()
}

func cacheKey(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	// Encode sorts by key, so equal parameter sets share a key.
	return path + "?" + params.Encode()
}

// query performs a cacheable GET and decodes the JSON body into out.
func (c *Client) query(ctx context.Context, path string, params url.Values, tags []Tag, out interface{}) error {
	key := cacheKey(path, params)
	if body, ok := c.cache.Get(key); ok {
		c.log.WithField("path", key).Debug("Cache hit")
		return decode(path, body, out)
	}

	resp, err := c.reads.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return newHTTPError("GET", path, resp)
	}

	if err := decode(path, resp.Body(), out); err != nil {
		return err
	}
	c.cache.Put(key, resp.Body(), tags)
	return nil
}

// fetch performs an uncached GET on the non-retrying transport.
func (c *Client) fetch(ctx context.Context, path string, out interface{}) error {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return newHTTPError("GET", path, resp)
	}
	return decode(path, resp.Body(), out)
}

// mutate sends a JSON body and invalidates tags once the backend accepts it.
func (c *Client) mutate(ctx context.Context, method, path string, body, out interface{}, invalidates ...Tag) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	return c.send(req, method, path, out, invalidates)
}

func (c *Client) send(req *resty.Request, method, path string, out interface{}, invalidates []Tag) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode(),
	}).Debug("Mutation completed")

	if !resp.IsSuccess() {
		return newHTTPError(method, path, resp)
	}

	if len(invalidates) > 0 {
		c.Invalidate(invalidates...)
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	return decode(path, resp.Body(), out)
}

func decode(path string, body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
