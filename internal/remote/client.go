// Package remote implements the HTTP client for the Todone server API.
// The sync engine replays queued mutations through it; read endpoints are
// optionally cached in redis.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"todone/internal/config"
	"todone/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Client is an HTTP client for the remote Todone API.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Body)
}

// New constructs a client from config. Outbound calls are rate limited when
// cfg.RPS is set.
func New(cfg config.RemoteConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiExtra:   cfg.APIExtra,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// CreateEntity posts a queued create and returns the server-assigned id.
func (c *Client) CreateEntity(ctx context.Context, collection, payload string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/%s", c.baseURL, url.PathEscape(collection))

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("remote create response missing id")
	}
	return resp.ID, nil
}

// UpdateEntity replays a queued update against the remote entity.
func (c *Client) UpdateEntity(ctx context.Context, collection, id, payload string) error {
	endpoint := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, endpoint, payload, nil)
}

// DeleteEntity replays a queued delete.
func (c *Client) DeleteEntity(ctx context.Context, collection, id string) error {
	endpoint := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, "", nil)
}

// Health probes the remote health endpoint. The connectivity watcher treats
// any error as offline.
func (c *Client) Health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/v1/health", c.baseURL)
	return c.do(ctx, http.MethodGet, endpoint, "", nil)
}

// PullTasks fetches the server's task list for the recovery direction
// (remote → local store after a successful sync).
func (c *Client) PullTasks(ctx context.Context) ([]models.Task, error) {
	endpoint := fmt.Sprintf("%s/api/v1/tasks", c.baseURL)
	cacheKey := "remote:tasks"

	var wrap struct {
		Tasks []models.Task `json:"tasks"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Tasks, nil
	}

	if err := c.do(ctx, http.MethodGet, endpoint, "", &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Tasks, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, payload string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if payload != "" {
		body = bytes.NewReader([]byte(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, value any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}
