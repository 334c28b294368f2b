package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-floor-sync/models"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

// StatusError -> respons non-2xx dari store
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s failed: status=%d, body=%s", e.Path, e.Status, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// envelope mengikuti utils.JSONResponse di sisi server
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client -> GET ke store of record dengan retry terbatas
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry sets how many attempts a GET gets and the first pause between them.
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		attempts:   defaultAttempts,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.get(ctx, "/orders", &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) TableActivity(ctx context.Context) ([]models.TableActivation, error) {
	var out []models.TableActivation
	if err := c.get(ctx, "/tables/activity", &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) Workdays(ctx context.Context) ([]models.Workday, error) {
	var out []models.Workday
	if err := c.get(ctx, "/workdays", &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) Restaurant(ctx context.Context) (models.Restaurant, error) {
	var out models.Restaurant
	if err := c.get(ctx, "/restaurant", &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.get(ctx, "/users", &out); err != nil {
		return out, err
	}
	return out, nil
}

// get -> retry untuk error jaringan dan 5xx; 4xx langsung dikembalikan
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	wait := c.backoff
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			wait *= 2
		}

		lastErr = c.getOnce(ctx, path, out)
		if lastErr == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.retryable() {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, Status: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", path, err)
	}
	return nil
}
