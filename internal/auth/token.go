// Package auth obtains and refreshes the bearer credential for the tally
// API. Callers treat it as an opaque token source; HTTP headers and token
// storage stay here.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const userAgent = "tally-poller/1.0"

// tokenKeys is the search order for the credential inside a JSON response.
var tokenKeys = []string{"access_token", "token", "accessToken", "AccessToken"}

// nestedKeys are wrappers some API versions put around the token object.
var nestedKeys = []string{"data", "result", "resultado"}

// ErrNoToken reports a create-token response with no recognizable
// credential in it.
var ErrNoToken = errors.New("auth: response contains no recognizable token")

// TokenSource supplies a bearer credential on demand and can be asked to
// refresh it after an upstream 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Static adapts a fixed, externally managed credential.
type Static string

func (s Static) Token(context.Context) (string, error)   { return string(s), nil }
func (s Static) Refresh(context.Context) (string, error) { return string(s), nil }

// Client creates tokens against the /createtoken endpoint using the
// configured account, retrying transient failures with capped exponential
// backoff. The last good token is cached until a refresh is requested.
type Client struct {
	baseURL     string
	username    string
	password    string
	httpClient  *http.Client
	log         *zap.Logger
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	mu     sync.Mutex
	cached string
}

func NewClient(baseURL, username, password string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		username:    username,
		password:    password,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
		maxAttempts: 4,
		backoffBase: time.Second,
		backoffCap:  16 * time.Second,
	}
}

// Token returns the cached credential, creating one on first use.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != "" {
		return c.cached, nil
	}
	return c.createLocked(ctx)
}

// Refresh discards the cached credential and creates a new one.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = ""
	return c.createLocked(ctx)
}

func (c *Client) createLocked(ctx context.Context) (string, error) {
	wait := c.backoffBase
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		token, err := c.create(ctx)
		if err == nil {
			c.cached = token
			return token, nil
		}
		lastErr = err
		if !retryableTokenError(err) {
			return "", err
		}
		c.log.Warn("token create failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		if wait *= 2; wait > c.backoffCap {
			wait = c.backoffCap
		}
	}
	return "", fmt.Errorf("auth: create token after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) create(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/createtoken", nil)
	if err != nil {
		return "", err
	}
	// The endpoint authenticates through bespoke headers, not basic auth.
	req.Header.Set("username", c.username)
	req.Header.Set("password", c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: create token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("auth: read token response: %w", err)
	}
	token := ExtractToken(body)
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// ExtractToken finds the credential in a create-token response body:
// first under the known JSON keys (including nested wrappers), then as a
// plain-text body with optional Bearer prefix or quoting.
func ExtractToken(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if token := tokenFromObject(obj); token != "" {
			return token
		}
	}

	text := strings.TrimSpace(string(body))
	text = strings.TrimSpace(strings.TrimPrefix(text, "Bearer "))
	if len(text) >= 2 {
		if (text[0] == '"' && text[len(text)-1] == '"') || (text[0] == '\'' && text[len(text)-1] == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return text
}

func tokenFromObject(obj map[string]any) string {
	for _, key := range tokenKeys {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, key := range nestedKeys {
		if nested, ok := obj[key].(map[string]any); ok {
			if token := tokenFromObject(nested); token != "" {
				return token
			}
		}
	}
	return ""
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("auth: create token: http %d", e.status)
}

func retryableTokenError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, ErrNoToken) {
		return false
	}
	// Transport-level failures are worth retrying.
	return true
}
