// Package upstream talks to the tally API. It owns the wire protocol:
// auth headers, the 401 refresh-and-retry, transient-status backoff, and
// the empty-body retry the upstream is known to need right after polls
// open. Callers only see decoded payloads.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tallydesk/election-poller/internal/auth"
)

const userAgent = "tally-poller/1.0"

// Client fetches raw result objects from the tally API.
type Client struct {
	baseURL     string
	tokens      auth.TokenSource
	httpClient  *http.Client
	log         *zap.Logger
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	// emptyRetryWait is how long to wait before re-requesting a 200
	// response that came back empty or non-JSON.
	emptyRetryWait time.Duration
}

func New(baseURL string, tokens auth.TokenSource, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		tokens:         tokens,
		httpClient:     &http.Client{Timeout: timeout},
		log:            log,
		maxAttempts:    3,
		backoffBase:    time.Second,
		backoffCap:     16 * time.Second,
		emptyRetryWait: time.Second,
	}
}

// Results fetches the tally payload for a category, scoped to a district
// when scopeID is non-empty.
func (c *Client) Results(ctx context.Context, categoryID int, scopeID string) (map[string]any, error) {
	body, err := c.getWithEmptyRetry(ctx, "/resultados/getResultados", scopeParams(categoryID, scopeID))
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// CountingStatus fetches the counting-status payload, the secondary
// source for the progress metric.
func (c *Client) CountingStatus(ctx context.Context, categoryID int, scopeID string) (map[string]any, error) {
	body, err := c.get(ctx, "/estados/estadoRecuento", scopeParams(categoryID, scopeID))
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// Categories fetches the contest category catalog. Depending on API
// version the payload is a bare list or an object wrapper, so it decodes
// to any.
func (c *Client) Categories(ctx context.Context) (any, error) {
	body, err := c.get(ctx, "/catalogo/getCategorias", nil)
	if err != nil {
		return nil, err
	}
	return decodeAny(body)
}

// Catalog fetches the scope catalog for one category.
func (c *Client) Catalog(ctx context.Context, categoryID int) (any, error) {
	params := url.Values{"categoriaId": {strconv.Itoa(categoryID)}}
	body, err := c.get(ctx, "/catalogo/getCatalogo", params)
	if err != nil {
		return nil, err
	}
	return decodeAny(body)
}

func scopeParams(categoryID int, scopeID string) url.Values {
	params := url.Values{"categoriaId": {strconv.Itoa(categoryID)}}
	if scopeID != "" {
		params.Set("distritoId", scopeID)
	}
	return params
}

// getWithEmptyRetry re-requests once after a short wait when a 2xx
// response carries no body or a non-JSON content type. A still-empty
// second response decodes as an empty object, which the reconciler treats
// as an empty result.
func (c *Client) getWithEmptyRetry(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, contentType, err := c.do(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 && isJSON(contentType) {
		return body, nil
	}
	c.log.Warn("empty or non-JSON response, retrying once",
		zap.String("path", path), zap.String("content_type", contentType))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.emptyRetryWait):
	}
	body, _, err = c.do(ctx, path, params)
	return body, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, _, err := c.do(ctx, path, params)
	return body, err
}

// do performs an authorized GET. A 401 triggers one token refresh and one
// retry; a second 401 is a failure. Transient statuses back off with the
// usual doubling wait, bounded by maxAttempts.
func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, string, error) {
	refreshed := false
	wait := c.backoffBase

	for attempt := 1; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("upstream: token: %w", err)
		}

		body, status, contentType, err := c.once(ctx, path, params, token)
		if err != nil {
			return nil, "", err
		}

		switch {
		case status == http.StatusUnauthorized && !refreshed:
			refreshed = true
			if _, err := c.tokens.Refresh(ctx); err != nil {
				return nil, "", fmt.Errorf("upstream: refresh token: %w", err)
			}
			continue
		case transientStatus(status) && attempt < c.maxAttempts:
			c.log.Warn("transient upstream status, backing off",
				zap.String("path", path), zap.Int("status", status), zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(wait):
			}
			if wait *= 2; wait > c.backoffCap {
				wait = c.backoffCap
			}
			continue
		case status < 200 || status >= 300:
			return nil, "", fmt.Errorf("upstream: %s: http %d", path, status)
		}
		return body, contentType, nil
	}
}

func (c *Client) once(ctx context.Context, path string, params url.Values, token string) ([]byte, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, "", err
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Authorization", "Bearer "+token)
	// Older API gateways read the bare Token header instead.
	req.Header.Set("Token", token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("upstream: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("upstream: read %s: %w", path, err)
	}
	return body, resp.StatusCode, resp.Header.Get("Content-Type"), nil
}

func transientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/json")
}

func decodeObject(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("upstream: decode payload: %w", err)
	}
	return obj, nil
}

func decodeAny(body []byte) (any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("upstream: decode payload: %w", err)
	}
	return v, nil
}
