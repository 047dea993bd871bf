package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier sends alerts to a Telegram chat via the Bot API.
type Notifier struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	enabled    bool
	baseURL    string // overridable for testing; defaults to Telegram API
}

// NewNotifier creates a Notifier. Notifications are enabled only when both
// botToken and chatID are non-empty.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		enabled:    botToken != "" && chatID != "",
	}
}

// Enabled reports whether the notifier is active.
func (n *Notifier) Enabled() bool { return n.enabled }

// Send posts a message to the configured Telegram chat.
func (n *Notifier) Send(ctx context.Context, msg string) error {
	if !n.enabled {
		return nil
	}

	endpoint := n.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	}
	vals := url.Values{
		"chat_id":    {n.chatID},
		"text":       {msg},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("notify: telegram %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}

// NotifyStartup announces the poller coming online.
func (n *Notifier) NotifyStartup(ctx context.Context, categories []string, interval time.Duration) error {
	msg := fmt.Sprintf(
		"<b>Tally poller started</b>\nCategories: %s\nInterval: %s",
		strings.Join(categories, ", "), interval,
	)
	return n.Send(ctx, msg)
}

// NotifyCycleFailed alerts that every scope in a cycle fell back to
// previous data.
func (n *Notifier) NotifyCycleFailed(ctx context.Context, cycleID string, warnings int) error {
	msg := fmt.Sprintf(
		"<b>Cycle failed</b>\nCycle: <code>%s</code>\nEvery scope served fallback data (%d warnings).",
		cycleID, warnings,
	)
	return n.Send(ctx, msg)
}

// NotifyCycleDegraded alerts that some scopes fell back to previous data.
func (n *Notifier) NotifyCycleDegraded(ctx context.Context, cycleID string, scopesOK, scopesTotal int) error {
	msg := fmt.Sprintf(
		"<b>Cycle degraded</b>\nCycle: <code>%s</code>\nScopes OK: %d/%d",
		cycleID, scopesOK, scopesTotal,
	)
	return n.Send(ctx, msg)
}

// NotifyTokenRefreshed reports a credential rotation after an upstream 401.
func (n *Notifier) NotifyTokenRefreshed(ctx context.Context) error {
	return n.Send(ctx, "<b>Token refreshed</b>\nUpstream rejected the previous credential; a new one was issued.")
}
