package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MailgunConfig configures the Mailgun email Channel (spec.md §6).
type MailgunConfig struct {
	Enabled bool
	APIKey  string
	Domain  string
	From    string
	To      string
	Timeout time.Duration
}

// MailgunNotifier sends alert notifications as email via Mailgun's HTTP API.
type MailgunNotifier struct {
	config      MailgunConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewMailgunNotifier constructs a MailgunNotifier. Rate limited to 10 req/s,
// burst 5, matching PostmarkNotifier.
func NewMailgunNotifier(config MailgunConfig) *MailgunNotifier {
	return &MailgunNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(10.0, 5),
	}
}

func (m *MailgunNotifier) Name() string { return "mailgun" }
func (m *MailgunNotifier) IsEnabled() bool {
	return m.config.Enabled && m.config.APIKey != "" && m.config.Domain != "" && m.config.To != ""
}

func (m *MailgunNotifier) endpoint() string {
	return fmt.Sprintf("https://api.mailgun.net/v3/%s/messages", m.config.Domain)
}

func (m *MailgunNotifier) sendRequest(ctx context.Context, msg Message) error {
	text := msg.Body
	if msg.URL != "" {
		text = fmt.Sprintf("%s\n\n%s", msg.Body, msg.URL)
	}
	form := url.Values{}
	form.Set("from", m.config.From)
	form.Set("to", m.config.To)
	form.Set("subject", msg.Title)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.config.APIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: "Mailgun rate limit exceeded", RetryAfter: extractRetryAfter(resp, body)}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Mailgun API client error: %s", string(body))}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Mailgun API server error: %s", string(body))}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// Send implements Channel with the same rate-limit-then-retry-twice shape
// as PostmarkNotifier.Send.
func (m *MailgunNotifier) Send(ctx context.Context, msg Message) error {
	if err := m.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	const maxAttempts = 2
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := m.sendRequest(ctx, msg)
		if err == nil {
			slog.Info("mailgun alert delivered", slog.String("alert_key", msg.AlertKey), slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return err
		}
		if rateLimitErr, ok := is429Error(err); ok {
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("mailgun notification failed after %d attempts: %w", maxAttempts, lastErr)
}
