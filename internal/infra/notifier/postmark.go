package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// PostmarkConfig configures the Postmark email Channel (spec.md §6).
type PostmarkConfig struct {
	Enabled    bool
	ServerToken string
	From       string
	To         string
	Timeout    time.Duration
}

// PostmarkNotifier sends alert notifications as email via Postmark's
// transactional email API, mirroring SlackNotifier's request/retry shape.
type PostmarkNotifier struct {
	config      PostmarkConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewPostmarkNotifier constructs a PostmarkNotifier. Rate limited to 10
// req/s, burst 5 — well under Postmark's per-account send limits.
func NewPostmarkNotifier(config PostmarkConfig) *PostmarkNotifier {
	return &PostmarkNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(10.0, 5),
	}
}

func (p *PostmarkNotifier) Name() string { return "postmark" }
func (p *PostmarkNotifier) IsEnabled() bool {
	return p.config.Enabled && p.config.ServerToken != "" && p.config.To != ""
}

type postmarkEmailPayload struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	HtmlBody string `json:"HtmlBody"`
}

const postmarkEndpoint = "https://api.postmarkapp.com/email"

func (p *PostmarkNotifier) buildPayload(msg Message) postmarkEmailPayload {
	subject := msg.Title
	textBody := msg.Body
	if msg.URL != "" {
		textBody = fmt.Sprintf("%s\n\n%s", msg.Body, msg.URL)
	}
	htmlBody := fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p>", msg.Title, msg.Body)
	if msg.URL != "" {
		htmlBody += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, msg.URL, msg.URL)
	}
	return postmarkEmailPayload{
		From:     p.config.From,
		To:       p.config.To,
		Subject:  subject,
		TextBody: textBody,
		HtmlBody: htmlBody,
	}
}

func (p *PostmarkNotifier) sendRequest(ctx context.Context, msg Message) error {
	payload := p.buildPayload(msg)
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal postmark payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkEndpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.config.ServerToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: "Postmark rate limit exceeded", RetryAfter: extractRetryAfter(resp, body)}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Postmark API client error: %s", string(body))}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Postmark API server error: %s", string(body))}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// Send implements Channel with the same rate-limit-then-retry-twice shape
// as SlackNotifier.Send.
func (p *PostmarkNotifier) Send(ctx context.Context, msg Message) error {
	if err := p.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	const maxAttempts = 2
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := p.sendRequest(ctx, msg)
		if err == nil {
			slog.Info("postmark alert delivered", slog.String("alert_key", msg.AlertKey), slog.Int("attempt", attempt))
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
	return fmt.Errorf("postmark notification failed after %d attempts: %w", maxAttempts, lastErr)
}
