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

	"github.com/google/uuid"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Enabled indicates whether Slack notifications are enabled
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls (spec.md §6: 8s)
	Timeout time.Duration
}

// SlackNotifier sends alert notifications to Slack via Incoming Webhook.
type SlackNotifier struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSlackNotifier creates a new SlackNotifier with the specified configuration.
//
// The notifier is initialized with:
//   - HTTP client with configured timeout
//   - Rate limiter set to 1 request/second with burst of 1
//     (Slack Webhook limit: 1 message per second)
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(1.0, 1), // 1 req/s, burst of 1
	}
}

func (s *SlackNotifier) Name() string    { return "slack" }
func (s *SlackNotifier) IsEnabled() bool { return s.config.Enabled && s.config.WebhookURL != "" }

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // Fallback text (required)
	Blocks []SlackBlock `json:"blocks"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`               // "section", "context", "divider"
	Text     *SlackTextObject  `json:"text,omitempty"`     // Text content (for section)
	Elements []SlackTextObject `json:"elements,omitempty"` // Elements (for context)
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"` // Actual text content
}

const (
	// Slack Block Kit limits
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxFallbackLength    = 150

	// Truncation suffix
	slackTruncationSuffix = "..."
)

// buildBlockKitPayload creates a Slack webhook payload from an alert Message.
//
// The payload includes:
//   - Text: Fallback text for notifications (alert title)
//   - Section Block: Title (bold, linked when URL is set) + body text
//   - Context Block: alert key + timestamp
func (s *SlackNotifier) buildBlockKitPayload(msg Message) SlackWebhookPayload {
	fallbackText := msg.Title
	if len(fallbackText) > maxFallbackLength {
		fallbackText = fallbackText[:maxFallbackLength-len(slackTruncationSuffix)] + slackTruncationSuffix
	}

	titleText := fmt.Sprintf("*%s*", msg.Title)
	if msg.URL != "" {
		titleText = fmt.Sprintf("*<%s|%s>*", msg.URL, msg.Title)
	}
	sectionText := fmt.Sprintf("%s\n\n%s", titleText, msg.Body)
	sectionText = truncateSummary(sectionText, maxSectionTextLength, slackTruncationSuffix)

	contextText := fmt.Sprintf("%s • %s", msg.AlertKey, msg.At.Format(time.RFC3339))
	contextText = truncateSummary(contextText, maxContextTextLength, slackTruncationSuffix)

	sectionBlock := SlackBlock{
		Type: "section",
		Text: &SlackTextObject{Type: "mrkdwn", Text: sectionText},
	}
	contextBlock := SlackBlock{
		Type:     "context",
		Elements: []SlackTextObject{{Type: "mrkdwn", Text: contextText}},
	}

	return SlackWebhookPayload{
		Text:   fallbackText,
		Blocks: []SlackBlock{sectionBlock, contextBlock},
	}
}

// sendWebhookRequest sends a Slack webhook request for msg.
//
// Error types:
//   - 429: Rate limit error (retryable, contains retry_after duration)
//   - 4xx (non-429): Client error (non-retryable)
//   - 5xx: Server error (retryable)
//   - Network error: Connection/timeout error (retryable)
func (s *SlackNotifier) sendWebhookRequest(ctx context.Context, msg Message) error {
	payload := s.buildBlockKitPayload(msg)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := extractRetryAfter(resp, body)
		return &RateLimitError{Message: "Slack rate limit exceeded", RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Slack API client error: %s", string(body))}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Slack API server error: %s", string(body))}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// sendWebhookRequestWithRetry sends a Slack webhook request with retry logic.
//
// Retry strategy:
//   - Max attempts: 2
//   - Base delay: 5 seconds
//   - 429 errors: Use retry_after from Slack response (or Retry-After header)
//   - Server errors (5xx): Exponential backoff (5s, 10s)
//   - Client errors (4xx): No retry, fail immediately
func (s *SlackNotifier) sendWebhookRequestWithRetry(ctx context.Context, msg Message) error {
	const (
		maxAttempts = 2
		baseDelay   = 5 * time.Second
	)

	requestID, _ := ctx.Value(requestIDKey).(string)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.sendWebhookRequest(ctx, msg)
		if err == nil {
			slog.Info("slack alert delivered",
				slog.String("request_id", requestID), slog.String("alert_key", msg.AlertKey), slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("slack rate limit hit, backing off",
				slog.String("request_id", requestID), slog.String("alert_key", msg.AlertKey),
				slog.Duration("retry_after", rateLimitErr.RetryAfter), slog.Int("attempt", attempt))
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			slog.Error("slack alert failed with non-retryable error",
				slog.String("request_id", requestID), slog.String("alert_key", msg.AlertKey), slog.Any("error", err))
			return err
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			slog.Warn("slack alert request failed, retrying",
				slog.String("request_id", requestID), slog.String("alert_key", msg.AlertKey),
				slog.Any("error", err), slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("slack notification failed after %d attempts: %w", maxAttempts, lastErr)
}

// Send implements Channel. It generates a request_id for tracing, applies
// rate limiting, and sends with retry.
func (s *SlackNotifier) Send(ctx context.Context, msg Message) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return s.sendWebhookRequestWithRetry(ctx, msg)
}
