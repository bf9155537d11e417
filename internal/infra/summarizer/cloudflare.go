package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kybuzz/internal/utils/text"
)

// Summarizer is the interface the Enrichment Worker calls at pipeline step
// 10 (spec.md §4.10). NoOp and Cloudflare both implement it.
type Summarizer interface {
	Summarize(ctx context.Context, articleText string) (summary, metaDescription string, err error)
}

// CloudflareConfig configures the Cloudflare Workers AI REST summarizer
// (spec.md §6).
type CloudflareConfig struct {
	AccountID      string
	APIToken       string
	Model          string
	CharacterLimit int
	MaxTokens      int
	Timeout        time.Duration
}

// GetCharacterLimit implements SummarizerConfig.
func (c CloudflareConfig) GetCharacterLimit() int { return c.CharacterLimit }

// Validate implements SummarizerConfig.
func (c CloudflareConfig) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("summarizer: cloudflare account id is required")
	}
	if c.APIToken == "" {
		return fmt.Errorf("summarizer: cloudflare api token is required")
	}
	if c.Model == "" {
		return fmt.Errorf("summarizer: cloudflare model is required")
	}
	return ValidateCharacterLimit(c.CharacterLimit)
}

// DefaultCloudflareConfig applies spec.md §6's defaults on top of the
// account/token/model read from the environment.
func DefaultCloudflareConfig(accountID, apiToken string) CloudflareConfig {
	return CloudflareConfig{
		AccountID:      accountID,
		APIToken:       apiToken,
		Model:          "@cf/meta/llama-3.1-8b-instruct",
		CharacterLimit: 900,
		MaxTokens:      512,
		Timeout:        30 * time.Second,
	}
}

// cloudflareBaseURL is the production Workers AI REST root; overridden in
// tests to point at an httptest.Server instead.
const cloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// Cloudflare calls the Workers AI REST endpoint to produce a short summary
// and meta description for a full article body.
type Cloudflare struct {
	cfg     CloudflareConfig
	http    *http.Client
	metrics SummaryMetricsRecorder
	baseURL string
}

// NewCloudflare builds a Cloudflare summarizer. metrics may be nil, in
// which case a PrometheusSummaryMetrics instance is used.
func NewCloudflare(cfg CloudflareConfig, metrics SummaryMetricsRecorder) *Cloudflare {
	if metrics == nil {
		metrics = NewPrometheusSummaryMetrics()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Cloudflare{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		metrics: metrics,
		baseURL: cloudflareBaseURL,
	}
}

type cloudflareRequest struct {
	Messages  []cloudflareMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

type cloudflareMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cloudflareResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

const maxPromptChars = 10000

// Summarize posts articleText to the configured Workers AI model and
// returns a short summary plus a one-line meta description derived from it.
func (c *Cloudflare) Summarize(ctx context.Context, articleText string) (string, string, error) {
	start := time.Now()
	defer func() { c.metrics.RecordDuration(time.Since(start)) }()

	truncated := articleText
	if len(truncated) > maxPromptChars {
		truncated = truncated[:maxPromptChars] + "..."
	}

	reqBody := cloudflareRequest{
		Messages: []cloudflareMessage{
			{Role: "system", Content: fmt.Sprintf("Summarize the following Kentucky local news article in at most %d characters. Be factual and neutral.", c.cfg.CharacterLimit)},
			{Role: "user", Content: truncated},
		},
		MaxTokens: c.cfg.MaxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("summarizer: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.cfg.AccountID, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("summarizer: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("summarizer: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("summarizer: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("summarizer: cloudflare returned status %d: %s", resp.StatusCode, string(body))
	}

	var cfResp cloudflareResponse
	if err := json.Unmarshal(body, &cfResp); err != nil {
		return "", "", fmt.Errorf("summarizer: decode response: %w", err)
	}
	if !cfResp.Success || cfResp.Result.Response == "" {
		return "", "", fmt.Errorf("summarizer: cloudflare reported failure: %v", cfResp.Errors)
	}

	summary := strings.TrimSpace(cfResp.Result.Response)
	length := text.CountRunes(summary)
	withinLimit := length <= c.cfg.CharacterLimit
	c.metrics.RecordLength(length)
	c.metrics.RecordCompliance(withinLimit)
	if !withinLimit {
		c.metrics.RecordLimitExceeded()
		summary = truncateRunes(summary, c.cfg.CharacterLimit)
	}

	return summary, metaDescription(summary), nil
}

// truncateRunes cuts s to at most n runes, preserving multi-byte characters.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// metaDescription derives a single-sentence meta description from summary:
// the first sentence, capped at 160 characters, the conventional SEO limit.
func metaDescription(summary string) string {
	const metaLimit = 160
	sentence := summary
	if idx := strings.IndexAny(summary, ".!?"); idx >= 0 {
		sentence = summary[:idx+1]
	}
	return truncateRunes(strings.TrimSpace(sentence), metaLimit)
}
