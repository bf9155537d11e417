package summarizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMetricsRecorder struct {
	lengths        []int
	limitExceeded  int
	complianceCall []bool
}

func (m *mockMetricsRecorder) RecordLength(length int) { m.lengths = append(m.lengths, length) }
func (m *mockMetricsRecorder) RecordLimitExceeded()    { m.limitExceeded++ }
func (m *mockMetricsRecorder) RecordCompliance(withinLimit bool) {
	m.complianceCall = append(m.complianceCall, withinLimit)
}
func (m *mockMetricsRecorder) RecordDuration(_ time.Duration) {}

func TestCloudflareConfig_Validate(t *testing.T) {
	cfg := DefaultCloudflareConfig("acct", "token")
	require.NoError(t, cfg.Validate())

	cfg.AccountID = ""
	assert.Error(t, cfg.Validate())
}

func TestCloudflare_Summarize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"response":"Fayette County approved new park funding today."},"success":true}`))
	}))
	defer server.Close()

	cfg := DefaultCloudflareConfig("acct", "test-token")
	cf := NewCloudflare(cfg, nil)
	cf.http = server.Client()
	cf.baseURL = server.URL

	summary, meta, err := cf.Summarize(context.Background(), "Fayette County commissioners met today to discuss park funding.")
	require.NoError(t, err)
	assert.Contains(t, summary, "Fayette County")
	assert.NotEmpty(t, meta)
}

func TestCloudflare_Summarize_APIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	cfg := DefaultCloudflareConfig("acct", "test-token")
	cf := NewCloudflare(cfg, nil)
	cf.http = server.Client()
	cf.baseURL = server.URL

	_, _, err := cf.Summarize(context.Background(), "some article text")
	assert.Error(t, err)
}

func TestCloudflare_Summarize_OverLimitTruncatesAndRecordsExceeded(t *testing.T) {
	longResponse := strings.Repeat("a", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"response":"` + longResponse + `"},"success":true}`))
	}))
	defer server.Close()

	cfg := DefaultCloudflareConfig("acct", "test-token")
	cfg.CharacterLimit = 100
	metrics := &mockMetricsRecorder{}
	cf := NewCloudflare(cfg, metrics)
	cf.http = server.Client()
	cf.baseURL = server.URL

	summary, _, err := cf.Summarize(context.Background(), "article")
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(summary)), 100)
	assert.Equal(t, 1, metrics.limitExceeded)
}

func TestNoOp_Summarize_ShortTextUnchanged(t *testing.T) {
	n := NewNoOp()
	summary, meta, err := n.Summarize(context.Background(), "short text")
	require.NoError(t, err)
	assert.Equal(t, "short text", summary)
	assert.NotEmpty(t, meta)
}

func TestNoOp_Summarize_LongTextTruncated(t *testing.T) {
	n := NewNoOp()
	long := strings.Repeat("x", 600)
	summary, _, err := n.Summarize(context.Background(), long)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(summary, "..."))
}

func TestMetaDescription_FirstSentenceCapped(t *testing.T) {
	got := metaDescription("First sentence here. Second sentence here.")
	assert.Equal(t, "First sentence here.", got)
}
