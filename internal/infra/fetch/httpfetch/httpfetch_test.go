package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2026 07:28:00 GMT")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	res, err := c.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "hello world", string(res.Body))
}

func TestClient_Fetch_NotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	res, err := c.Fetch(context.Background(), srv.URL, Options{ETag: `"v1"`})
	require.NoError(t, err)
	assert.Equal(t, StatusNotModified, res.Status)
	assert.Empty(t, res.Body)
}

func TestClient_Fetch_Force_SkipsConditionalHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	_, err := c.Fetch(context.Background(), srv.URL, Options{ETag: `"v1"`, Force: true})
	require.NoError(t, err)
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	_, err := c.Fetch(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestClient_Fetch_BodyCapExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	_, err := c.Fetch(context.Background(), srv.URL, Options{MaxBodyBytes: 10})
	require.Error(t, err)
}

func TestClient_Fetch_UnboundedBodyBytes_SkipsCap(t *testing.T) {
	big := make([]byte, DefaultMaxBodyBytes+1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(big)
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	res, err := c.Fetch(context.Background(), srv.URL, Options{MaxBodyBytes: UnboundedBodyBytes})
	require.NoError(t, err)
	assert.Len(t, res.Body, len(big))
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(FeedFetchConfig())
	_, err := c.Fetch(context.Background(), srv.URL, Options{Timeout: 5 * time.Millisecond})
	require.Error(t, err)
}
