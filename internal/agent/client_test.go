package agent

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const anthropicOK = `{"content":[{"text":"generated text"}],"usage":{"input_tokens":10,"output_tokens":5}}`

func TestClientCompleteRecordsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Write([]byte(anthropicOK))
	}))
	defer server.Close()

	tracker := NewTracker(3.0, 15.0)
	client := NewClient("test-key",
		WithAPIConfig(server.URL, "test-model"),
		WithRateLimit(600, 10),
		WithLogger(testLogger()),
		WithUsage(tracker))

	got, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "generated text", got)

	totals := tracker.Totals()
	assert.Equal(t, int64(1), totals.Requests)
	assert.Equal(t, int64(10), totals.InputTokens)
	assert.Equal(t, int64(5), totals.OutputTokens)
	assert.InDelta(t, 10.0/1e6*3.0+5.0/1e6*15.0, totals.Cost, 1e-12)
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(anthropicOK))
	}))
	defer server.Close()

	client := NewClient("test-key",
		WithAPIConfig(server.URL, "test-model"),
		WithRateLimit(600, 10),
		WithRetry(2),
		WithLogger(testLogger()))

	got, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "generated text", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("test-key",
		WithAPIConfig(server.URL, "test-model"),
		WithRateLimit(600, 10),
		WithRetry(3),
		WithLogger(testLogger()))

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.False(t, pkgerrors.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatusErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, statusError(429, nil), pkgerrors.ErrRateLimited)
	assert.ErrorIs(t, statusError(503, nil), pkgerrors.ErrProvider)
	assert.ErrorIs(t, statusError(401, nil), pkgerrors.ErrNoRetry)
}

func TestSearchClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"choices":[{"message":{"content":"an answer"}}],"usage":{"prompt_tokens":4,"completion_tokens":8}}`))
	}))
	defer server.Close()

	client := NewSearchClient("search-key", server.URL, "sonar", WithSearchLogger(testLogger()))

	got, err := client.Search(context.Background(), "what is a widget")
	require.NoError(t, err)
	assert.Equal(t, "an answer", got)
}

func TestSearchClientEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewSearchClient("search-key", server.URL, "sonar", WithSearchLogger(testLogger()))

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestSearchClientWithoutKey(t *testing.T) {
	client := NewSearchClient("", "https://api.perplexity.ai", "sonar", WithSearchLogger(testLogger()))

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestCounter(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 2, approxTokens("abcdefg"))

	c := NewCounter()
	assert.Greater(t, c.Count("some text worth counting"), 0)
	assert.Equal(t, 0, c.Count(""))
}
