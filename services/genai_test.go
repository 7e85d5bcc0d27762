package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crs-prediction-api/config"
	"crs-prediction-api/logger"
)

func testForecastConfig(baseURL string) config.ForecastConfig {
	return config.ForecastConfig{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: baseURL + "/",
		Timeout: 2 * time.Second,
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(config.ForecastConfig{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"trend_analysis\":"},{"text":"\"ok\"}"}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewGeminiClient(testForecastConfig(srv.URL))
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "forecast please")
	require.NoError(t, err)

	assert.Equal(t, `{"trend_analysis":"ok"}`, text)
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.NotContains(t, gotQuery, "test-key")
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "forecast please", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)
}

func TestGeminiGenerateTransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := testForecastConfig(srv.URL)
	srv.Close()

	client, err := NewGeminiClient(cfg)
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":generateContent")
	assert.NotContains(t, err.Error(), "test-key")
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"blank text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewGeminiClient(testForecastConfig(srv.URL))
			require.NoError(t, err)
			_, err = client.Generate(context.Background(), "p")
			assert.Error(t, err)
		})
	}

	t.Run("status is reported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, strings.Repeat("x", 2000), http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client, err := NewGeminiClient(testForecastConfig(srv.URL))
		require.NoError(t, err)
		_, err = client.Generate(context.Background(), "p")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.LessOrEqual(t, len(apiErr.Body), 515)
	})
}

type countingGenerator struct {
	calls int
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return "{}", g.err
}

func TestBreakerGeneratorOpensAfterFailures(t *testing.T) {
	inner := &countingGenerator{err: errors.New("boom")}
	gen := NewBreakerGenerator(inner, logger.Nop())

	for i := 0; i < 3; i++ {
		_, err := gen.Generate(context.Background(), "p")
		assert.EqualError(t, err, "boom")
	}
	assert.Equal(t, gobreaker.StateOpen, gen.State())

	_, err := gen.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerGeneratorPassesThrough(t *testing.T) {
	inner := &countingGenerator{}
	gen := NewBreakerGenerator(inner, logger.Nop())

	text, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, gobreaker.StateClosed, gen.State())
}
