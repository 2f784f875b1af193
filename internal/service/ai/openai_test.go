package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIClientComplete(t *testing.T) {
	srv, calls := newOpenAIServer(t, func(w http.ResponseWriter, req chatRequest) {
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "Goal: lose weight.", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1","model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"Monday: buckwheat"}}],"usage":{"total_tokens":42}}`))
	})

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	text, err := client.Complete(context.Background(), "You are a helpful diet assistant.", "Goal: lose weight.")

	require.NoError(t, err)
	assert.Equal(t, "Monday: buckwheat", text)
	assert.Equal(t, 1, *calls)
}

func TestOpenAIClientFailureIsSingleShot(t *testing.T) {
	srv, calls := newOpenAIServer(t, func(w http.ResponseWriter, _ chatRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	})

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	_, err := client.Complete(context.Background(), "sys", "user")

	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 1, *calls)
}

func TestOpenAIClientRejectsEmptyChoices(t *testing.T) {
	srv, _ := newOpenAIServer(t, func(w http.ResponseWriter, _ chatRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-2","choices":[]}`))
	})

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	_, err := client.Complete(context.Background(), "sys", "user")

	assert.ErrorIs(t, err, ErrEmptyResponse)
}
