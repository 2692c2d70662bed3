package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestClient(t *testing.T, status int, body string) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient("test-key", srv.URL+"/v1")
	require.NoError(t, err)
	return client
}

func TestOpenAIComplete(t *testing.T) {
	client := newOpenAITestClient(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
	}`)

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, 5, resp.TokensIn)
	assert.Equal(t, 2, resp.TokensOut)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestOpenAICompleteClassifiesFailures(t *testing.T) {
	cases := []struct {
		status int
		want   FailureKind
	}{
		{http.StatusTooManyRequests, FailureRateLimited},
		{http.StatusServiceUnavailable, FailureUnavailable},
		{http.StatusBadRequest, FailureInvalidRequest},
	}
	for _, tc := range cases {
		client := newOpenAITestClient(t, tc.status, `{"error": {"message": "nope", "type": "test_error"}}`)

		_, err := client.Complete(context.Background(), &CompletionRequest{
			Messages: []ChatMessage{{Role: "user", Content: "hello"}},
		})
		require.Error(t, err)
		assert.Equal(t, tc.want, Classify(err), "status %d", tc.status)
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ProviderOpenAI, Options{})
	require.Error(t, err)

	c, err := NewClient(ProviderEcho, Options{})
	require.NoError(t, err)
	assert.Equal(t, "echo", c.Name())

	_, err = NewClient("mystery", Options{})
	require.Error(t, err)
}

func TestEchoClient(t *testing.T) {
	c := NewEchoClient()
	resp, err := c.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "echo: second", resp.Content)

	_, err = c.Complete(context.Background(), &CompletionRequest{})
	assert.Equal(t, FailureInvalidRequest, Classify(err))
}
