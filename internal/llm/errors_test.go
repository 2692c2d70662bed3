package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForStatus(t *testing.T) {
	cases := map[int]FailureKind{
		http.StatusTooManyRequests:     FailureRateLimited,
		http.StatusRequestTimeout:      FailureTimeout,
		http.StatusGatewayTimeout:      FailureTimeout,
		http.StatusInternalServerError: FailureUnavailable,
		529:                            FailureUnavailable,
		http.StatusBadRequest:          FailureInvalidRequest,
		http.StatusUnauthorized:        FailureInvalidRequest,
	}
	for status, want := range cases {
		assert.Equal(t, want, KindForStatus(status), "status %d", status)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureNone, Classify(nil))
	assert.Equal(t, FailureTimeout, Classify(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, FailureRateLimited, Classify(NewError("x", FailureRateLimited, errors.New("429"))))
	assert.Equal(t, FailureUnavailable, Classify(errors.New("connection reset")))
}

func TestEvaluate(t *testing.T) {
	ok := Evaluate(&CompletionResponse{Content: "hi"}, nil)
	assert.Equal(t, OutcomeOK, ok.Outcome)
	assert.Equal(t, "hi", ok.Response.Content)

	for _, kind := range []FailureKind{FailureTimeout, FailureUnavailable} {
		res := Evaluate(nil, NewError("x", kind, errors.New("boom")))
		assert.Equal(t, OutcomeRetryable, res.Outcome, kind)
		assert.Equal(t, kind, res.Kind)
	}
	for _, kind := range []FailureKind{FailureRateLimited, FailureInvalidRequest} {
		res := Evaluate(nil, NewError("x", kind, errors.New("boom")))
		assert.Equal(t, OutcomeFatal, res.Outcome, kind)
		require.Error(t, res.Err)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := &Error{Kind: FailureUnavailable, Provider: "openai", StatusCode: 503, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "status 503")
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	})
	assert.Equal(t, []string{"be brief"}, system)
	assert.Equal(t, []ChatMessage{{Role: "user", Content: "hello"}}, rest)
}
