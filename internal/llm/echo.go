package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EchoClient is a deterministic local backend. It replies with the last user
// message so the service can run without provider credentials.
type EchoClient struct{}

// NewEchoClient creates an echo client.
func NewEchoClient() *EchoClient {
	return &EchoClient{}
}

// Name returns the provider name.
func (c *EchoClient) Name() string {
	return string(ProviderEcho)
}

// Models returns available models.
func (c *EchoClient) Models() []string {
	return []string{"echo"}
}

// Complete echoes the last user message.
func (c *EchoClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, NewError(c.Name(), FailureTimeout, err)
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	if last == "" {
		return nil, NewError(c.Name(), FailureInvalidRequest, fmt.Errorf("no user message in request"))
	}

	tokensIn := 0
	for _, msg := range req.Messages {
		tokensIn += len(strings.Fields(msg.Content))
	}

	return &CompletionResponse{
		Content:    "echo: " + last,
		Model:      "echo",
		TokensIn:   tokensIn,
		TokensOut:  len(strings.Fields(last)) + 1,
		StopReason: "end_turn",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
