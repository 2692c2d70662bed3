package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/llm"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

// RetryPolicy bounds the attempts made against the model backend.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds each attempt. Zero leaves attempts bounded only
	// by the turn.
	AttemptTimeout time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// complete calls the backend, retrying timeouts and unavailability.
func (s *ChatService) complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var (
		last    llm.Result
		attempt int
	)
	provider := s.llm.Name()

	op := func() error {
		attempt++
		actx, span := s.tracer.Start(ctx, "llm.complete")
		span.SetAttributes(
			attribute.String("llm.provider", provider),
			attribute.Int("llm.attempt", attempt),
		)
		cancel := context.CancelFunc(func() {})
		if s.opts.Retry.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(actx, s.opts.Retry.AttemptTimeout)
		}

		start := time.Now()
		resp, err := s.llm.Complete(actx, req)
		cancel()
		last = llm.Evaluate(resp, err)

		result := "ok"
		if last.Outcome != llm.OutcomeOK {
			result = string(last.Kind)
			span.RecordError(last.Err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		metrics.RecordLLMAttempt(provider, result, time.Since(start).Seconds())

		switch last.Outcome {
		case llm.OutcomeOK:
			return nil
		case llm.OutcomeRetryable:
			if err := ctx.Err(); err != nil {
				return backoff.Permanent(err)
			}
			return last.Err
		default:
			return backoff.Permanent(last.Err)
		}
	}

	notify := func(err error, wait time.Duration) {
		metrics.LLMRetriesTotal.WithLabelValues(string(last.Kind)).Inc()
		s.logger.Warn("retrying model backend",
			zap.String("provider", provider),
			zap.Int("attempt", attempt),
			zap.String("kind", string(last.Kind)),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, s.opts.Retry.backOff(ctx), notify); err != nil {
		if ctx.Err() != nil {
			return nil, interrupted(ctx, ErrUpstreamUnavailable)
		}
		switch last.Kind {
		case llm.FailureRateLimited:
			return nil, fmt.Errorf("%w: %w", ErrUpstreamRateLimited, err)
		case llm.FailureInvalidRequest:
			return nil, fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
		default:
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrUpstreamUnavailable, attempt, err)
		}
	}
	return last.Response, nil
}
