// Package service implements the chat orchestration of the room service.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/contextwin"
	"github.com/capitalize-ai/chatrooms/internal/llm"
	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/internal/roomlock"
	"github.com/capitalize-ai/chatrooms/internal/store"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

// Options configures a ChatService.
type Options struct {
	// AutoCreate creates unknown rooms on their first chat turn. When false,
	// chatting in an unknown room fails with ErrRoomNotFound.
	AutoCreate bool
	// TurnTimeout bounds the work done while holding a room lock. A turn
	// that outlives it fails with ErrUpstreamUnavailable.
	TurnTimeout time.Duration

	Model       string
	MaxTokens   int
	Temperature float64
	Retry       RetryPolicy

	// Events defaults to a publisher that drops everything.
	Events EventPublisher
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// ChatService orchestrates chat turns and room queries.
type ChatService struct {
	store   store.Store
	locker  roomlock.Locker
	builder *contextwin.Builder
	llm     llm.Client
	events  EventPublisher
	logger  *logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
	opts    Options
}

// NewChatService creates a new chat service.
func NewChatService(
	st store.Store,
	locker roomlock.Locker,
	builder *contextwin.Builder,
	client llm.Client,
	log *logger.Logger,
	opts Options,
) *ChatService {
	s := &ChatService{
		store:   st,
		locker:  locker,
		builder: builder,
		llm:     client,
		events:  opts.Events,
		logger:  log,
		tracer:  otel.Tracer("github.com/capitalize-ai/chatrooms/internal/service"),
		now:     opts.Clock,
		opts:    opts,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	return s
}

// DoChat sends prompt to the room and returns the assistant's reply.
func (s *ChatService) DoChat(ctx context.Context, roomID, prompt string) (string, error) {
	res, err := s.Chat(ctx, roomID, prompt)
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

// Chat runs one conversation turn: it builds the context window from the
// room history, asks the model backend for a reply and commits the prompt
// and the reply together. Turns on the same room are serialized. On any
// failure nothing is recorded.
func (s *ChatService) Chat(ctx context.Context, roomID, prompt string) (*model.ChatResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "chat.turn", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	res, err := s.chat(ctx, roomID, prompt)

	outcome := "ok"
	if err != nil {
		outcome = Code(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	metrics.RecordTurn(outcome, time.Since(start).Seconds())

	if err != nil {
		log := s.logger.WithRoom(roomID)
		switch {
		case errors.Is(err, ErrInvalidRoomID), errors.Is(err, ErrEmptyPrompt), errors.Is(err, ErrRoomNotFound):
			log.Debug("chat turn rejected", zap.String("code", outcome), zap.Error(err))
		default:
			log.Warn("chat turn failed", zap.String("code", outcome), zap.Error(err))
			s.publish(ctx, roomID, model.EventTypeTurnFailed, outcome, nil)
		}
		return nil, err
	}
	return res, nil
}

func (s *ChatService) chat(ctx context.Context, roomID, prompt string) (*model.ChatResult, error) {
	if !model.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, mapStoreErr(err)
		}
		if !s.opts.AutoCreate {
			return nil, ErrRoomNotFound
		}
	}

	var res *model.ChatResult
	err := s.locker.WithRoomLock(ctx, roomID, func(ctx context.Context) error {
		if s.opts.TurnTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeoutCause(ctx, s.opts.TurnTimeout, errTurnTimeout)
			defer cancel()
		}

		var err error
		res, err = s.turn(ctx, roomID, prompt)
		return err
	})
	if err != nil {
		return nil, mapLockErr(err)
	}
	return res, nil
}

// turn runs under the room lock.
func (s *ChatService) turn(ctx context.Context, roomID, prompt string) (*model.ChatResult, error) {
	created := false
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, mapTurnStoreErr(ctx, err)
		}
		created = true
	}

	history, err := s.store.GetHistory(ctx, roomID)
	if err != nil {
		return nil, mapTurnStoreErr(ctx, err)
	}

	window := s.builder.Build(history, prompt)
	metrics.ContextWindowSize.Observe(float64(window.Size))
	if window.Truncated {
		metrics.PromptTruncationsTotal.Inc()
	}

	resp, err := s.complete(ctx, &llm.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    window.Messages,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, interrupted(ctx, ErrUpstreamUnavailable)
	}

	at := s.now()
	turn := &model.Turn{
		RoomID: roomID,
		Title:  model.TitleFromPrompt(prompt),
		User: &model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Role:      model.RoleUser,
			Content:   prompt,
			CreatedAt: at,
		},
		Assistant: &model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Role:      model.RoleAssistant,
			Content:   resp.Content,
			Model:     &resp.Model,
			TokensIn:  &resp.TokensIn,
			TokensOut: &resp.TokensOut,
			LatencyMs: &resp.LatencyMs,
			CreatedAt: at,
		},
		At: at,
	}

	cctx, span := s.tracer.Start(ctx, "store.append_turn")
	err = s.store.AppendTurn(cctx, turn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
	}
	span.End()
	if err != nil {
		return nil, mapTurnStoreErr(ctx, err)
	}

	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	metrics.RecordLLMTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	s.logger.WithRoom(roomID).Info("chat turn committed",
		zap.Uint64("sequence", turn.Assistant.Sequence),
		zap.Int("history_messages", window.HistoryCount),
		zap.Int("window_size", window.Size),
		zap.Bool("prompt_truncated", window.Truncated),
		zap.Bool("room_created", created),
	)

	if created {
		metrics.RoomsCreatedTotal.WithLabelValues("auto").Inc()
		s.publish(ctx, roomID, model.EventTypeRoomCreated, "", map[string]any{"title": turn.Title})
	}
	s.publish(ctx, roomID, model.EventTypeTurnCommitted, "", map[string]any{
		"sequence":         turn.Assistant.Sequence,
		"model":            resp.Model,
		"prompt_truncated": window.Truncated,
	})

	return &model.ChatResult{
		RoomID:           roomID,
		Reply:            resp.Content,
		PromptTruncated:  window.Truncated,
		RoomCreated:      created,
		UserMessage:      turn.User,
		AssistantMessage: turn.Assistant,
	}, nil
}
