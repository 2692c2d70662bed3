package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

// EventPublisher records room events in a journal.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.RoomEvent) (uint64, error)
}

type nopPublisher struct{}

func (nopPublisher) PublishEvent(context.Context, *model.RoomEvent) (uint64, error) { return 0, nil }

const publishTimeout = 2 * time.Second

// publish sends an event on a best-effort basis. Failures are logged and
// counted but never change the result of the operation that caused them.
func (s *ChatService) publish(ctx context.Context, roomID string, typ model.EventType, reason string, meta map[string]any) {
	event := &model.RoomEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		RoomID:    roomID,
		Type:      typ,
		Reason:    reason,
		Metadata:  meta,
		CreatedAt: s.now(),
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if _, err := s.events.PublishEvent(pctx, event); err != nil {
		metrics.EventPublishFailures.WithLabelValues(string(typ)).Inc()
		s.logger.WithRoom(roomID).Warn("failed to publish room event",
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
