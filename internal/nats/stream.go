package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

const (
	// StreamName is the name of the room event stream.
	StreamName = "CHATROOMS"

	// SubjectPrefix is the prefix for all room subjects.
	SubjectPrefix = "room"

	// MaxReadEvents caps a single ReadEvents call.
	MaxReadEvents = 200
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
	logger *logger.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	log := client.logger
	if log == nil {
		log = logger.NewNop()
	}
	return &StreamManager{client: client, logger: log}
}

// EnsureStream ensures the room event stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Room lifecycle and turn outcome events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a room event.
func EventSubject(roomID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, roomID, eventType)
}

// RoomFilter returns the filter subject for all events of a room.
func RoomFilter(roomID string) string {
	return fmt.Sprintf("%s.%s.event.>", SubjectPrefix, roomID)
}

// PublishEvent appends an event to the journal and returns its stream
// sequence.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.RoomEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.RoomID, event.Type), data,
		jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// ReadEvents returns up to limit events of a room with a stream sequence
// greater than afterSequence.
func (m *StreamManager) ReadEvents(ctx context.Context, roomID string, afterSequence uint64, limit int) ([]model.RoomEvent, error) {
	if limit <= 0 || limit > MaxReadEvents {
		limit = MaxReadEvents
	}

	consumerConfig := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{RoomFilter(roomID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.FetchNoWait(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := []model.RoomEvent{}
	for msg := range batch.Messages() {
		if event, ok := m.decodeEvent(msg); ok {
			events = append(events, event)
		}
	}
	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("batch error: %w", err)
	}

	return events, nil
}

// journalMsg is the part of a jetstream.Msg needed to decode an event.
type journalMsg interface {
	Data() []byte
	Subject() string
	Metadata() (*jetstream.MsgMetadata, error)
}

// decodeEvent decodes a journal entry. Entries that are not room events are
// logged, counted and skipped.
func (m *StreamManager) decodeEvent(msg journalMsg) (model.RoomEvent, bool) {
	var event model.RoomEvent
	meta, metaErr := msg.Metadata()
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		metrics.EventDecodeFailures.Inc()
		fields := []zap.Field{zap.String("subject", msg.Subject()), zap.Error(err)}
		if metaErr == nil {
			fields = append(fields, zap.Uint64("stream_sequence", meta.Sequence.Stream))
		}
		m.logger.Warn("skipping undecodable journal entry", fields...)
		return model.RoomEvent{}, false
	}
	if metaErr == nil {
		event.Sequence = meta.Sequence.Stream
	}
	return event, true
}
