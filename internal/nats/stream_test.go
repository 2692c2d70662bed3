package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

type fakeMsg struct {
	data []byte
	seq  uint64
}

func (m fakeMsg) Data() []byte    { return m.data }
func (m fakeMsg) Subject() string { return "room.r1.event.turn_committed" }
func (m fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{Sequence: jetstream.SequencePair{Stream: m.seq}}, nil
}

func TestDecodeEvent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m := &StreamManager{logger: &logger.Logger{Logger: zap.New(core)}}

	event, ok := m.decodeEvent(fakeMsg{data: []byte(`{"type":"turn_committed","room_id":"r1"}`), seq: 7})
	require.True(t, ok)
	assert.Equal(t, uint64(7), event.Sequence)
	assert.Equal(t, "r1", event.RoomID)
	assert.Zero(t, logs.Len())

	before := testutil.ToFloat64(metrics.EventDecodeFailures)
	_, ok = m.decodeEvent(fakeMsg{data: []byte("not json"), seq: 8})
	assert.False(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventDecodeFailures))

	entries := logs.FilterMessage("skipping undecodable journal entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(8), entries[0].ContextMap()["stream_sequence"])
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "room.r1.event.turn_committed", EventSubject("r1", model.EventTypeTurnCommitted))
	assert.Equal(t, "room.r1.event.>", RoomFilter("r1"))
}

func TestJournalRoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: url}, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Ping(ctx))

	streams := NewStreamManager(client)
	require.NoError(t, streams.EnsureStream(ctx))
	require.NoError(t, streams.EnsureStream(ctx))

	roomID := "test-" + uuid.NewString()
	for _, typ := range []model.EventType{model.EventTypeRoomCreated, model.EventTypeTurnCommitted} {
		_, err := streams.PublishEvent(ctx, &model.RoomEvent{
			ID: uuid.NewString(), RoomID: roomID, Type: typ, CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	events, err := streams.ReadEvents(ctx, roomID, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventTypeRoomCreated, events[0].Type)
	assert.Equal(t, model.EventTypeTurnCommitted, events[1].Type)
	assert.Less(t, events[0].Sequence, events[1].Sequence)

	later, err := streams.ReadEvents(ctx, roomID, events[0].Sequence, 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, model.EventTypeTurnCommitted, later[0].Type)
}
