package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

func seedTurn(t *testing.T, f *fixture, roomID string, at time.Time) {
	t.Helper()
	require.NoError(t, f.store.AppendTurn(context.Background(), &model.Turn{
		RoomID:    roomID,
		Title:     roomID + " title",
		User:      &model.Message{ID: roomID + "-u", Role: model.RoleUser, Content: "q", CreatedAt: at},
		Assistant: &model.Message{ID: roomID + "-a", Role: model.RoleAssistant, Content: "a", CreatedAt: at},
		At:        at,
	}))
}

func TestGetChatRoomsOrdering(t *testing.T) {
	f := newFixture(t, replyWith("ok"))
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seedTurn(t, f, "r2", at.Add(2*time.Minute))
	seedTurn(t, f, "r3", at.Add(2*time.Minute))
	seedTurn(t, f, "r1", at.Add(time.Minute))

	rooms, err := f.svc.GetChatRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, "r2", rooms[0].RoomID)
	assert.Equal(t, "r3", rooms[1].RoomID)
	assert.Equal(t, "r1", rooms[2].RoomID)
	assert.Equal(t, "r2 title", rooms[0].Title)

	again, err := f.svc.GetChatRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rooms, again, "listing has no side effects")
}

func TestGetChatRoomsEmpty(t *testing.T) {
	f := newFixture(t, replyWith("ok"))
	rooms, err := f.svc.GetChatRooms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestChatMovesRoomToFront(t *testing.T) {
	f := newFixture(t, replyWith("ok"))
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "older", "one")
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, "newer", "two")
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, "older", "three")
	require.NoError(t, err)

	rooms, err := f.svc.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "older", rooms[0].ID)
	assert.Equal(t, 4, rooms[0].MessageCount)
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, replyWith("ok"))
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, &model.CreateRoomRequest{RoomID: "team", Title: "  Team   sync "})
	require.NoError(t, err)
	assert.Equal(t, "team", room.ID)
	assert.Equal(t, "Team sync", room.Title)
	assert.Equal(t, room.CreatedAt, room.LastActivity)

	_, err = f.svc.CreateRoom(ctx, &model.CreateRoomRequest{RoomID: "team"})
	assert.ErrorIs(t, err, ErrRoomExists)

	_, err = f.svc.CreateRoom(ctx, &model.CreateRoomRequest{RoomID: "no/slashes"})
	assert.ErrorIs(t, err, ErrInvalidRoomID)

	generated, err := f.svc.CreateRoom(ctx, &model.CreateRoomRequest{})
	require.NoError(t, err)
	assert.True(t, model.ValidRoomID(generated.ID))
	assert.Equal(t, DefaultRoomTitle, generated.Title)

	assert.Equal(t, []model.EventType{model.EventTypeRoomCreated, model.EventTypeRoomCreated}, f.events.types())
}

func TestGetMessages(t *testing.T) {
	f := newFixture(t, replyWith("hi there"))
	ctx := context.Background()

	_, err := f.svc.GetMessages(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = f.svc.GetMessages(ctx, "bad id")
	assert.ErrorIs(t, err, ErrInvalidRoomID)

	_, err = f.svc.CreateRoom(ctx, &model.CreateRoomRequest{RoomID: "empty"})
	require.NoError(t, err)
	resp, err := f.svc.GetMessages(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, resp.Messages)
	assert.Zero(t, resp.LastSequence)

	_, err = f.svc.Chat(ctx, "r1", "hello")
	require.NoError(t, err)
	resp, err = f.svc.GetMessages(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.RoomID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, uint64(2), resp.LastSequence)
	assert.Equal(t, "hi there", resp.Messages[1].Content)
}
