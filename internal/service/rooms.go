package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

// DefaultRoomTitle is used for explicitly created rooms without a title.
const DefaultRoomTitle = "New chat"

// ListRooms returns every room, most recently active first.
func (s *ChatService) ListRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return rooms, nil
}

// GetChatRooms returns the summary of every room, most recently active first.
func (s *ChatService) GetChatRooms(ctx context.Context) ([]model.RoomSummary, error) {
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.RoomSummary, len(rooms))
	for i := range rooms {
		summaries[i] = rooms[i].Summary()
	}
	return summaries, nil
}

// CreateRoom creates an empty room. A room id is generated when the request
// does not carry one.
func (s *ChatService) CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error) {
	id := strings.TrimSpace(req.RoomID)
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	if !model.ValidRoomID(id) {
		return nil, ErrInvalidRoomID
	}

	title := model.TitleFromPrompt(req.Title)
	if title == "" {
		title = DefaultRoomTitle
	}

	now := s.now()
	room := &model.Room{
		ID:           id,
		Title:        title,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, mapStoreErr(err)
	}

	metrics.RoomsCreatedTotal.WithLabelValues("explicit").Inc()
	s.logger.WithRoom(id).Info("room created", zap.String("title", title))
	s.publish(ctx, id, model.EventTypeRoomCreated, "", map[string]any{"title": title})

	return room, nil
}

// GetMessages returns the committed history of a room.
func (s *ChatService) GetMessages(ctx context.Context, roomID string) (*model.ListMessagesResponse, error) {
	if !model.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, mapStoreErr(err)
	}

	msgs, err := s.store.GetHistory(ctx, roomID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	resp := &model.ListMessagesResponse{RoomID: roomID, Messages: msgs}
	if n := len(msgs); n > 0 {
		resp.LastSequence = msgs[n-1].Sequence
	}
	return resp, nil
}
