package store

import (
	"context"
	"sync"
	"time"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

type memoryRoom struct {
	room     model.Room
	messages []model.Message
}

// MemoryStore keeps rooms in process memory. It is meant for tests and
// single-process development.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*memoryRoom)}
}

func (s *MemoryStore) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	room := rec.room
	room.MessageCount = len(rec.messages)
	return &room, nil
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	s.rooms[room.ID] = &memoryRoom{room: *room}
	return nil
}

func (s *MemoryStore) GetHistory(ctx context.Context, roomID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return []model.Message{}, nil
	}
	return append([]model.Message{}, rec.messages...), nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, turn *model.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[turn.RoomID]
	if !ok {
		rec = &memoryRoom{room: model.Room{
			ID:        turn.RoomID,
			Title:     turn.Title,
			CreatedAt: turn.At,
		}}
		s.rooms[turn.RoomID] = rec
	}

	next := uint64(len(rec.messages)) + 1
	for _, msg := range []*model.Message{turn.User, turn.Assistant} {
		msg.RoomID = turn.RoomID
		msg.Sequence = next
		next++
		rec.messages = append(rec.messages, *msg)
	}
	rec.room.LastActivity = turn.At

	return nil
}

func (s *MemoryStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	s.mu.RLock()
	rooms := make([]model.Room, 0, len(s.rooms))
	for _, rec := range s.rooms {
		room := rec.room
		room.MessageCount = len(rec.messages)
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	model.SortRooms(rooms)
	return rooms, nil
}

func (s *MemoryStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	rec.room.LastActivity = at
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
