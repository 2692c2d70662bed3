// Package store provides durable storage of rooms and their messages.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

var (
	// ErrNotFound is returned when a room does not exist.
	ErrNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a room whose id is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrUnavailable wraps infrastructure failures.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the conversation store.
//
// AppendTurn commits the user and assistant messages of a turn atomically:
// it creates the room when it does not exist yet, assigns the next two
// sequence numbers to turn.User and turn.Assistant, and moves the room's last
// activity to turn.At. GetHistory returns an empty slice for unknown rooms.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*model.Room, error)
	CreateRoom(ctx context.Context, room *model.Room) error
	GetHistory(ctx context.Context, roomID string) ([]model.Message, error)
	AppendTurn(ctx context.Context, turn *model.Turn) error
	ListRooms(ctx context.Context) ([]model.Room, error)
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by driver.
func Open(driver, sqlitePath, boltPath string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		dsn, err := SQLiteDSNForFile(sqlitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn)
	case "bolt":
		return NewBoltStore(boltPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func validateTurn(turn *model.Turn) error {
	if turn == nil || turn.User == nil || turn.Assistant == nil {
		return errors.New("turn requires a user and an assistant message")
	}
	if turn.RoomID == "" {
		return errors.New("turn requires a room id")
	}
	return nil
}
