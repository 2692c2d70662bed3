package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

var (
	bucketRooms    = []byte("rooms")
	bucketMessages = []byte("messages")
)

// BoltStore persists rooms and messages in a BoltDB file. Rooms are JSON
// values keyed by id; each room has a nested message bucket keyed by the
// big-endian sequence number.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt store: create dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRooms); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMessages)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt store: init buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func loadRoom(tx *bolt.Tx, roomID string) (*model.Room, error) {
	raw := tx.Bucket(bucketRooms).Get([]byte(roomID))
	if raw == nil {
		return nil, nil
	}
	var room model.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	if msgs := tx.Bucket(bucketMessages).Bucket([]byte(roomID)); msgs != nil {
		room.MessageCount = int(msgs.Sequence())
	}
	return &room, nil
}

func putRoom(tx *bolt.Tx, room *model.Room) error {
	stored := *room
	stored.MessageCount = 0
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketRooms).Put([]byte(room.ID), raw)
}

func (s *BoltStore) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var room *model.Room
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		room, err = loadRoom(tx, roomID)
		return err
	})
	if err != nil {
		return nil, unavailable("get room", err)
	}
	if room == nil {
		return nil, ErrNotFound
	}
	return room, nil
}

func (s *BoltStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketRooms).Get([]byte(room.ID)) != nil {
			return ErrRoomExists
		}
		return putRoom(tx, room)
	})
	if errors.Is(err, ErrRoomExists) {
		return err
	}
	if err != nil {
		return unavailable("create room", err)
	}
	return nil
}

func (s *BoltStore) GetHistory(ctx context.Context, roomID string) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs := []model.Message{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var msg model.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("decode message %d: %w", binary.BigEndian.Uint64(k), err)
			}
			msgs = append(msgs, msg)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("get history", err)
	}
	return msgs, nil
}

func (s *BoltStore) AppendTurn(ctx context.Context, turn *model.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	user, assistant := *turn.User, *turn.Assistant
	err := s.db.Update(func(tx *bolt.Tx) error {
		room, err := loadRoom(tx, turn.RoomID)
		if err != nil {
			return err
		}
		if room == nil {
			room = &model.Room{ID: turn.RoomID, Title: turn.Title, CreatedAt: turn.At}
		}
		msgs, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(turn.RoomID))
		if err != nil {
			return err
		}
		for _, msg := range []*model.Message{&user, &assistant} {
			seq, err := msgs.NextSequence()
			if err != nil {
				return err
			}
			msg.RoomID = turn.RoomID
			msg.Sequence = seq
			raw, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := msgs.Put(seqKey(seq), raw); err != nil {
				return err
			}
		}
		room.LastActivity = turn.At
		return putRoom(tx, room)
	})
	if err != nil {
		return unavailable("append turn", err)
	}

	*turn.User, *turn.Assistant = user, assistant
	return nil
}

func (s *BoltStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rooms := []model.Room{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRooms).ForEach(func(k, _ []byte) error {
			room, err := loadRoom(tx, string(k))
			if err != nil {
				return err
			}
			rooms = append(rooms, *room)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list rooms", err)
	}
	model.SortRooms(rooms)
	return rooms, nil
}

func (s *BoltStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		room, err := loadRoom(tx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return ErrNotFound
		}
		room.LastActivity = at
		return putRoom(tx, room)
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return unavailable("touch room", err)
	}
	return nil
}

func (s *BoltStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
