package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

// SQLiteStore persists rooms and messages in a SQLite database. Each turn is
// written by a single immediate transaction.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteDSNForFile builds a DSN with WAL journaling, a busy timeout and
// immediate write transactions. The parent directory is created if needed.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite store: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("sqlite store: create dir: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path), nil
}

// NewSQLiteStore opens the database and applies the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			created_at_ns INTEGER NOT NULL,
			last_activity_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS rooms_by_activity ON rooms(last_activity_ns DESC, id ASC);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			model TEXT,
			tokens_in INTEGER,
			tokens_out INTEGER,
			latency_ms INTEGER,
			created_at_ns INTEGER NOT NULL,
			UNIQUE(room_id, seq)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite store: migrate: %w", err)
		}
	}
	return nil
}

const roomColumns = `r.id, r.title, r.created_at_ns, r.last_activity_ns,
	(SELECT COUNT(*) FROM messages m WHERE m.room_id = r.id)`

func scanRoom(row interface{ Scan(...any) error }) (model.Room, error) {
	var (
		room                model.Room
		createdNs, activeNs int64
	)
	if err := row.Scan(&room.ID, &room.Title, &createdNs, &activeNs, &room.MessageCount); err != nil {
		return model.Room{}, err
	}
	room.CreatedAt = time.Unix(0, createdNs).UTC()
	room.LastActivity = time.Unix(0, activeNs).UTC()
	return room, nil
}

func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE r.id = ?`, roomID)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get room", err)
	}
	return &room, nil
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, room *model.Room) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, title, created_at_ns, last_activity_ns) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		room.ID, room.Title, room.CreatedAt.UnixNano(), room.LastActivity.UnixNano())
	if err != nil {
		return unavailable("create room", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("create room", err)
	}
	if n == 0 {
		return ErrRoomExists
	}
	return nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, roomID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, seq, role, content, model, tokens_in, tokens_out, latency_ms, created_at_ns
		FROM messages WHERE room_id = ? ORDER BY seq ASC`, roomID)
	if err != nil {
		return nil, unavailable("get history", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			msg                 model.Message
			role                string
			modelName           sql.NullString
			tokensIn, tokensOut sql.NullInt64
			latency             sql.NullInt64
			createdNs           int64
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Sequence, &role, &msg.Content,
			&modelName, &tokensIn, &tokensOut, &latency, &createdNs); err != nil {
			return nil, unavailable("scan message", err)
		}
		msg.Role = model.Role(role)
		msg.CreatedAt = time.Unix(0, createdNs).UTC()
		if modelName.Valid {
			msg.Model = &modelName.String
		}
		if tokensIn.Valid {
			v := int(tokensIn.Int64)
			msg.TokensIn = &v
		}
		if tokensOut.Valid {
			v := int(tokensOut.Int64)
			msg.TokensOut = &v
		}
		if latency.Valid {
			msg.LatencyMs = &latency.Int64
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get history", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *model.Turn) (err error) {
	if err := validateTurn(turn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin turn", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	at := turn.At.UnixNano()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (id, title, created_at_ns, last_activity_ns) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		turn.RoomID, turn.Title, at, at); err != nil {
		return unavailable("ensure room", err)
	}

	var last uint64
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE room_id = ?`, turn.RoomID).Scan(&last); err != nil {
		return unavailable("next sequence", err)
	}

	for _, msg := range []*model.Message{turn.User, turn.Assistant} {
		last++
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, room_id, seq, role, content, model, tokens_in, tokens_out, latency_ms, created_at_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, turn.RoomID, last, string(msg.Role), msg.Content,
			msg.Model, msg.TokensIn, msg.TokensOut, msg.LatencyMs, msg.CreatedAt.UnixNano()); err != nil {
			return unavailable("insert message", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE rooms SET last_activity_ns = ? WHERE id = ?`, at, turn.RoomID); err != nil {
		return unavailable("touch room", err)
	}

	if err = tx.Commit(); err != nil {
		return unavailable("commit turn", err)
	}

	turn.User.RoomID, turn.Assistant.RoomID = turn.RoomID, turn.RoomID
	turn.User.Sequence, turn.Assistant.Sequence = last-1, last
	return nil
}

func (s *SQLiteStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms r ORDER BY r.last_activity_ns DESC, r.id ASC`)
	if err != nil {
		return nil, unavailable("list rooms", err)
	}
	defer rows.Close()

	rooms := []model.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, unavailable("scan room", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list rooms", err)
	}
	return rooms, nil
}

func (s *SQLiteStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET last_activity_ns = ? WHERE id = ?`, at.UnixNano(), roomID)
	if err != nil {
		return unavailable("touch room", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("touch room", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
