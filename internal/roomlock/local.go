package roomlock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

type roomEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager is an in-process Locker. A room's semaphore exists only while
// somebody holds or waits for it.
type Manager struct {
	mu      sync.Mutex
	rooms   map[string]*roomEntry
	timeout time.Duration
}

// NewManager creates a Manager. A zero timeout waits until the caller's
// context ends.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		rooms:   make(map[string]*roomEntry),
		timeout: timeout,
	}
}

func (m *Manager) WithRoomLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	e := m.ref(roomID)
	defer m.unref(roomID, e)

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, m.timeout)
	}
	err := e.sem.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		if err := ctx.Err(); err != nil {
			metrics.RecordLockWait("canceled", time.Since(start).Seconds())
			return err
		}
		metrics.RecordLockWait("timeout", time.Since(start).Seconds())
		return ErrLockTimeout
	}
	metrics.RecordLockWait("acquired", time.Since(start).Seconds())
	defer e.sem.Release(1)

	return fn(ctx)
}

// Active returns the number of rooms with a holder or waiter.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *Manager) ref(roomID string) *roomEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rooms[roomID]
	if !ok {
		e = &roomEntry{sem: semaphore.NewWeighted(1)}
		m.rooms[roomID] = e
		metrics.RoomLocksActive.Set(float64(len(m.rooms)))
	}
	e.refs++
	return e
}

func (m *Manager) unref(roomID string, e *roomEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.rooms, roomID)
		metrics.RoomLocksActive.Set(float64(len(m.rooms)))
	}
}

var _ Locker = (*Manager)(nil)
