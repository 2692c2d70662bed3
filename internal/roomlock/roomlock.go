// Package roomlock serializes work per chat room.
package roomlock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a room lock could not be acquired within
// the configured wait.
var ErrLockTimeout = errors.New("room lock acquisition timed out")

// Locker runs fn while holding the exclusive lock for roomID. Work on
// different rooms proceeds in parallel. The lock is released on every exit
// path of fn, including panics. When the caller's context ends before the
// lock is acquired, the context error is returned.
type Locker interface {
	WithRoomLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) error
}
