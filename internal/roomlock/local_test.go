package roomlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSerializesSameRoom(t *testing.T) {
	m := NewManager(time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, m.Active())
}

func TestManagerRunsRoomsInParallel(t *testing.T) {
	m := NewManager(time.Second)
	const rooms = 4
	ready := make(chan struct{}, rooms)
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.WithRoomLock(context.Background(), fmt.Sprintf("room-%d", i), func(ctx context.Context) error {
				ready <- struct{}{}
				<-release
				return nil
			})
		}(i)
	}

	for i := 0; i < rooms; i++ {
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
			t.Fatal("rooms did not run concurrently")
		}
	}
	assert.Equal(t, rooms, m.Active())
	close(release)
	wg.Wait()
	assert.Zero(t, m.Active())
}

func TestManagerTimeout(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	called := false
	err := m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
	close(done)
}

func TestManagerCallerCancelWhileWaiting(t *testing.T) {
	m := NewManager(0)
	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.WithRoomLock(ctx, "room", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(done)
}

func TestManagerReleasesOnErrorAndPanic(t *testing.T) {
	m := NewManager(100 * time.Millisecond)
	boom := errors.New("boom")

	err := m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error { panic("bad") })
	})

	require.NoError(t, m.WithRoomLock(context.Background(), "room", func(ctx context.Context) error { return nil }))
	assert.Zero(t, m.Active())
}
