package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/capitalize-ai/chatrooms/internal/roomlock"
	"github.com/capitalize-ai/chatrooms/internal/store"
)

// Caller-facing error kinds. Every error returned by the service wraps
// exactly one of them.
var (
	ErrInvalidRoomID       = errors.New("invalid room id")
	ErrEmptyPrompt         = errors.New("prompt is empty")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomExists          = errors.New("room already exists")
	ErrRoomBusy            = errors.New("room is busy")
	ErrUpstreamRateLimited = errors.New("model backend rate limited the request")
	ErrUpstreamUnavailable = errors.New("model backend unavailable")
	ErrUpstreamRejected    = errors.New("model backend rejected the request")
	ErrStoreUnavailable    = errors.New("conversation store unavailable")
	ErrCanceled            = errors.New("request canceled")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidRoomID, "invalid_room_id"},
	{ErrEmptyPrompt, "empty_prompt"},
	{ErrRoomNotFound, "room_not_found"},
	{ErrRoomExists, "room_exists"},
	{ErrRoomBusy, "room_busy"},
	{ErrUpstreamRateLimited, "upstream_rate_limited"},
	{ErrUpstreamUnavailable, "upstream_unavailable"},
	{ErrUpstreamRejected, "upstream_rejected"},
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrCanceled, "canceled"},
}

// Code returns the stable code of the error kind wrapped by err, or
// "internal" for anything else.
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// errTurnTimeout is the cause attached to the deadline bounding a turn.
var errTurnTimeout = errors.New("turn deadline exceeded")

func canceled(err error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}

// interrupted maps a done turn context to a caller-facing error. When the
// turn's own deadline expired the failure is reported as kind; anything
// else was the caller going away.
func interrupted(ctx context.Context, kind error) error {
	if errors.Is(context.Cause(ctx), errTurnTimeout) {
		return fmt.Errorf("%w: %w", kind, errTurnTimeout)
	}
	return canceled(ctx.Err())
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isContextErr(err):
		return canceled(err)
	case errors.Is(err, store.ErrNotFound):
		return ErrRoomNotFound
	case errors.Is(err, store.ErrRoomExists):
		return ErrRoomExists
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

// mapTurnStoreErr is mapStoreErr for store calls made inside a turn.
func mapTurnStoreErr(ctx context.Context, err error) error {
	if isContextErr(err) && ctx.Err() != nil {
		return interrupted(ctx, ErrStoreUnavailable)
	}
	return mapStoreErr(err)
}

func mapLockErr(err error) error {
	switch {
	case errors.Is(err, roomlock.ErrLockTimeout):
		return ErrRoomBusy
	case isContextErr(err) && Code(err) == "internal":
		return canceled(err)
	case Code(err) == "internal":
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	default:
		return err
	}
}
