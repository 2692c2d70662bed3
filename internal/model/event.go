package model

import (
	"time"
)

// EventType represents the type of room event.
type EventType string

const (
	EventTypeRoomCreated   EventType = "room_created"
	EventTypeTurnCommitted EventType = "turn_committed"
	EventTypeTurnFailed    EventType = "turn_failed"
)

// RoomEvent is a journal entry describing something that happened to a room.
type RoomEvent struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"room_id"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}

// ListEventsResponse is the response for reading a room's event journal.
type ListEventsResponse struct {
	RoomID       string      `json:"room_id"`
	Events       []RoomEvent `json:"events"`
	LastSequence uint64      `json:"last_sequence"`
}
