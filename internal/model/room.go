// Package model defines data structures for the chat room service.
package model

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Room represents a persistent conversation.
type Room struct {
	ID           string    `json:"room_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count,omitempty"`
}

// RoomSummary is the caller-facing view of a room.
type RoomSummary struct {
	RoomID       string    `json:"room_id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"last_activity"`
}

// Summary returns the summary view of the room.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		RoomID:       r.ID,
		Title:        r.Title,
		LastActivity: r.LastActivity,
	}
}

// SortRooms orders rooms by last activity, most recent first. Equal
// timestamps are ordered by room id ascending.
func SortRooms(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if !rooms[i].LastActivity.Equal(rooms[j].LastActivity) {
			return rooms[i].LastActivity.After(rooms[j].LastActivity)
		}
		return rooms[i].ID < rooms[j].ID
	})
}

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidRoomID reports whether id is usable as a room id.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// MaxTitleRunes bounds derived room titles.
const MaxTitleRunes = 48

// TitleFromPrompt derives a room title from the first prompt sent to it.
func TitleFromPrompt(prompt string) string {
	title := strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(title) <= MaxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:MaxTitleRunes])) + "…"
}

// CreateRoomRequest is the request to create a room explicitly.
type CreateRoomRequest struct {
	RoomID string `json:"room_id,omitempty"`
	Title  string `json:"title"`
}

// ListRoomsResponse is the response for listing rooms.
type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
	Total int           `json:"total"`
}
