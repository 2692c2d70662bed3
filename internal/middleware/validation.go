package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

// MaxPromptBytes bounds the size of a single prompt.
const MaxPromptBytes = 100000

// ValidatePrompt checks size and encoding of a prompt. Emptiness is left to
// the chat service.
func ValidatePrompt(prompt string) error {
	if len(prompt) > MaxPromptBytes {
		return errors.New("prompt exceeds maximum length")
	}
	if !utf8.ValidString(prompt) {
		return errors.New("prompt must be valid UTF-8")
	}
	return nil
}

// ValidateRoomID validates a room ID.
func ValidateRoomID(id string) error {
	if !model.ValidRoomID(id) {
		return errors.New("room ID must be 1-128 letters, digits, '-' or '_'")
	}
	return nil
}

// ValidateTitle validates a room title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
