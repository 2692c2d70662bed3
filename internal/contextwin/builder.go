// Package contextwin builds the bounded context window sent to the model
// backend for one completion.
package contextwin

import (
	"errors"
	"fmt"

	"github.com/capitalize-ai/chatrooms/internal/llm"
	"github.com/capitalize-ai/chatrooms/internal/model"
)

// Config configures a Builder.
type Config struct {
	// Budget is the maximum window size in Meter units.
	Budget int
	// SystemPrompt is prepended to every window when non-empty.
	SystemPrompt string
	// Meter defaults to CharMeter.
	Meter Meter
}

// Window is the transient message list for one completion.
type Window struct {
	Messages []llm.ChatMessage
	// Size is the measured size of all message contents.
	Size int
	// HistoryCount is how many stored messages made it into the window.
	HistoryCount int
	// Truncated reports that the prompt itself was cut to fit.
	Truncated bool
}

// Builder assembles windows. It is safe for concurrent use.
type Builder struct {
	budget     int
	system     string
	systemSize int
	meter      Meter
}

// New validates cfg and returns a Builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Budget <= 0 {
		return nil, errors.New("context budget must be positive")
	}
	meter := cfg.Meter
	if meter == nil {
		meter = CharMeter{}
	}

	systemSize := meter.Measure(cfg.SystemPrompt)
	if systemSize >= cfg.Budget {
		return nil, fmt.Errorf("system prompt (%d %s) leaves no room in budget %d", systemSize, meter.Unit(), cfg.Budget)
	}

	return &Builder{
		budget:     cfg.Budget,
		system:     cfg.SystemPrompt,
		systemSize: systemSize,
		meter:      meter,
	}, nil
}

// Budget returns the configured budget.
func (b *Builder) Budget() int {
	return b.budget
}

// Build selects the newest contiguous run of history that fits alongside the
// system prompt and the new prompt. The prompt is always included; when it
// cannot fit on its own only its tail is kept and Truncated is set.
func (b *Builder) Build(history []model.Message, prompt string) Window {
	remaining := b.budget - b.systemSize

	promptSize := b.meter.Measure(prompt)
	truncated := false
	if promptSize > remaining {
		prompt, promptSize = b.tail(prompt, remaining)
		truncated = true
	}
	remaining -= promptSize

	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		size := b.meter.Measure(history[i].Content)
		if size > remaining {
			break
		}
		remaining -= size
		start = i
	}
	kept := history[start:]

	messages := make([]llm.ChatMessage, 0, len(kept)+2)
	if b.system != "" {
		messages = append(messages, llm.ChatMessage{Role: string(model.RoleSystem), Content: b.system})
	}
	for _, msg := range kept {
		messages = append(messages, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: string(model.RoleUser), Content: prompt})

	return Window{
		Messages:     messages,
		Size:         b.budget - remaining,
		HistoryCount: len(kept),
		Truncated:    truncated,
	}
}

// tail cuts text to fit in limit units. Token meters can re-encode a
// decoded suffix into more tokens than requested, so shrink until it fits.
func (b *Builder) tail(text string, limit int) (string, int) {
	for n := limit; n > 0; n-- {
		cut := b.meter.Tail(text, n)
		if size := b.meter.Measure(cut); size <= limit {
			return cut, size
		}
	}
	return "", 0
}
