package contextwin

import (
	"fmt"
	"unicode/utf8"

	"github.com/weaviate/tiktoken-go"
)

// Meter measures text in budget units.
type Meter interface {
	// Measure returns the size of text.
	Measure(text string) int
	// Tail returns the longest suffix of text whose size is at most n.
	Tail(text string, n int) string
	// Unit names the budget unit.
	Unit() string
}

// CharMeter measures text in characters (runes).
type CharMeter struct{}

func (CharMeter) Measure(text string) int {
	return utf8.RuneCountInString(text)
}

func (CharMeter) Tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

func (CharMeter) Unit() string {
	return "chars"
}

// TokenMeter measures text in model tokens.
type TokenMeter struct {
	enc  *tiktoken.Tiktoken
	name string
}

// NewTokenMeter loads the named tiktoken encoding, e.g. cl100k_base.
func NewTokenMeter(encoding string) (*TokenMeter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %s: %w", encoding, err)
	}
	return &TokenMeter{enc: enc, name: encoding}, nil
}

func (m *TokenMeter) Measure(text string) int {
	return len(m.enc.Encode(text, nil, nil))
}

func (m *TokenMeter) Tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	tokens := m.enc.Encode(text, nil, nil)
	if len(tokens) <= n {
		return text
	}
	tail := trimBrokenPrefix(m.enc.Decode(tokens[len(tokens)-n:]))
	// Re-encoding a suffix can tokenize differently.
	for tail != "" && m.Measure(tail) > n {
		_, size := utf8.DecodeRuneInString(tail)
		tail = tail[size:]
	}
	return tail
}

// trimBrokenPrefix drops the bytes of a rune cut in half at the start of s.
func trimBrokenPrefix(s string) string {
	for s != "" {
		r, size := utf8.DecodeRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[1:]
	}
	return s
}

func (m *TokenMeter) Unit() string {
	return "tokens"
}

// NewMeter returns the meter for a configured unit.
func NewMeter(unit, encoding string) (Meter, error) {
	switch unit {
	case "chars", "":
		return CharMeter{}, nil
	case "tokens":
		return NewTokenMeter(encoding)
	default:
		return nil, fmt.Errorf("unknown budget unit %q", unit)
	}
}
