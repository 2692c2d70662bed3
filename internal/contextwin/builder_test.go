package contextwin

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatrooms/internal/model"
)

func history(contents ...string) []model.Message {
	msgs := make([]model.Message, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs[i] = model.Message{Role: role, Content: c, Sequence: uint64(i + 1)}
	}
	return msgs
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Budget: 0})
	require.Error(t, err)

	_, err = New(Config{Budget: 5, SystemPrompt: "too long"})
	require.Error(t, err)

	b, err := New(Config{Budget: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, b.Budget())
}

func TestBuildEmptyHistory(t *testing.T) {
	b, err := New(Config{Budget: 100, SystemPrompt: "sys"})
	require.NoError(t, err)

	w := b.Build(nil, "hello")
	require.Len(t, w.Messages, 2)
	assert.Equal(t, "system", w.Messages[0].Role)
	assert.Equal(t, "user", w.Messages[1].Role)
	assert.Equal(t, "hello", w.Messages[1].Content)
	assert.Equal(t, 8, w.Size)
	assert.False(t, w.Truncated)
	assert.Zero(t, w.HistoryCount)
}

func TestBuildKeepsNewestSuffixWithinBudget(t *testing.T) {
	b, err := New(Config{Budget: 20})
	require.NoError(t, err)

	hist := history("aaaaaaaaaa", "bbbbb", "ccccc", "ddd")
	w := b.Build(hist, "eeee")

	// 4 (prompt) + 3 + 5 + 5 = 17; adding 10 more would exceed 20.
	require.Len(t, w.Messages, 4)
	assert.Equal(t, "bbbbb", w.Messages[0].Content)
	assert.Equal(t, "ccccc", w.Messages[1].Content)
	assert.Equal(t, "ddd", w.Messages[2].Content)
	assert.Equal(t, "eeee", w.Messages[3].Content)
	assert.Equal(t, 3, w.HistoryCount)
	assert.Equal(t, 17, w.Size)
	assert.LessOrEqual(t, w.Size, b.Budget())
}

func TestBuildStopsAtFirstMessageThatDoesNotFit(t *testing.T) {
	b, err := New(Config{Budget: 12})
	require.NoError(t, err)

	// The oversized middle message blocks older ones even though "a" would fit.
	w := b.Build(history("a", "xxxxxxxxxx", "bb"), "cc")
	require.Len(t, w.Messages, 2)
	assert.Equal(t, "bb", w.Messages[0].Content)
	assert.Equal(t, 1, w.HistoryCount)
}

func TestBuildTruncatesOversizedPromptTail(t *testing.T) {
	b, err := New(Config{Budget: 10, SystemPrompt: "sys"})
	require.NoError(t, err)

	w := b.Build(history("old"), "0123456789abcdef")
	assert.True(t, w.Truncated)
	require.Len(t, w.Messages, 2)
	assert.Equal(t, "9abcdef", w.Messages[1].Content)
	assert.Equal(t, 10, w.Size)
	assert.Zero(t, w.HistoryCount)
}

func TestBuildIsDeterministic(t *testing.T) {
	b, err := New(Config{Budget: 64, SystemPrompt: "be kind"})
	require.NoError(t, err)

	hist := history("hello", "hi there", "how are you?", "fine", strings.Repeat("z", 30))
	first, err := json.Marshal(b.Build(hist, "next question"))
	require.NoError(t, err)
	second, err := json.Marshal(b.Build(hist, "next question"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildWithinBudgetProperty(t *testing.T) {
	b, err := New(Config{Budget: 50, SystemPrompt: "s"})
	require.NoError(t, err)

	var contents []string
	for i := 0; i < 40; i++ {
		contents = append(contents, strings.Repeat("m", i%7+1))
	}
	hist := history(contents...)
	for _, prompt := range []string{"p", strings.Repeat("q", 20), strings.Repeat("r", 120)} {
		w := b.Build(hist, prompt)
		assert.LessOrEqual(t, w.Size, 50)
		last := w.Messages[len(w.Messages)-1]
		assert.Equal(t, "user", last.Role)
		if w.HistoryCount > 0 {
			// The newest stored message is always the one right before the prompt.
			assert.Equal(t, hist[len(hist)-1].Content, w.Messages[len(w.Messages)-2].Content)
		}
	}
}

func TestCharMeterCountsRunes(t *testing.T) {
	m := CharMeter{}
	assert.Equal(t, 5, m.Measure("héllo"))
	assert.Equal(t, "llo", m.Tail("héllo", 3))
	assert.Equal(t, "héllo", m.Tail("héllo", 10))
	assert.Equal(t, "", m.Tail("héllo", 0))
}

func TestNewMeter(t *testing.T) {
	m, err := NewMeter("chars", "")
	require.NoError(t, err)
	assert.Equal(t, "chars", m.Unit())

	_, err = NewMeter("pages", "")
	require.Error(t, err)
}

func TestTrimBrokenPrefix(t *testing.T) {
	full := "é漢字"
	assert.Equal(t, "漢字", trimBrokenPrefix(full[1:]))
	assert.Equal(t, "字", trimBrokenPrefix(full[4:]))
	assert.Equal(t, full, trimBrokenPrefix(full))
	assert.Equal(t, "\uFFFDok", trimBrokenPrefix("\uFFFDok"))
	assert.Equal(t, "", trimBrokenPrefix("\xff\xfe"))
}

func TestTokenMeterTailIsValidUTF8(t *testing.T) {
	m, err := NewTokenMeter("cl100k_base")
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}

	text := strings.Repeat("多字节文本🙂é ", 40)
	for n := 1; n <= 30; n++ {
		tail := m.Tail(text, n)
		assert.True(t, utf8.ValidString(tail), "n=%d", n)
		assert.LessOrEqual(t, m.Measure(tail), n, "n=%d", n)
		assert.True(t, strings.HasSuffix(text, tail), "n=%d", n)
	}
}

func TestTokenMeterBudget(t *testing.T) {
	m, err := NewTokenMeter("cl100k_base")
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}

	b, err := New(Config{Budget: 8, Meter: m})
	require.NoError(t, err)

	w := b.Build(nil, strings.Repeat("token budget ", 20))
	assert.True(t, w.Truncated)
	assert.LessOrEqual(t, w.Size, 8)
	assert.LessOrEqual(t, m.Measure(w.Messages[0].Content), 8)
}
