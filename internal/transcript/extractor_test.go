package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractEmptyInputYieldsEmptyOutput(t *testing.T) {
	require.Equal(t, "", Extract(nil, 0))
	require.Equal(t, "", Extract([]byte("   \n  "), 0))
}

func TestExtractPlainDropsNoiseLines(t *testing.T) {
	raw := "Tokens: 123\nHello there\n```\ncode\n```\nGoodbye\n"
	out := Extract([]byte(raw), 0)
	require.Contains(t, out, "Hello there")
	require.Contains(t, out, "Goodbye")
	require.NotContains(t, out, "Tokens:")
}

func TestExtractStructuredSkipsSystemReminders(t *testing.T) {
	raw := `{"type":"human","message":{"content":[{"type":"text","text":"<system-reminder>ignore me</system-reminder>"}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"real reply"}]}}
{"type":"human","message":{"content":[{"type":"text","text":"real question"}]}}
`
	out := Extract([]byte(raw), 0)
	require.Contains(t, out, "real reply")
	require.Contains(t, out, "real question")
	require.NotContains(t, out, "system-reminder")
}

func TestProportionalSampleRespectsBudget(t *testing.T) {
	text := strings.Repeat("a", 50000)
	out := ProportionalSample(text, 1000)
	require.LessOrEqual(t, len([]rune(out)), 1000+200)
	require.True(t, strings.HasPrefix(out, strings.Repeat("a", 10)))
	require.True(t, strings.HasSuffix(out, strings.Repeat("a", 10)))
}

func TestProportionalSampleNoOpUnderLimit(t *testing.T) {
	require.Equal(t, "short", ProportionalSample("short", 1000))
}
