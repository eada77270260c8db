package sessionparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFullRecord(t *testing.T) {
	out := `Here is the summary:
{
  "threads": [
    {"name": "auth-refactor", "summary": "finished the migration", "status": "completed"},
    {"name": "flaky-test", "summary": "still investigating", "status": "blocked"}
  ],
  "lessons": ["always check the mock boundary"],
  "facts": ["the service runs on port 8080"]
}
trailing prose`
	rec := Parse(out)
	require.Len(t, rec.Threads, 2)
	require.Equal(t, ThreadCompleted, rec.Threads[0].Status)
	require.Equal(t, ThreadBlocked, rec.Threads[1].Status)
	require.Len(t, rec.Lessons, 1)
	require.Len(t, rec.Facts, 1)
	require.False(t, rec.Empty())
}

func TestParseDropsElementsWithEmptyFields(t *testing.T) {
	out := `{"threads":[{"name":"","summary":"x","status":"completed"}],"lessons":["  "],"facts":["ok"]}`
	rec := Parse(out)
	require.Empty(t, rec.Threads)
	require.Empty(t, rec.Lessons)
	require.Len(t, rec.Facts, 1)
}

func TestParseUnknownFieldsDropped(t *testing.T) {
	out := `{"threads":[],"lessons":[],"facts":[],"confidence_score":0.9}`
	rec := Parse(out)
	require.True(t, rec.Empty())
}

func TestParseNoJSONYieldsEmptyRecord(t *testing.T) {
	rec := Parse("no structured content here")
	require.True(t, rec.Empty())
}
