// Package sessionparser turns the summariser's free-form output into a
// typed record of threads, lessons, and facts (C4).
package sessionparser

import (
	"encoding/json"
	"strings"
)

// ThreadStatus is the lifecycle state of a named activity strand.
type ThreadStatus string

const (
	ThreadCompleted  ThreadStatus = "completed"
	ThreadBlocked    ThreadStatus = "blocked"
	ThreadInProgress ThreadStatus = "in-progress"
)

// Thread is a named multi-turn strand of activity identified during
// summarisation.
type Thread struct {
	Name    string       `json:"name"`
	Summary string       `json:"summary"`
	Status  ThreadStatus `json:"status"`
}

// Record is the tagged sum produced by the parser: threads/lessons/facts.
// Empty sub-lists are valid and are not an error.
type Record struct {
	Threads []Thread
	Lessons []string
	Facts   []string
}

// Empty reports whether the record carries no usable content, triggering
// the ingest raw-fallback path.
func (r Record) Empty() bool {
	return len(r.Threads) == 0 && len(r.Lessons) == 0 && len(r.Facts) == 0
}

// rawRecord is the schema-tolerant wire shape the summariser is expected to
// emit: a JSON object with threads/lessons/facts keys. Unknown fields are
// dropped automatically by encoding/json.
type rawRecord struct {
	Threads []struct {
		Name    string `json:"name"`
		Summary string `json:"summary"`
		Status  string `json:"status"`
	} `json:"threads"`
	Lessons []string `json:"lessons"`
	Facts   []string `json:"facts"`
}

// Parse extracts a Record from the summariser's free-form output. It
// decodes the first balanced-brace JSON object found in the output, so a
// bare JSON reply and one embedded in surrounding prose are both accepted.
// Unknown fields are dropped; any element with an empty string in a
// required position is discarded rather than reported as an error.
func Parse(output string) Record {
	raw := extractJSONObject(output)
	if raw == "" {
		return Record{}
	}
	var rr rawRecord
	if err := json.Unmarshal([]byte(raw), &rr); err != nil {
		return Record{}
	}

	var rec Record
	for _, t := range rr.Threads {
		name := strings.TrimSpace(t.Name)
		summary := strings.TrimSpace(t.Summary)
		status := normalizeStatus(t.Status)
		if name == "" || summary == "" || status == "" {
			continue
		}
		rec.Threads = append(rec.Threads, Thread{Name: name, Summary: summary, Status: status})
	}
	for _, l := range rr.Lessons {
		if l = strings.TrimSpace(l); l != "" {
			rec.Lessons = append(rec.Lessons, l)
		}
	}
	for _, f := range rr.Facts {
		if f = strings.TrimSpace(f); f != "" {
			rec.Facts = append(rec.Facts, f)
		}
	}
	return rec
}

func normalizeStatus(s string) ThreadStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "done", "complete":
		return ThreadCompleted
	case "blocked", "stuck":
		return ThreadBlocked
	case "in-progress", "in_progress", "ongoing", "active":
		return ThreadInProgress
	default:
		return ""
	}
}

// extractJSONObject returns the first balanced-brace JSON object found in
// s, tolerating surrounding prose the model may add despite instructions
// to emit only JSON.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
