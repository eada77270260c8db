// Package affect tracks the two-dimensional mood (valence, arousal) updated
// from session events during sleep (C8).
package affect

import "github.com/alanwatts07/drift-agents/internal/storage"

// EventKind identifies the source of a mood-affecting session event.
type EventKind string

const (
	EventGoalProgress  EventKind = "goal_progress"
	EventSearchFailure EventKind = "search_failure"
	EventMemoryStored  EventKind = "memory_stored"
)

// Event is one mood-affecting occurrence submitted during sleep.
type Event struct {
	Kind    EventKind
	Payload string
}

const (
	smoothing   = 0.2
	smallEffect = 0.15
)

// Apply returns m updated via exponential smoothing toward a target
// shifted by the event's effect, clamping both dimensions to their
// documented ranges ([-1,1] valence, [0,1] arousal).
func Apply(m storage.Mood, events []Event) storage.Mood {
	for _, e := range events {
		dv, da := 0.0, 0.0
		switch e.Kind {
		case EventGoalProgress:
			dv, da = smallEffect, smallEffect
		case EventSearchFailure:
			dv, da = -smallEffect, smallEffect
		case EventMemoryStored:
			dv, da = smallEffect, 0
		}
		targetV := clamp(m.Valence+dv, -1, 1)
		targetA := clamp(m.Arousal+da, 0, 1)
		m.Valence = clamp(m.Valence+smoothing*(targetV-m.Valence), -1, 1)
		m.Arousal = clamp(m.Arousal+smoothing*(targetA-m.Arousal), 0, 1)
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PrefersPositive reports whether a memory's emotional_weight sign aligns
// with the current mood's valence. This is the optional retrieval bias
// spec §4.8 permits; it never alters correctness of any invariant.
func PrefersPositive(mood storage.Mood, emotionalWeight float64) bool {
	if mood.Valence == 0 {
		return false
	}
	return (mood.Valence > 0) == (emotionalWeight >= 0.5)
}
