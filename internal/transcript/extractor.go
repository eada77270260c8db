// Package transcript reduces a raw session log to salient text under a
// budget (C3). It generalises the teacher's agent/memory.manager.go
// truncateForSummary head/tail split into the spec's three-part
// proportional sample (first 40% / middle 20% / last 40%).
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultMaxChars is the spec's default output budget.
const DefaultMaxChars = 10000

var noisePrefixes = []string{
	"```",
	"[tool_use]",
	"[tool_result]",
	"Tokens:",
	"---",
	"===",
	"<system-reminder>",
}

type structuredLine struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// Extract reduces raw transcript bytes to salient text, applying the
// proportional sample if the result exceeds maxChars. maxChars <= 0 uses
// DefaultMaxChars.
func Extract(raw []byte, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	var text string
	if trimmed[0] == '{' {
		text = extractStructured(trimmed)
	} else {
		text = extractPlain(trimmed)
	}
	text = strings.TrimSpace(text)
	return ProportionalSample(text, maxChars)
}

func extractStructured(raw []byte) string {
	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var l structuredLine
		if err := json.Unmarshal(line, &l); err != nil {
			continue
		}
		if l.Type != "assistant" && l.Type != "human" {
			continue
		}
		for _, block := range l.Message.Content {
			if block.Type != "text" {
				continue
			}
			if l.Type == "human" && isSystemReminder(block.Text) {
				continue
			}
			sb.WriteString(strings.TrimSpace(block.Text))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func isSystemReminder(text string) bool {
	return strings.Contains(text, "<system-reminder>")
}

func extractPlain(raw []byte) string {
	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if isNoiseLine(trimmed) {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func isNoiseLine(line string) bool {
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// ProportionalSample returns text unchanged if it already fits within
// limit; otherwise returns the first 40% of limit runes, 20% of limit runes
// taken from the middle, and the last 40% of limit runes, joined by
// explicit elision markers. Output length is bounded by
// limit + O(len(markers)); rune ordering within each segment is preserved.
func ProportionalSample(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	headLen := limit * 40 / 100
	midLen := limit * 20 / 100
	tailLen := limit - headLen - midLen
	if headLen < 1 {
		headLen = 1
	}
	if tailLen < 1 {
		tailLen = 1
	}

	n := len(runes)
	midStart := n/2 - midLen/2
	if midStart < headLen {
		midStart = headLen
	}
	midEnd := midStart + midLen
	if midEnd > n-tailLen {
		midEnd = n - tailLen
	}
	if midEnd < midStart {
		midEnd = midStart
	}

	head := string(runes[:headLen])
	mid := string(runes[midStart:midEnd])
	tail := string(runes[n-tailLen:])

	elidedBeforeMid := midStart - headLen
	elidedAfterMid := (n - tailLen) - midEnd

	var sb strings.Builder
	sb.WriteString(head)
	sb.WriteString(elisionMarker(elidedBeforeMid))
	sb.WriteString(mid)
	sb.WriteString(elisionMarker(elidedAfterMid))
	sb.WriteString(tail)
	return sb.String()
}

func elisionMarker(n int) string {
	if n < 0 {
		n = 0
	}
	return "\n... [elided " + itoa(n) + " chars] ...\n"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
