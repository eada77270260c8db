package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeVector renders a float32 vector as pgvector's textual literal, e.g.
// "[0.1,0.2,0.3]". pgvector accepts this form directly in parameterised
// queries cast with ::vector, avoiding a dependency on a dedicated pgvector
// Go type for what is otherwise a one-line encode/decode.
func encodeVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func decodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("decode vector element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
