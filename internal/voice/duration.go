package voice

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDuration is the note length used when a token is not understood.
const DefaultDuration = "8n"

// ParseDuration converts a note-value token to a duration at bpm.
// Supported forms are Nm (measures), Nn (notes), Nt (triplets) and a
// trailing "." for dotted values: "1m", "4n", "8n.", "8t".
func ParseDuration(token string, bpm int) time.Duration {
	if bpm <= 0 {
		bpm = 120
	}
	quarters, ok := quarterNotes(strings.TrimSpace(token))
	if !ok {
		quarters, _ = quarterNotes(DefaultDuration)
	}
	return time.Duration(quarters * 60 / float64(bpm) * float64(time.Second))
}

func quarterNotes(tok string) (float64, bool) {
	dotted := strings.HasSuffix(tok, ".")
	tok = strings.TrimSuffix(tok, ".")
	if len(tok) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(tok[:len(tok)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	var q float64
	switch tok[len(tok)-1] {
	case 'm':
		q = float64(n) * 4
	case 'n':
		q = 4 / float64(n)
	case 't':
		q = 4 / float64(n) * 2 / 3
	default:
		return 0, false
	}
	if dotted {
		q *= 1.5
	}
	return q, true
}
