package order

import (
	"fmt"
	"strconv"
	"strings"
)

const shortIDLen = 12

// ShortTradeID compacts a trade id for use in position labels: dashes are
// dropped and only the last 12 characters kept. An empty id is "MANUAL".
func ShortTradeID(tradeID string) string {
	s := strings.ReplaceAll(tradeID, "-", "")
	if s == "" {
		return "MANUAL"
	}
	if len(s) > shortIDLen {
		s = s[len(s)-shortIDLen:]
	}
	return s
}

// LegLabel returns the label of leg n (1-based) of a signal, e.g.
// "abc123_TP2".
func LegLabel(shortID string, n int) string {
	return fmt.Sprintf("%s_TP%d", shortID, n)
}

// LegIndex reports the 1-based leg number encoded in label, or 0 when
// label is not a leg label. The older "TP1Position" style is accepted.
func LegIndex(label string) int {
	if i := strings.LastIndex(label, "_TP"); i >= 0 {
		if n, err := strconv.Atoi(label[i+3:]); err == nil && n >= 1 && n <= 3 {
			return n
		}
	}
	if strings.HasPrefix(label, "TP") && strings.HasSuffix(label, "Position") {
		if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(label, "TP"), "Position")); err == nil && n >= 1 && n <= 3 {
			return n
		}
	}
	return 0
}

func IsLegLabel(label string) bool {
	return LegIndex(label) > 0
}
