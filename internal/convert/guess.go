package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"tablereader/internal/table"
)

// GuessType returns the most specific built-in type a token fits. It
// reports false for missing tokens, which carry no type.
func GuessType(tok any) (table.ExternalType, bool) {
	if table.IsMissing(tok) {
		return "", false
	}
	switch v := tok.(type) {
	case string:
		return guessString(v)
	case bool:
		return table.TypeBoolean, true
	case int8, int16, int32, uint8, uint16:
		return table.TypeInt, true
	case int:
		return intOrLong(int64(v)), true
	case int64:
		return intOrLong(v), true
	case uint, uint32, uint64:
		return table.TypeLong, true
	case float32, float64:
		return table.TypeDouble, true
	case time.Time:
		return table.TypeDateTime, true
	case json.Number:
		return guessString(string(v))
	case []byte:
		return guessString(string(v))
	default:
		return table.TypeString, true
	}
}

func intOrLong(n int64) table.ExternalType {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return table.TypeLong
	}
	return table.TypeInt
}

func guessString(s string) (table.ExternalType, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if looksNumeric(s) {
		if _, err := strconv.ParseInt(s, 10, 32); err == nil {
			return table.TypeInt, true
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return table.TypeLong, true
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return table.TypeDouble, true
		}
	}
	if _, ok := parseBool(s); ok {
		return table.TypeBoolean, true
	}
	if _, ok := parseDateTime(s); ok {
		return table.TypeDateTime, true
	}
	return table.TypeString, true
}

// looksNumeric keeps words such as "Inf" or "NaN" out of the numeric types.
func looksNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}
