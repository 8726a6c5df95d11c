package convert

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"tablereader/internal/errors"
)

// String tokens are parsed with strconv in base 10; cast would read a
// leading zero as an octal prefix. Everything else goes through cast.

func toInt(tok any) (any, error) {
	if s, ok := tok.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "not an int")
		}
		return int32(n), nil
	}
	n, err := cast.ToInt64E(tok)
	if err != nil {
		return nil, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, errors.Newf("%d overflows an int", n)
	}
	return int32(n), nil
}

func toLong(tok any) (any, error) {
	if s, ok := tok.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "not a long")
		}
		return n, nil
	}
	return cast.ToInt64E(tok)
}

func toDouble(tok any) (any, error) {
	if s, ok := tok.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errors.Wrap(err, "not a double")
		}
		return f, nil
	}
	return cast.ToFloat64E(tok)
}

func toBoolean(tok any) (any, error) {
	if s, ok := tok.(string); ok {
		b, ok := parseBool(s)
		if !ok {
			return nil, errors.Newf("%q is not a boolean", s)
		}
		return b, nil
	}
	return cast.ToBoolE(tok)
}

func toDateTime(tok any) (any, error) {
	if s, ok := tok.(string); ok {
		t, ok := parseDateTime(s)
		if !ok {
			return nil, errors.Newf("%q is not a date and time", s)
		}
		return t, nil
	}
	return cast.ToTimeE(tok)
}

func toString(tok any) (any, error) {
	if t, ok := tok.(time.Time); ok {
		return t.Format(time.RFC3339Nano), nil
	}
	return cast.ToStringE(tok)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
