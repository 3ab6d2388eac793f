package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WallClockLayout is the DD/MM/YYYY HH:MM:SS layout sent by gateways with
// an NTP-synchronised clock.
const WallClockLayout = "02/01/2006 15:04:05"

// epochMillisThreshold separates milliseconds-since-boot from Unix
// milliseconds: 1e12 ms is September 2001, and no device stays up 31 years.
const epochMillisThreshold int64 = 1_000_000_000_000

var wallClockPattern = regexp.MustCompile(`^[0-9]{2}/[0-9]{2}/[0-9]{4} [0-9]{2}:[0-9]{2}:[0-9]{2}$`)

// isoLayouts are tried in order for strings that are not wall-clock shaped.
// Layouts without an offset are read in the site timezone.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

var errWallClockShape = errors.New("timestamp does not match DD/MM/YYYY HH:MM:SS")

// ParseWallClock strictly parses a DD/MM/YYYY HH:MM:SS string in loc.
// Any deviation in separators, widths or digits is rejected; there is no
// lenient retry.
func ParseWallClock(s string, loc *time.Location) (time.Time, error) {
	if !wallClockPattern.MatchString(s) {
		return time.Time{}, errWallClockShape
	}
	t, err := time.ParseInLocation(WallClockLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing wall-clock timestamp: %w", err)
	}
	return t, nil
}

// ResolveTimestamp interprets a wire timestamp value. v is the decoded JSON
// value (nil when absent), now is the ingestion instant and loc the site
// timezone. It never fails.
func ResolveTimestamp(v any, now time.Time, loc *time.Location) Timestamp {
	now = now.In(loc)

	switch val := v.(type) {
	case nil:
		return Timestamp{Time: now, Kind: TimestampIngest}

	case json.Number:
		return resolveNumeric(val.String(), now, loc)

	case float64:
		return resolveNumeric(strconv.FormatFloat(val, 'f', -1, 64), now, loc)

	case string:
		s := strings.TrimSpace(val)
		if isDigits(s) {
			return resolveNumeric(s, now, loc)
		}
		if strings.Contains(s, "/") {
			t, err := ParseWallClock(s, loc)
			if err != nil {
				return Timestamp{Time: now, Kind: TimestampFallback, Raw: val}
			}
			return Timestamp{Time: t, Kind: TimestampWallClock, Raw: val}
		}
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return Timestamp{Time: t, Kind: TimestampISO8601, Raw: val}
			}
		}
		return Timestamp{Time: now, Kind: TimestampFallback, Raw: val}

	default:
		return Timestamp{Time: now, Kind: TimestampFallback, Raw: fmt.Sprint(val)}
	}
}

func resolveNumeric(raw string, now time.Time, loc *time.Location) Timestamp {
	ms, ok := integralValue(raw)
	if !ok || ms < 0 {
		return Timestamp{Time: now, Kind: TimestampFallback, Raw: raw}
	}
	if ms >= epochMillisThreshold {
		return Timestamp{Time: time.UnixMilli(ms).In(loc), Kind: TimestampEpochMillis, Raw: raw}
	}
	return Timestamp{Time: now, Kind: TimestampBootMillis, Raw: raw, BootMillis: ms}
}

// integralValue parses raw as an int64, accepting floats with no
// fractional part ("1500.0").
func integralValue(raw string) (int64, bool) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
