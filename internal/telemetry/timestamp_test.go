package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var siteZone = time.FixedZone("CEST", 2*60*60)

func TestParseWallClock(t *testing.T) {
	got, err := ParseWallClock("08/06/2025 16:30:44", siteZone)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 6, 8, 14, 30, 44, 0, time.UTC)), "got %v", got)
	assert.Equal(t, siteZone, got.Location())
}

func TestParseWallClock_Strict(t *testing.T) {
	rejected := []string{
		"2025-06-08 16:30:44",
		"08-06-2025 16:30:44",
		"8/6/2025 16:30:44",
		"08/06/2025 16:30",
		"08/06/2025T16:30:44",
		"08/06/25 16:30:44",
		"aa/06/2025 16:30:44",
		" 08/06/2025 16:30:44",
		"32/06/2025 16:30:44",
		"08/13/2025 16:30:44",
		"",
	}
	for _, s := range rejected {
		t.Run(s, func(t *testing.T) {
			_, err := ParseWallClock(s, siteZone)
			assert.Error(t, err)
		})
	}
}

func TestResolveTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		in       any
		wantKind TimestampKind
		wantTime time.Time
		wantBoot int64
	}{
		{"absent", nil, TimestampIngest, now, 0},
		{"boot millis", json.Number("123456"), TimestampBootMillis, now, 123456},
		{"boot millis as float", float64(5000), TimestampBootMillis, now, 5000},
		{"boot millis as digit string", "98765", TimestampBootMillis, now, 98765},
		{"epoch millis", json.Number("1749393044000"), TimestampEpochMillis, time.Date(2025, 6, 8, 14, 30, 44, 0, time.UTC), 0},
		{"iso with offset", "2025-06-08T16:30:44+02:00", TimestampISO8601, time.Date(2025, 6, 8, 14, 30, 44, 0, time.UTC), 0},
		{"iso zulu fractional", "2025-06-08T14:30:44.250Z", TimestampISO8601, time.Date(2025, 6, 8, 14, 30, 44, 250_000_000, time.UTC), 0},
		{"iso without zone uses site zone", "2025-06-08T16:30:44", TimestampISO8601, time.Date(2025, 6, 8, 14, 30, 44, 0, time.UTC), 0},
		{"space separated iso", "2025-06-08 16:30:44", TimestampISO8601, time.Date(2025, 6, 8, 14, 30, 44, 0, time.UTC), 0},
		{"wall clock", "08/06/2025 16:30:44", TimestampWallClock, time.Date(2025, 6, 8, 14, 30, 44, 0, time.UTC), 0},
		{"malformed wall clock is not parsed leniently", "08/06/2025 16:30", TimestampFallback, now, 0},
		{"garbage string", "yesterday", TimestampFallback, now, 0},
		{"empty string", "", TimestampFallback, now, 0},
		{"negative", json.Number("-5"), TimestampFallback, now, 0},
		{"fractional number", json.Number("12.5"), TimestampFallback, now, 0},
		{"bool", true, TimestampFallback, now, 0},
		{"object", map[string]any{"s": 1}, TimestampFallback, now, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTimestamp(tt.in, now, siteZone)

			assert.False(t, got.Time.IsZero(), "timestamp must always resolve")
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.True(t, got.Time.Equal(tt.wantTime), "Time = %v, want %v", got.Time, tt.wantTime)
			assert.Equal(t, tt.wantBoot, got.BootMillis)
		})
	}
}

func TestResolveTimestamp_KeepsRaw(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "08/06/2025 16:30", ResolveTimestamp("08/06/2025 16:30", now, siteZone).Raw)
	assert.Equal(t, "123456", ResolveTimestamp(json.Number("123456"), now, siteZone).Raw)
	assert.Empty(t, ResolveTimestamp(nil, now, siteZone).Raw)
}

func TestTimestamp_Approximate(t *testing.T) {
	assert.True(t, Timestamp{Kind: TimestampIngest}.Approximate())
	assert.True(t, Timestamp{Kind: TimestampBootMillis}.Approximate())
	assert.True(t, Timestamp{Kind: TimestampFallback}.Approximate())
	assert.False(t, Timestamp{Kind: TimestampWallClock}.Approximate())
	assert.False(t, Timestamp{Kind: TimestampISO8601}.Approximate())
	assert.False(t, Timestamp{Kind: TimestampEpochMillis}.Approximate())
}
