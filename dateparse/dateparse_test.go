package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRelativeDay(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	w, ok := Parse("let's meet tomorrow", "UTC", now)
	require.True(t, ok)
	require.Equal(t, 31, w.Start.Day())
}

func TestParseISODate(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	w, ok := Parse("schedule for 2026-08-15", "UTC", now)
	require.True(t, ok)
	require.Equal(t, time.August, w.Start.Month())
	require.Equal(t, 15, w.Start.Day())
}

func TestParseUnrecognizedReturnsFalse(t *testing.T) {
	_, ok := Parse("sometime soon-ish", "UTC", time.Now())
	require.False(t, ok)
}

func TestWidenExpandsByOneDayEachSide(t *testing.T) {
	w := Window{Start: time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}
	widened := Widen(w)
	require.Equal(t, 29, widened.Start.Day())
	require.Equal(t, 1, widened.End.Day())
}
