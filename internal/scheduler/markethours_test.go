package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendar(t *testing.T) *MarketCalendar {
	t.Helper()
	cal, err := NewMarketCalendar("America/New_York")
	require.NoError(t, err)
	return cal
}

func et(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestMarketCalendar_IsOpen(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name string
		at   string
		want bool
	}{
		{name: "weekday mid session", at: "2026-03-04 12:00", want: true},
		{name: "weekday at open", at: "2026-03-04 09:30", want: true},
		{name: "weekday at close", at: "2026-03-04 16:00", want: true},
		{name: "weekday before open", at: "2026-03-04 09:29", want: false},
		{name: "weekday after close", at: "2026-03-04 16:01", want: false},
		{name: "saturday", at: "2026-03-07 12:00", want: false},
		{name: "sunday", at: "2026-03-08 12:00", want: false},
		{name: "new years day", at: "2026-01-01 12:00", want: false},
		{name: "mlk day third monday january", at: "2026-01-19 12:00", want: false},
		{name: "presidents day third monday february", at: "2026-02-16 12:00", want: false},
		{name: "memorial day last monday may", at: "2026-05-25 12:00", want: false},
		{name: "juneteenth", at: "2026-06-19 12:00", want: false},
		// July 4 2026 is a Saturday, observed Friday July 3.
		{name: "independence day observed friday", at: "2026-07-03 12:00", want: false},
		{name: "labor day first monday september", at: "2026-09-07 12:00", want: false},
		{name: "thanksgiving fourth thursday november", at: "2026-11-26 12:00", want: false},
		{name: "christmas", at: "2026-12-25 12:00", want: false},
		// Christmas 2027 is a Saturday, observed Friday December 24.
		{name: "christmas observed friday", at: "2027-12-24 12:00", want: false},
		// Juneteenth 2027 is a Saturday, observed Friday June 18.
		{name: "juneteenth observed friday", at: "2027-06-18 12:00", want: false},
		// July 4 2027 is a Sunday, observed Monday July 5.
		{name: "independence day observed monday", at: "2027-07-05 12:00", want: false},
		{name: "ordinary day after observed holiday", at: "2026-07-06 12:00", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsOpen(et(t, tt.at)))
		})
	}
}

func TestMarketCalendar_IsOpenConvertsTimezone(t *testing.T) {
	cal := newTestCalendar(t)

	// 17:00 UTC on a March weekday is 12:00 Eastern (EDT).
	utc := time.Date(2026, time.March, 18, 17, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsOpen(utc))

	// 02:00 UTC is 22:00 Eastern the previous evening.
	late := time.Date(2026, time.March, 19, 2, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsOpen(late))
}

func TestMarketCalendar_NextOpen(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name string
		at   string
		want string
	}{
		{name: "during session returns now", at: "2026-03-04 12:00", want: "2026-03-04 12:00"},
		{name: "before open same day", at: "2026-03-04 08:00", want: "2026-03-04 09:30"},
		{name: "after close rolls to next day", at: "2026-03-04 17:00", want: "2026-03-05 09:30"},
		{name: "friday evening rolls to monday", at: "2026-03-06 17:00", want: "2026-03-09 09:30"},
		{name: "saturday rolls to monday", at: "2026-03-07 12:00", want: "2026-03-09 09:30"},
		// Friday July 3 2026 is the observed Independence Day.
		{name: "holiday weekend rolls past observed day", at: "2026-07-02 17:00", want: "2026-07-06 09:30"},
		{name: "mlk monday rolls to tuesday", at: "2026-01-19 12:00", want: "2026-01-20 09:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cal.NextOpen(et(t, tt.at))
			assert.True(t, got.Equal(et(t, tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}
