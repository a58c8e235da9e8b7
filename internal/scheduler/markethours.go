package scheduler

import (
	"fmt"
	"time"
)

// MarketCalendar answers whether the US equity market (NYSE/NASDAQ regular
// session) is open at a given instant. Regular hours are 9:30-16:00 Eastern,
// Monday through Friday, excluding major market holidays.
type MarketCalendar struct {
	loc *time.Location
}

// NewMarketCalendar loads the market timezone, normally "America/New_York".
// It fails when the host has no timezone database or the name is unknown.
func NewMarketCalendar(timezone string) (*MarketCalendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("NewMarketCalendar: loading timezone %q: %w", timezone, err)
	}
	return &MarketCalendar{loc: loc}, nil
}

// IsOpen reports whether the regular session is in progress at t.
func (c *MarketCalendar) IsOpen(t time.Time) bool {
	et := t.In(c.loc)

	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	if c.isHoliday(et) {
		return false
	}

	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, c.loc)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, c.loc)
	return !et.Before(open) && !et.After(close)
}

// NextOpen returns the next session open at or after t. If the session is
// already in progress, t itself is returned.
func (c *MarketCalendar) NextOpen(t time.Time) time.Time {
	et := t.In(c.loc)
	if c.IsOpen(et) {
		return et
	}

	day := et
	for {
		open := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, c.loc)
		if open.After(et) && c.isTradingDay(open) {
			return open
		}
		day = day.AddDate(0, 0, 1)
	}
}

func (c *MarketCalendar) isTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.isHoliday(t)
}

// isHoliday checks t against the major US market holidays, with fixed-date
// holidays observed on the adjacent weekday when they land on a weekend
// (Saturday observed Friday, Sunday observed Monday).
func (c *MarketCalendar) isHoliday(t time.Time) bool {
	year := t.Year()

	holidays := []time.Time{
		// Fixed-date holidays.
		time.Date(year, time.January, 1, 0, 0, 0, 0, c.loc),   // New Year's Day
		time.Date(year, time.June, 19, 0, 0, 0, 0, c.loc),     // Juneteenth
		time.Date(year, time.July, 4, 0, 0, 0, 0, c.loc),      // Independence Day
		time.Date(year, time.December, 25, 0, 0, 0, 0, c.loc), // Christmas Day
		// Floating holidays.
		c.nthWeekday(year, time.January, time.Monday, 3),    // MLK Day
		c.nthWeekday(year, time.February, time.Monday, 3),   // Presidents' Day
		c.lastWeekday(year, time.May, time.Monday),          // Memorial Day
		c.nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		c.nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
	}

	// Weekend holidays shift to the nearest weekday.
	for _, h := range holidays[:4] {
		switch h.Weekday() {
		case time.Saturday:
			holidays = append(holidays, h.AddDate(0, 0, -1))
		case time.Sunday:
			holidays = append(holidays, h.AddDate(0, 0, 1))
		}
	}

	for _, h := range holidays {
		if sameDate(t, h) {
			return true
		}
	}
	return false
}

func (c *MarketCalendar) nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, c.loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

func (c *MarketCalendar) lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, c.loc).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
