// Package utils provides shared helpers for retries and market timing.
package utils

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location. NSE/BSE trade in IST only.
var IST = time.FixedZone("IST", 5*3600+1800)

// Market session boundaries (IST).
const (
	MarketOpenHour   = 9
	MarketOpenMin    = 15
	MarketCloseHour  = 15
	MarketCloseMin   = 30
)

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsMarketOpen reports whether t falls inside the regular trading
// session. Exchange holidays are not considered here.
func IsMarketOpen(t time.Time) bool {
	t = t.In(IST)
	if IsWeekend(t) {
		return false
	}
	open := time.Date(t.Year(), t.Month(), t.Day(), MarketOpenHour, MarketOpenMin, 0, 0, IST)
	close := time.Date(t.Year(), t.Month(), t.Day(), MarketCloseHour, MarketCloseMin, 0, 0, IST)
	return !t.Before(open) && !t.After(close)
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, min int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &min); err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return hour, min, nil
}

// InWindow reports whether t falls inside the [start, end] wall-clock
// window on its own day. start and end are "HH:MM" strings; a malformed
// window is treated as never matching.
func InWindow(t time.Time, start, end string) bool {
	sh, sm, err := ParseClock(start)
	if err != nil {
		return false
	}
	eh, em, err := ParseClock(end)
	if err != nil {
		return false
	}
	t = t.In(IST)
	from := time.Date(t.Year(), t.Month(), t.Day(), sh, sm, 0, 0, IST)
	to := time.Date(t.Year(), t.Month(), t.Day(), eh, em, 0, 0, IST)
	return !t.Before(from) && !t.After(to)
}
