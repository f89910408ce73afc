// Package trading implements expiry resolution, strike selection,
// contract pricing, margin sizing and order execution.
package trading

import (
	"time"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
)

// maxExpiryWalk bounds the backward walk over holidays so a
// misconfigured calendar fails loudly instead of looping.
const maxExpiryWalk = 10

// HolidaySet is a lookup table of exchange holidays.
type HolidaySet struct {
	days map[string]struct{}
}

// NewHolidaySet builds a holiday set from YYYYMMDD date strings.
// Malformed entries are ignored; Validate catches them at load time.
func NewHolidaySet(dates []string) HolidaySet {
	days := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, err := time.Parse("20060102", d); err == nil {
			days[d] = struct{}{}
		}
	}
	return HolidaySet{days: days}
}

// Contains reports whether the given day is an exchange holiday.
func (h HolidaySet) Contains(t time.Time) bool {
	_, ok := h.days[t.Format("20060102")]
	return ok
}

// isTradingDay reports whether the exchange is open on the given day.
func (h HolidaySet) isTradingDay(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !h.Contains(t)
}

// ResolveExpiry returns the active expiry date for an index as of today.
//
// The weekly expiry is the next occurrence of the index's weekly expiry
// weekday, counting today itself. When today falls in the last calendar
// week of the month and the monthly expiry is less than a week away,
// the contract rolls to the monthly expiry weekday instead. If the
// nominal expiry lands on a weekend or holiday, it moves backward to
// the previous trading day.
func ResolveExpiry(cfg models.IndexConfig, holidays HolidaySet, today time.Time) (time.Time, error) {
	day := dateOnly(today)

	monthly := lastWeekdayOfMonth(day.Year(), day.Month(), cfg.MonthlyExpiry, day.Location())
	if monthly.Before(day) {
		next := day.AddDate(0, 1, 0)
		monthly = lastWeekdayOfMonth(next.Year(), next.Month(), cfg.MonthlyExpiry, day.Location())
	}

	weekly := day.AddDate(0, 0, int(cfg.WeeklyExpiry-day.Weekday()+7)%7)

	expiry := weekly
	if monthly.Sub(day) < 7*24*time.Hour && isLastWeekOfMonth(day) {
		expiry = monthly
	}

	for i := 0; !holidays.isTradingDay(expiry); i++ {
		if i >= maxExpiryWalk {
			return time.Time{}, apperrors.Wrapf(apperrors.ErrConfiguration,
				"no trading day within %d days before nominal expiry %s",
				maxExpiryWalk, expiry.Format("2006-01-02"))
		}
		expiry = expiry.AddDate(0, 0, -1)
	}
	return expiry, nil
}

// isLastWeekOfMonth reports whether the week starting at day crosses
// into the next month.
func isLastWeekOfMonth(day time.Time) bool {
	return day.AddDate(0, 0, 7).Month() != day.Month()
}

// lastWeekdayOfMonth returns the last occurrence of wd in the month.
func lastWeekdayOfMonth(year int, month time.Month, wd time.Weekday, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	return last.AddDate(0, 0, -int(last.Weekday()-wd+7)%7)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
