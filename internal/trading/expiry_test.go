package trading

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paisa-trader/internal/models"
)

func niftyConfig() models.IndexConfig {
	return models.IndexConfig{
		Symbol:        "NIFTY",
		WeeklyExpiry:  time.Thursday,
		MonthlyExpiry: time.Thursday,
		LotSize:       25,
		MaxLotSize:    720,
		StepSize:      50,
	}
}

func bankniftyConfig() models.IndexConfig {
	return models.IndexConfig{
		Symbol:        "BANKNIFTY",
		WeeklyExpiry:  time.Wednesday,
		MonthlyExpiry: time.Thursday,
		LotSize:       15,
		MaxLotSize:    600,
		StepSize:      100,
	}
}

// Property: the resolved expiry is always a trading day (never a
// weekend, never a configured holiday) and never more than a month
// out from the reference day.
func TestProperty_ResolvedExpiryIsAlwaysTradingDay(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(1)

	properties := gopter.NewProperties(parameters)

	holidays := NewHolidaySet([]string{"20240125", "20240126", "20240229", "20240321"})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	dayOffsetGen := gen.IntRange(0, 365)
	weekdayGen := gen.IntRange(1, 5) // Monday..Friday

	properties.Property("expiry is a trading day", prop.ForAll(
		func(offset, weeklyWd, monthlyWd int) bool {
			cfg := niftyConfig()
			cfg.WeeklyExpiry = time.Weekday(weeklyWd)
			cfg.MonthlyExpiry = time.Weekday(monthlyWd)
			today := base.AddDate(0, 0, offset)

			expiry, err := ResolveExpiry(cfg, holidays, today)
			if err != nil {
				return false
			}
			if expiry.Weekday() == time.Saturday || expiry.Weekday() == time.Sunday {
				t.Logf("expiry %s on weekend for today %s", expiry, today)
				return false
			}
			if holidays.Contains(expiry) {
				t.Logf("expiry %s on holiday for today %s", expiry, today)
				return false
			}
			return expiry.Sub(today) < 35*24*time.Hour
		},
		dayOffsetGen, weekdayGen, weekdayGen,
	))

	properties.TestingRun(t)
}

func TestResolveExpiry_WeeklyStaysOnSameDay(t *testing.T) {
	holidays := NewHolidaySet(nil)

	// Thursday 11 Jan 2024, mid-month: weekly expiry is today.
	today := time.Date(2024, 1, 11, 10, 30, 0, 0, time.UTC)
	expiry, err := ResolveExpiry(niftyConfig(), holidays, today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), expiry)
}

func TestResolveExpiry_WeeklyAdvancesToNextThursday(t *testing.T) {
	holidays := NewHolidaySet(nil)

	// Friday 12 Jan 2024: next Thursday is the 18th.
	today := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	expiry, err := ResolveExpiry(niftyConfig(), holidays, today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), expiry)
}

func TestResolveExpiry_MonthlyRollInLastWeek(t *testing.T) {
	holidays := NewHolidaySet(nil)

	// BANKNIFTY trades Wednesday weeklies but the monthly contract
	// expires Thursday. On Thursday 25 Jan 2024, in the last calendar
	// week, the active expiry is the monthly contract expiring today,
	// not the following Wednesday.
	today := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	expiry, err := ResolveExpiry(bankniftyConfig(), holidays, today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), expiry)
}

func TestResolveExpiry_MonthlyNeedsLastWeekOfMonth(t *testing.T) {
	holidays := NewHolidaySet(nil)

	// Friday 19 Jan 2024: the monthly Thursday (the 25th) is six days
	// away, but the 19th is not in January's last calendar week, so
	// the weekly Wednesday the 24th stays active.
	today := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	expiry, err := ResolveExpiry(bankniftyConfig(), holidays, today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC), expiry)
}

func TestResolveExpiry_HolidayWalksBackward(t *testing.T) {
	// Thursday 25 Jan 2024 is a holiday: expiry moves to Wednesday.
	holidays := NewHolidaySet([]string{"20240125"})

	today := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	expiry, err := ResolveExpiry(niftyConfig(), holidays, today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC), expiry)
}

func TestResolveExpiry_HolidayClusterFailsLoudly(t *testing.T) {
	// Every day for two weeks around the expiry is a holiday, so the
	// backward walk runs out of room.
	var dates []string
	for d := 10; d <= 26; d++ {
		dates = append(dates, time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC).Format("20060102"))
	}
	holidays := NewHolidaySet(dates)

	today := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	_, err := ResolveExpiry(niftyConfig(), holidays, today)
	require.Error(t, err)
}

func TestHolidaySet_IgnoresMalformedDates(t *testing.T) {
	h := NewHolidaySet([]string{"20240126", "not-a-date", ""})
	assert.True(t, h.Contains(time.Date(2024, 1, 26, 0, 0, 0, 0, time.UTC)))
	assert.False(t, h.Contains(time.Date(2024, 1, 27, 0, 0, 0, 0, time.UTC)))
}
