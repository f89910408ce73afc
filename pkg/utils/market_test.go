package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMarketOpen(t *testing.T) {
	// Monday 22 Jan 2024.
	assert.False(t, IsMarketOpen(time.Date(2024, 1, 22, 9, 0, 0, 0, IST)))
	assert.True(t, IsMarketOpen(time.Date(2024, 1, 22, 9, 15, 0, 0, IST)))
	assert.True(t, IsMarketOpen(time.Date(2024, 1, 22, 12, 0, 0, 0, IST)))
	assert.True(t, IsMarketOpen(time.Date(2024, 1, 22, 15, 30, 0, 0, IST)))
	assert.False(t, IsMarketOpen(time.Date(2024, 1, 22, 15, 31, 0, 0, IST)))

	// Saturday.
	assert.False(t, IsMarketOpen(time.Date(2024, 1, 20, 12, 0, 0, 0, IST)))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("11:55")
	require.NoError(t, err)
	assert.Equal(t, 11, h)
	assert.Equal(t, 55, m)

	_, _, err = ParseClock("25:00")
	require.Error(t, err)
	_, _, err = ParseClock("noon")
	require.Error(t, err)
}

func TestInWindow(t *testing.T) {
	noon := time.Date(2024, 1, 22, 12, 30, 0, 0, IST)
	assert.True(t, InWindow(noon, "11:55", "15:45"))
	assert.False(t, InWindow(noon, "13:00", "15:45"))
	assert.True(t, InWindow(time.Date(2024, 1, 22, 11, 55, 0, 0, IST), "11:55", "15:45"))
	assert.True(t, InWindow(time.Date(2024, 1, 22, 15, 45, 0, 0, IST), "11:55", "15:45"))
	assert.False(t, InWindow(noon, "bad", "15:45"))
}
