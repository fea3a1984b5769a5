package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, ArenaSettings{ResetFrequency: ResetMonthly, NextResetAt: &past}.ResetDue(now))
	assert.True(t, ArenaSettings{ResetFrequency: ResetMonthly, NextResetAt: &now}.ResetDue(now))
	assert.False(t, ArenaSettings{ResetFrequency: ResetMonthly, NextResetAt: &future}.ResetDue(now))

	// Unscheduled automatic arenas are due immediately.
	assert.True(t, ArenaSettings{ResetFrequency: ResetWeekly}.ResetDue(now))

	// Manual arenas are never due, scheduled or not.
	assert.False(t, ArenaSettings{ResetFrequency: ResetManual}.ResetDue(now))
	assert.False(t, ArenaSettings{ResetFrequency: ResetManual, NextResetAt: &past}.ResetDue(now))
}

func TestNextReset(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	next := ArenaSettings{ResetFrequency: ResetWeekly}.NextReset(from)
	require.NotNil(t, next)
	assert.Equal(t, from.AddDate(0, 0, 7), *next)

	next = ArenaSettings{ResetFrequency: ResetMonthly}.NextReset(from)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *next)

	next = ArenaSettings{ResetFrequency: ResetCustom, CustomResetDays: 10}.NextReset(from)
	require.NotNil(t, next)
	assert.Equal(t, from.AddDate(0, 0, 10), *next)

	// Custom without a day count falls back to 30 days.
	next = ArenaSettings{ResetFrequency: ResetCustom}.NextReset(from)
	require.NotNil(t, next)
	assert.Equal(t, from.AddDate(0, 0, 30), *next)

	assert.Nil(t, ArenaSettings{ResetFrequency: ResetManual}.NextReset(from))
}
