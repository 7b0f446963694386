package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityKind_IsValid(t *testing.T) {
	assert.True(t, KindProtocolCompleted.IsValid())
	assert.True(t, KindSupplementTaken.IsValid())
	assert.True(t, KindVideoWatched.IsValid())
	assert.True(t, KindSpecial.IsValid())
	assert.False(t, ActivityKind("").IsValid())
	assert.False(t, ActivityKind("protocol_completed").IsValid())
}

func TestNewActivityEvent(t *testing.T) {
	now := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)

	event, err := NewActivityEvent(
		"user-1", KindProtocolCompleted, "cold-exposure", "proto-cold-01",
		now, time.UTC, map[string]string{"minutes": "5"},
	)
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", event.ID.String())
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), event.Day)

	_, err = NewActivityEvent("", KindProtocolCompleted, "cold-exposure", "", now, time.UTC, nil)
	assert.ErrorIs(t, err, ErrEmptyUserID)

	_, err = NewActivityEvent("user-1", ActivityKind("nope"), "cold-exposure", "", now, time.UTC, nil)
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = NewActivityEvent("user-1", KindProtocolCompleted, "", "", now, time.UTC, nil)
	assert.ErrorIs(t, err, ErrEmptyCategory)
}

func TestDayOf_LocalDayBoundary(t *testing.T) {
	// 23:30 UTC on March 15th is already March 16th in Belgrade (UTC+1)
	belgrade, err := time.LoadLocation("Europe/Belgrade")
	require.NoError(t, err)

	instant := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), DayOf(instant, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), DayOf(instant, belgrade))
}
