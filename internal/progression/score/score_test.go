package score

import (
	"testing"

	"github.com/biopeak/backend/internal/progression/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLevels = []Level{
	{Level: 1, Name: "Initiate", PointsRequired: 0},
	{Level: 2, Name: "Apprentice", PointsRequired: 100},
	{Level: 3, Name: "Optimizer", PointsRequired: 300},
	{Level: 4, Name: "Biohacker", PointsRequired: 700},
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, 1, LevelFor(testLevels, 0))
	assert.Equal(t, 1, LevelFor(testLevels, 99))
	assert.Equal(t, 2, LevelFor(testLevels, 100))
	assert.Equal(t, 2, LevelFor(testLevels, 299))
	assert.Equal(t, 3, LevelFor(testLevels, 300))
	assert.Equal(t, 4, LevelFor(testLevels, 700))
	assert.Equal(t, 4, LevelFor(testLevels, 100000))
}

func TestLevelFor_Monotonic(t *testing.T) {
	prev := 0
	for points := 0; points <= 1000; points++ {
		level := LevelFor(testLevels, points)
		require.GreaterOrEqual(t, level, prev, "level dropped at %d points", points)
		// pure function of points alone
		require.Equal(t, level, LevelFor(testLevels, points))
		prev = level
	}
}

func TestSum(t *testing.T) {
	pointsPerKind := map[ledger.ActivityKind]int{
		ledger.KindProtocolCompleted: 10,
		ledger.KindSupplementTaken:   5,
		ledger.KindVideoWatched:      3,
	}
	events := []ledger.ActivityEvent{
		{Kind: ledger.KindProtocolCompleted},
		{Kind: ledger.KindProtocolCompleted},
		{Kind: ledger.KindSupplementTaken},
		{Kind: ledger.KindVideoWatched},
		{Kind: ledger.KindSpecial}, // no base award configured
	}

	assert.Equal(t, 28, Sum(events, pointsPerKind, 0))
	assert.Equal(t, 78, Sum(events, pointsPerKind, 50))
	assert.Equal(t, 0, Sum(nil, pointsPerKind, 0))
}

func TestValidateLevels(t *testing.T) {
	assert.NoError(t, ValidateLevels(testLevels))

	assert.Error(t, ValidateLevels(nil))
	assert.Error(t, ValidateLevels([]Level{{Level: 1, PointsRequired: 10}}))
	assert.Error(t, ValidateLevels([]Level{{Level: 2, PointsRequired: 0}}))
	assert.Error(t, ValidateLevels([]Level{
		{Level: 1, PointsRequired: 0},
		{Level: 3, PointsRequired: 100},
	}))
	assert.Error(t, ValidateLevels([]Level{
		{Level: 1, PointsRequired: 0},
		{Level: 2, PointsRequired: 100},
		{Level: 3, PointsRequired: 100},
	}))
}

func TestValidatePoints(t *testing.T) {
	assert.NoError(t, ValidatePoints(map[ledger.ActivityKind]int{
		ledger.KindProtocolCompleted: 10,
	}))
	assert.Error(t, ValidatePoints(map[ledger.ActivityKind]int{
		ledger.KindProtocolCompleted: -1,
	}))
	assert.Error(t, ValidatePoints(map[ledger.ActivityKind]int{
		ledger.ActivityKind("bogus"): 1,
	}))
}
