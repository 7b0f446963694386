package score

import (
	"fmt"

	"github.com/biopeak/backend/internal/progression/ledger"
)

// State holds the derived point total and level for one user.
// Level is always LevelFor(levels, TotalPoints), never stored independently
// in a way that can drift.
type State struct {
	UserID      string `json:"userId"`
	TotalPoints int    `json:"totalPoints"`
	Level       int    `json:"level"`
}

// Level is one row of the level threshold table, ordered ascending by
// PointsRequired; level 1 requires 0 points and is always satisfied.
type Level struct {
	Level          int    `json:"level"`
	Name           string `json:"name"`
	PointsRequired int    `json:"pointsRequired"`
}

// Sum recomputes the point total from scratch: the base award of every
// ledger event plus the points of all unlocked achievements. Keeping it a
// full recompute means the total is always auditable from the ledger.
func Sum(events []ledger.ActivityEvent, pointsPerKind map[ledger.ActivityKind]int, achievementPoints int) int {
	total := achievementPoints
	for _, e := range events {
		total += pointsPerKind[e.Kind]
	}
	return total
}

// LevelFor returns the largest level whose threshold is within points.
// Pure and monotonic: more points never yield a lower level.
func LevelFor(levels []Level, points int) int {
	level := 1
	for _, l := range levels {
		if l.PointsRequired > points {
			break
		}
		level = l.Level
	}
	return level
}

// ValidateLevels checks the threshold table: at least one level, level 1 at
// 0 points, levels and thresholds strictly ascending. A violation is a
// startup-time configuration error.
func ValidateLevels(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("level table is empty")
	}
	if levels[0].Level != 1 || levels[0].PointsRequired != 0 {
		return fmt.Errorf("level table must start with level 1 at 0 points")
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Level != levels[i-1].Level+1 {
			return fmt.Errorf("level table not contiguous at level %d", levels[i].Level)
		}
		if levels[i].PointsRequired <= levels[i-1].PointsRequired {
			return fmt.Errorf("level %d threshold not ascending", levels[i].Level)
		}
	}
	return nil
}

// ValidatePoints rejects negative per-kind awards before they can ever
// reach the accumulator.
func ValidatePoints(pointsPerKind map[ledger.ActivityKind]int) error {
	for kind, points := range pointsPerKind {
		if !kind.IsValid() {
			return fmt.Errorf("unknown activity kind %q in points table", kind)
		}
		if points < 0 {
			return fmt.Errorf("negative points for activity kind %q", kind)
		}
	}
	return nil
}
