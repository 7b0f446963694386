package progression

import (
	"time"

	"github.com/biopeak/backend/internal/progression/achievements"
)

// Snapshot is the merged progression state handed to the UI after a query
// or a recorded activity.
type Snapshot struct {
	UserID                 string               `json:"userId"`
	CurrentStreak          int                  `json:"currentStreak"`
	LongestStreak          int                  `json:"longestStreak"`
	TotalPoints            int                  `json:"totalPoints"`
	Level                  int                  `json:"level"`
	UnlockedAchievementIDs []string             `json:"unlockedAchievementIds"`
	NewlyUnlocked          []AchievementSummary `json:"newlyUnlocked"`

	// Duplicate is set when a record hit the dedupe window and the prior
	// state was returned; not part of the wire format
	Duplicate bool `json:"-"`
}

// AchievementSummary is the toast-sized view of an unlocked achievement.
type AchievementSummary struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Points      int               `json:"points"`
	Tier        achievements.Tier `json:"tier"`
}

func summaryOf(def achievements.Definition) AchievementSummary {
	return AchievementSummary{
		ID:          def.ID,
		Title:       def.Title,
		Description: def.Description,
		Category:    def.Category,
		Points:      def.Points,
		Tier:        def.Tier,
	}
}

// Unlock is created exactly once per (user, achievement) pair and is never
// revoked, even if the streak that earned it later breaks.
type Unlock struct {
	UserID        string    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}
