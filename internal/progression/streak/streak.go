package streak

import (
	"sort"
	"time"

	"github.com/biopeak/backend/internal/progression/ledger"
)

// State holds the derived streak numbers for one user.
// Invariant: LongestStreak >= CurrentStreak.
type State struct {
	UserID         string    `json:"userId"`
	CurrentStreak  int       `json:"currentStreak"`
	LongestStreak  int       `json:"longestStreak"`
	LastActiveDate time.Time `json:"lastActiveDate"`
}

// EligibleKind is the one activity kind that keeps a streak alive; one
// protocol completion per day is sufficient.
const EligibleKind = ledger.KindProtocolCompleted

// Compute derives the streak state from the timestamps of streak-eligible
// activity, bucketed into calendar days in loc. A run extends across a gap
// of one silent day (the grace day); two or more silent days reset it.
// The current streak counts only while the run still touches asOf or the
// day before it.
func Compute(userID string, timestamps []time.Time, asOf time.Time, loc *time.Location) State {
	state := State{UserID: userID}

	days := distinctDays(timestamps, loc)
	if len(days) == 0 {
		return state
	}

	run := 1
	longest := 1
	for i := 1; i < len(days); i++ {
		switch gap := daysBetween(days[i-1], days[i]); {
		case gap <= 2:
			// consecutive day, or one silent day bridged by grace
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	lastActive := days[len(days)-1]
	state.LastActiveDate = lastActive
	state.LongestStreak = longest

	if daysBetween(lastActive, ledger.DayOf(asOf, loc)) <= 1 {
		state.CurrentStreak = run
	}

	return state
}

// ComputeFromEvents filters the ledger down to streak-eligible events and
// computes the state from their timestamps.
func ComputeFromEvents(userID string, events []ledger.ActivityEvent, asOf time.Time, loc *time.Location) State {
	var timestamps []time.Time
	for _, e := range events {
		if e.Kind == EligibleKind {
			timestamps = append(timestamps, e.Timestamp)
		}
	}
	return Compute(userID, timestamps, asOf, loc)
}

func distinctDays(timestamps []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(timestamps))
	days := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		day := ledger.DayOf(ts, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
