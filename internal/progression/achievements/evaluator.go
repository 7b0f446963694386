package achievements

import (
	"fmt"
	"sort"

	"github.com/biopeak/backend/internal/progression/streak"
)

// Facts is the immutable view of derived user state the evaluator compares
// criteria against. Counts carries both per-category and per-kind totals
// under their string keys.
type Facts struct {
	Streak        streak.State
	MetricStreaks map[string]int
	Counts        map[string]int
	MilestoneSums map[string]int
	SpecialFlags  map[string]bool
}

type Evaluator struct {
	defs []Definition
}

// NewEvaluator validates the catalog (unique IDs, well-formed definitions)
// and keeps it sorted by ID so unlock order is deterministic.
func NewEvaluator(defs []Definition) (*Evaluator, error) {
	seen := make(map[string]struct{}, len(defs))
	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	for _, d := range sorted {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("duplicate achievement id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Evaluator{defs: sorted}, nil
}

func (e *Evaluator) Definitions() []Definition {
	defs := make([]Definition, len(e.defs))
	copy(defs, e.defs)
	return defs
}

func (e *Evaluator) Definition(id string) (Definition, bool) {
	for _, d := range e.defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Evaluate returns the definitions newly satisfied by facts, skipping those
// already in unlocked, in ascending ID order. Calling it again with the same
// facts and the grown unlocked set yields nothing: unlocks are exactly-once.
func (e *Evaluator) Evaluate(facts Facts, unlocked map[string]bool) []Definition {
	newly := make([]Definition, 0)
	for _, def := range e.defs {
		if unlocked[def.ID] {
			continue
		}
		if satisfied(def.Criterion, facts) {
			newly = append(newly, def)
		}
	}
	return newly
}

func satisfied(c Criterion, facts Facts) bool {
	switch crit := c.(type) {
	case StreakCriterion:
		value := facts.Streak.CurrentStreak
		if crit.Metric != "" {
			value = facts.MetricStreaks[crit.Metric]
		}
		return value >= crit.Target
	case CountCriterion:
		return facts.Counts[crit.Metric] >= crit.Target
	case MilestoneCriterion:
		return facts.MilestoneSums[crit.Metric] >= crit.Target
	case SpecialCriterion:
		return facts.SpecialFlags[crit.Metric]
	default:
		// unreachable for a catalog that passed load validation
		return false
	}
}
