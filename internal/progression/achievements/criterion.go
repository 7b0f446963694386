package achievements

import (
	"encoding/json"
	"fmt"
)

// Criterion is a closed set of unlock conditions. The JSON type tag is
// resolved once, at catalog load; from then on the evaluator switches
// exhaustively over the concrete variants.
type Criterion interface {
	isCriterion()
}

// StreakCriterion is satisfied when the streak length (overall, or for the
// named metric) reaches Target.
type StreakCriterion struct {
	Target int
	Metric string
}

// CountCriterion is satisfied when the lifetime count of events matching
// Metric (a category or an activity kind) reaches Target.
type CountCriterion struct {
	Target int
	Metric string
}

// MilestoneCriterion is satisfied when the accumulated numeric metric
// (e.g. total breathwork minutes) reaches Target.
type MilestoneCriterion struct {
	Target int
	Metric string
}

// SpecialCriterion is satisfied by an explicit flag raised outside the
// engine (e.g. "joined during beta").
type SpecialCriterion struct {
	Metric string
}

func (StreakCriterion) isCriterion()    {}
func (CountCriterion) isCriterion()     {}
func (MilestoneCriterion) isCriterion() {}
func (SpecialCriterion) isCriterion()   {}

const (
	criterionTypeStreak    = "streak"
	criterionTypeCount     = "count"
	criterionTypeMilestone = "milestone"
	criterionTypeSpecial   = "special"
)

type criterionJSON struct {
	Type   string `json:"type"`
	Target int    `json:"target,omitempty"`
	Metric string `json:"metric,omitempty"`
}

func unmarshalCriterion(data []byte) (Criterion, error) {
	var cj criterionJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, err
	}

	switch cj.Type {
	case criterionTypeStreak:
		if cj.Target <= 0 {
			return nil, fmt.Errorf("streak criterion needs a positive target")
		}
		return StreakCriterion{Target: cj.Target, Metric: cj.Metric}, nil
	case criterionTypeCount:
		if cj.Target <= 0 {
			return nil, fmt.Errorf("count criterion needs a positive target")
		}
		if cj.Metric == "" {
			return nil, fmt.Errorf("count criterion needs a metric")
		}
		return CountCriterion{Target: cj.Target, Metric: cj.Metric}, nil
	case criterionTypeMilestone:
		if cj.Target <= 0 {
			return nil, fmt.Errorf("milestone criterion needs a positive target")
		}
		if cj.Metric == "" {
			return nil, fmt.Errorf("milestone criterion needs a metric")
		}
		return MilestoneCriterion{Target: cj.Target, Metric: cj.Metric}, nil
	case criterionTypeSpecial:
		if cj.Metric == "" {
			return nil, fmt.Errorf("special criterion needs a metric")
		}
		return SpecialCriterion{Metric: cj.Metric}, nil
	default:
		return nil, fmt.Errorf("unknown criterion type %q", cj.Type)
	}
}

func marshalCriterion(c Criterion) ([]byte, error) {
	var cj criterionJSON
	switch crit := c.(type) {
	case StreakCriterion:
		cj = criterionJSON{Type: criterionTypeStreak, Target: crit.Target, Metric: crit.Metric}
	case CountCriterion:
		cj = criterionJSON{Type: criterionTypeCount, Target: crit.Target, Metric: crit.Metric}
	case MilestoneCriterion:
		cj = criterionJSON{Type: criterionTypeMilestone, Target: crit.Target, Metric: crit.Metric}
	case SpecialCriterion:
		cj = criterionJSON{Type: criterionTypeSpecial, Metric: crit.Metric}
	default:
		return nil, fmt.Errorf("unknown criterion variant %T", c)
	}
	return json.Marshal(cj)
}
