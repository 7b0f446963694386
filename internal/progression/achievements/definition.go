package achievements

import (
	"encoding/json"
	"fmt"
)

// Tier can be one of:
//   - bronze
//   - silver
//   - gold
//   - platinum
//   - diamond
//
// The tier is a cosmetic rarity label; it plays no part in evaluation.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

func (t Tier) String() string {
	return string(t)
}

func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum, TierDiamond:
		return true
	default:
		return false
	}
}

// Definition is one achievement from the reference catalog, immutable at
// runtime. Secret definitions evaluate exactly like the rest; being secret
// only hides the title and description until the unlock.
type Definition struct {
	ID          string
	Title       string
	Description string
	Category    string
	Points      int
	Tier        Tier
	Criterion   Criterion
	Secret      bool
	Hint        string
}

type definitionJSON struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Points      int             `json:"points"`
	Tier        Tier            `json:"tier"`
	Criterion   json.RawMessage `json:"criterion"`
	Secret      bool            `json:"secret,omitempty"`
	Hint        string          `json:"hint,omitempty"`
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	var dj definitionJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return err
	}

	criterion, err := unmarshalCriterion(dj.Criterion)
	if err != nil {
		return fmt.Errorf("achievement %q: %w", dj.ID, err)
	}

	*d = Definition{
		ID:          dj.ID,
		Title:       dj.Title,
		Description: dj.Description,
		Category:    dj.Category,
		Points:      dj.Points,
		Tier:        dj.Tier,
		Criterion:   criterion,
		Secret:      dj.Secret,
		Hint:        dj.Hint,
	}
	return d.Validate()
}

func (d Definition) MarshalJSON() ([]byte, error) {
	criterion, err := marshalCriterion(d.Criterion)
	if err != nil {
		return nil, err
	}
	return json.Marshal(definitionJSON{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Points:      d.Points,
		Tier:        d.Tier,
		Criterion:   criterion,
		Secret:      d.Secret,
		Hint:        d.Hint,
	})
}

func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("achievement without id")
	}
	if d.Title == "" {
		return fmt.Errorf("achievement %q without title", d.ID)
	}
	if d.Points < 0 {
		return fmt.Errorf("achievement %q has negative points", d.ID)
	}
	if !d.Tier.IsValid() {
		return fmt.Errorf("achievement %q has unknown tier %q", d.ID, d.Tier)
	}
	if d.Criterion == nil {
		return fmt.Errorf("achievement %q without criterion", d.ID)
	}
	return nil
}
