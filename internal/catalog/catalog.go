package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biopeak/backend/internal/progression/achievements"
	"github.com/biopeak/backend/internal/progression/ledger"
	"github.com/biopeak/backend/internal/progression/score"

	log "github.com/sirupsen/logrus"
)

// Protocol is one guided routine from the content catalog.
type Protocol struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"durationMinutes"`
	Difficulty      string   `json:"difficulty"`
	Benefits        []string `json:"benefits,omitempty"`
}

type Supplement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Dosage      string `json:"dosage"`
	Timing      string `json:"timing"`
	Warning     string `json:"warning,omitempty"`
}

type Equipment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	PriceRange  string `json:"priceRange"`
}

type Video struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes"`
	URL             string `json:"url"`
}

// Catalog is the immutable reference data, loaded once at process start.
// Malformed data is a startup fatal, never a per-request error.
type Catalog struct {
	Protocols    []Protocol
	Supplements  []Supplement
	Equipment    []Equipment
	Videos       []Video
	Levels       []score.Level
	Achievements []achievements.Definition

	// ActivityPoints is the base award per recorded activity kind
	ActivityPoints map[ledger.ActivityKind]int
}

// Load reads and validates the whole catalog from JSON files in dir.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{}

	if err := loadJSONFile(dir, "protocols.json", &c.Protocols); err != nil {
		return nil, err
	}
	if err := loadJSONFile(dir, "supplements.json", &c.Supplements); err != nil {
		return nil, err
	}
	if err := loadJSONFile(dir, "equipment.json", &c.Equipment); err != nil {
		return nil, err
	}
	if err := loadJSONFile(dir, "videos.json", &c.Videos); err != nil {
		return nil, err
	}
	if err := loadJSONFile(dir, "levels.json", &c.Levels); err != nil {
		return nil, err
	}
	if err := loadJSONFile(dir, "achievements.json", &c.Achievements); err != nil {
		return nil, err
	}

	pointsByKind := map[string]int{}
	if err := loadJSONFile(dir, "activity_points.json", &pointsByKind); err != nil {
		return nil, err
	}
	c.ActivityPoints = make(map[ledger.ActivityKind]int, len(pointsByKind))
	for kind, points := range pointsByKind {
		c.ActivityPoints[ledger.ActivityKind(kind)] = points
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	log.Printf(
		"catalog loaded: %d protocols, %d supplements, %d equipment, %d videos, %d levels, %d achievements",
		len(c.Protocols), len(c.Supplements), len(c.Equipment), len(c.Videos),
		len(c.Levels), len(c.Achievements),
	)

	return c, nil
}

func loadJSONFile(dir, name string, dst any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) Validate() error {
	if err := uniqueIDs("protocol", c.Protocols, func(p Protocol) string { return p.ID }); err != nil {
		return err
	}
	if err := uniqueIDs("supplement", c.Supplements, func(s Supplement) string { return s.ID }); err != nil {
		return err
	}
	if err := uniqueIDs("equipment", c.Equipment, func(e Equipment) string { return e.ID }); err != nil {
		return err
	}
	if err := uniqueIDs("video", c.Videos, func(v Video) string { return v.ID }); err != nil {
		return err
	}

	if err := score.ValidateLevels(c.Levels); err != nil {
		return err
	}
	if err := score.ValidatePoints(c.ActivityPoints); err != nil {
		return err
	}

	// achievement definitions and criterion types were already checked
	// during unmarshal; the evaluator re-checks ID uniqueness
	if _, err := achievements.NewEvaluator(c.Achievements); err != nil {
		return err
	}

	return nil
}

func uniqueIDs[T any](what string, items []T, id func(T) string) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		itemID := id(item)
		if itemID == "" {
			return fmt.Errorf("%s without id", what)
		}
		if _, ok := seen[itemID]; ok {
			return fmt.Errorf("duplicate %s id %q", what, itemID)
		}
		seen[itemID] = struct{}{}
	}
	return nil
}
