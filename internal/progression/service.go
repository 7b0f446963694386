package progression

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/biopeak/backend/internal/progression/achievements"
	"github.com/biopeak/backend/internal/progression/ledger"
	"github.com/biopeak/backend/internal/progression/score"
	"github.com/biopeak/backend/internal/progression/streak"
	"github.com/biopeak/backend/internal/telemetry/metrics"
	"github.com/biopeak/backend/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrUnknownUser     = errors.New("unknown user")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

type progressRepo interface {
	ListEventsForUser(ctx context.Context, userID string) ([]ledger.ActivityEvent, error)
	ListUnlocks(ctx context.Context, userID string) ([]Unlock, error)
	SaveProgress(ctx context.Context, params SaveProgressParams) error
}

// Service is the progression facade: records activities and serves state
// snapshots. All per-user writes run under a per-user mutex so concurrent
// records cannot double-award points or compute inconsistent streaks.
type Service struct {
	repo          progressRepo
	evaluator     *achievements.Evaluator
	levels        []score.Level
	pointsPerKind map[ledger.ActivityKind]int
	metrics       *metrics.Manager
	userLocks     *userLocks

	// injectable for deterministic tests
	NowFunc func() time.Time
}

func NewService(
	repo progressRepo,
	evaluator *achievements.Evaluator,
	levels []score.Level,
	pointsPerKind map[ledger.ActivityKind]int,
	metricsManager *metrics.Manager,
) (*Service, error) {
	if err := score.ValidateLevels(levels); err != nil {
		return nil, fmt.Errorf("level table: %w", err)
	}
	if err := score.ValidatePoints(pointsPerKind); err != nil {
		return nil, fmt.Errorf("points table: %w", err)
	}
	return &Service{
		repo:          repo,
		evaluator:     evaluator,
		levels:        levels,
		pointsPerKind: pointsPerKind,
		metrics:       metricsManager,
		userLocks:     newUserLocks(),
		NowFunc:       time.Now,
	}, nil
}

type RecordActivityParams struct {
	UserID      string            `json:"userId"`
	Kind        ledger.ActivityKind `json:"kind"`
	Category    string            `json:"category"`
	DedupeToken string            `json:"dedupeToken"`
	// Timezone is the IANA name of the user's local day boundary;
	// empty means UTC
	Timezone string            `json:"tz,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RecordActivity appends one event to the ledger, recomputes the derived
// state including the new event, and commits everything atomically. A
// duplicate within the dedupe window returns the prior snapshot unchanged,
// with no error.
func (s *Service) RecordActivity(ctx context.Context, params RecordActivityParams) (_ *Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progression.recordactivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", params.UserID))
	span.SetAttributes(attribute.String("event.kind", params.Kind.String()))

	loc, err := locationFor(params.Timezone)
	if err != nil {
		return nil, err
	}

	now := s.NowFunc()
	event, err := ledger.NewActivityEvent(
		params.UserID, params.Kind, params.Category, params.DedupeToken,
		now, loc, params.Metadata,
	)
	if err != nil {
		return nil, err
	}

	unlock := s.userLocks.lock(params.UserID)
	defer unlock()

	events, err := s.repo.ListEventsForUser(ctx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	priorUnlocks, err := s.repo.ListUnlocks(ctx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}

	unlockedSet := make(map[string]bool, len(priorUnlocks))
	for _, u := range priorUnlocks {
		unlockedSet[u.AchievementID] = true
	}

	prospective := make([]ledger.ActivityEvent, 0, len(events)+1)
	prospective = append(prospective, events...)
	prospective = append(prospective, event)

	facts := s.buildFacts(params.UserID, prospective, now, loc)
	newly := s.evaluator.Evaluate(facts, unlockedSet)

	achievementPoints := s.achievementPoints(priorUnlocks, newly)
	total := score.Sum(prospective, s.pointsPerKind, achievementPoints)

	newUnlocks := make([]Unlock, 0, len(newly))
	for _, def := range newly {
		newUnlocks = append(newUnlocks, Unlock{
			UserID:        params.UserID,
			AchievementID: def.ID,
			UnlockedAt:    now,
		})
	}

	saveErr := s.repo.SaveProgress(ctx, SaveProgressParams{
		Event:       event,
		StreakState: facts.Streak,
		ScoreState: score.State{
			UserID:      params.UserID,
			TotalPoints: total,
			Level:       score.LevelFor(s.levels, total),
		},
		NewUnlocks: newUnlocks,
	})
	if errors.Is(saveErr, ledger.ErrDuplicateEvent) {
		// idempotent from the caller's perspective: same snapshot, no error
		log.Debugf("duplicate activity for user %s (%s/%s), returning prior snapshot",
			params.UserID, params.Kind, params.Category)
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		s.metrics.CounterDuplicateActivities.Inc()
		snapshot := s.snapshotOf(params.UserID, events, priorUnlocks, now, loc)
		snapshot.Duplicate = true
		return snapshot, nil
	}
	if saveErr != nil {
		return nil, fmt.Errorf("save progress: %w", saveErr)
	}

	s.metrics.CounterActivitiesRecorded.WithLabelValues(params.Kind.String()).Inc()
	if len(newly) > 0 {
		s.metrics.CounterAchievementsUnlocked.Add(float64(len(newly)))
	}

	snapshot := s.snapshotOf(params.UserID, prospective, append(priorUnlocks, newUnlocks...), now, loc)
	for _, def := range newly {
		snapshot.NewlyUnlocked = append(snapshot.NewlyUnlocked, summaryOf(def))
	}
	return snapshot, nil
}

// GetSnapshot is read-only and side-effect free. A user with no recorded
// history at all is reported as unknown.
func (s *Service) GetSnapshot(ctx context.Context, userID, timezone string) (_ *Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progression.getsnapshot")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	if userID == "" {
		return nil, ledger.ErrEmptyUserID
	}
	loc, err := locationFor(timezone)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListEventsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	unlocks, err := s.repo.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}

	if len(events) == 0 && len(unlocks) == 0 {
		return nil, ErrUnknownUser
	}

	return s.snapshotOf(userID, events, unlocks, s.NowFunc(), loc), nil
}

// AchievementStatus is one catalog entry with the user's unlock state.
// Secret achievements stay masked until unlocked.
type AchievementStatus struct {
	AchievementSummary
	Secret     bool       `json:"secret"`
	Hint       string     `json:"hint,omitempty"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// ListAchievements returns every achievement with the user's unlock status,
// in catalog (ascending ID) order. Masking happens here, at presentation;
// evaluation never looks at the secret flag.
func (s *Service) ListAchievements(ctx context.Context, userID string) (_ []AchievementStatus, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progression.listachievements")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	if userID == "" {
		return nil, ledger.ErrEmptyUserID
	}

	unlocks, err := s.repo.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}

	defs := s.evaluator.Definitions()
	statuses := make([]AchievementStatus, 0, len(defs))
	for _, def := range defs {
		status := AchievementStatus{
			AchievementSummary: summaryOf(def),
			Secret:             def.Secret,
			Hint:               def.Hint,
		}
		if at, ok := unlockedAt[def.ID]; ok {
			status.Unlocked = true
			at := at
			status.UnlockedAt = &at
		} else if def.Secret {
			status.Title = "Secret achievement"
			status.Description = ""
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (s *Service) achievementPoints(unlocks []Unlock, newly []achievements.Definition) int {
	points := 0
	for _, u := range unlocks {
		if def, ok := s.evaluator.Definition(u.AchievementID); ok {
			points += def.Points
		}
	}
	for _, def := range newly {
		points += def.Points
	}
	return points
}

func (s *Service) buildFacts(userID string, events []ledger.ActivityEvent, asOf time.Time, loc *time.Location) achievements.Facts {
	facts := achievements.Facts{
		Streak:        streak.ComputeFromEvents(userID, events, asOf, loc),
		MetricStreaks: make(map[string]int),
		Counts:        make(map[string]int),
		MilestoneSums: make(map[string]int),
		SpecialFlags:  make(map[string]bool),
	}

	categoryTimestamps := make(map[string][]time.Time)
	for _, e := range events {
		facts.Counts[e.Category]++
		facts.Counts[e.Kind.String()]++

		if e.Kind == streak.EligibleKind {
			categoryTimestamps[e.Category] = append(categoryTimestamps[e.Category], e.Timestamp)
		}
		if e.Kind == ledger.KindSpecial {
			facts.SpecialFlags[e.Category] = true
		}

		for key, value := range e.Metadata {
			if amount, err := strconv.Atoi(value); err == nil {
				facts.MilestoneSums[key] += amount
			}
		}
	}

	for category, timestamps := range categoryTimestamps {
		facts.MetricStreaks[category] = streak.Compute(userID, timestamps, asOf, loc).CurrentStreak
	}

	return facts
}

func (s *Service) snapshotOf(
	userID string,
	events []ledger.ActivityEvent,
	unlocks []Unlock,
	asOf time.Time,
	loc *time.Location,
) *Snapshot {
	streakState := streak.ComputeFromEvents(userID, events, asOf, loc)

	unlockedIDs := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		unlockedIDs = append(unlockedIDs, u.AchievementID)
	}
	sort.Strings(unlockedIDs)

	total := score.Sum(events, s.pointsPerKind, s.achievementPoints(unlocks, nil))

	return &Snapshot{
		UserID:                 userID,
		CurrentStreak:          streakState.CurrentStreak,
		LongestStreak:          streakState.LongestStreak,
		TotalPoints:            total,
		Level:                  score.LevelFor(s.levels, total),
		UnlockedAchievementIDs: unlockedIDs,
		NewlyUnlocked:          make([]AchievementSummary, 0),
	}
}

func locationFor(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, timezone)
	}
	return loc, nil
}

type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// lock acquires the per-user mutex and returns its unlock func.
func (ul *userLocks) lock(userID string) func() {
	ul.mu.Lock()
	userLock, ok := ul.locks[userID]
	if !ok {
		userLock = &sync.Mutex{}
		ul.locks[userID] = userLock
	}
	ul.mu.Unlock()

	userLock.Lock()
	return userLock.Unlock
}
