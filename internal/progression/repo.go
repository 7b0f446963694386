package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/biopeak/backend/internal/progression/ledger"
	"github.com/biopeak/backend/internal/progression/score"
	"github.com/biopeak/backend/internal/progression/streak"
	"github.com/biopeak/backend/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrNoState = errors.New("no progression state for user")

type Repo struct {
	db     *pgxpool.Pool
	events *ledger.Repo
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:     db,
		events: ledger.NewRepo(db),
	}
}

func (r *Repo) ListEventsForUser(ctx context.Context, userID string) ([]ledger.ActivityEvent, error) {
	return r.events.ListForUser(ctx, userID)
}

func (r *Repo) ListUnlocks(ctx context.Context, userID string) (_ []Unlock, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.listunlocks")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT user_id, achievement_id, unlocked_at
			FROM achievement_unlock
			WHERE user_id = $1
			ORDER BY achievement_id ASC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	unlocks := make([]Unlock, 0)
	for rows.Next() {
		var u Unlock
		if err := rows.Scan(&u.UserID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, u)
	}

	return unlocks, nil
}

type SaveProgressParams struct {
	Event       ledger.ActivityEvent
	StreakState streak.State
	ScoreState  score.State
	NewUnlocks  []Unlock
}

// SaveProgress commits one recorded activity in a single transaction: the
// ledger append, both derived states, and any fresh unlocks either all
// persist or none do. A dedupe hit on the event insert rolls everything
// back and surfaces as ledger.ErrDuplicateEvent.
func (r *Repo) SaveProgress(ctx context.Context, params SaveProgressParams) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.saveprogress")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", params.Event.UserID))
	span.SetAttributes(attribute.String("event.kind", params.Event.Kind.String()))
	span.SetAttributes(attribute.Int("unlocks.new", len(params.NewUnlocks)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if err = ledger.Insert(ctx, tx, params.Event); err != nil {
		return err
	}

	if _, err = tx.Exec(
		ctx,
		`INSERT INTO streak_state (user_id, current_streak, longest_streak, last_active_date)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE SET
				current_streak = EXCLUDED.current_streak,
				longest_streak = EXCLUDED.longest_streak,
				last_active_date = EXCLUDED.last_active_date;`,
		params.StreakState.UserID, params.StreakState.CurrentStreak,
		params.StreakState.LongestStreak, params.StreakState.LastActiveDate,
	); err != nil {
		return fmt.Errorf("upsert streak state: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`INSERT INTO score_state (user_id, total_points, level)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET
				total_points = EXCLUDED.total_points,
				level = EXCLUDED.level;`,
		params.ScoreState.UserID, params.ScoreState.TotalPoints, params.ScoreState.Level,
	); err != nil {
		return fmt.Errorf("upsert score state: %w", err)
	}

	for _, unlock := range params.NewUnlocks {
		// ON CONFLICT DO NOTHING keeps the unlock exactly-once even if two
		// evaluations race past the in-memory unlocked set
		if _, err = tx.Exec(
			ctx,
			`INSERT INTO achievement_unlock (user_id, achievement_id, unlocked_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, achievement_id) DO NOTHING;`,
			unlock.UserID, unlock.AchievementID, unlock.UnlockedAt,
		); err != nil {
			return fmt.Errorf("insert unlock %s: %w", unlock.AchievementID, err)
		}
	}

	return nil
}

func (r *Repo) GetStreakState(ctx context.Context, userID string) (_ *streak.State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.getstreakstate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	state := &streak.State{}
	err = r.db.
		QueryRow(ctx, `
			SELECT user_id, current_streak, longest_streak, last_active_date
			FROM streak_state
			WHERE user_id = $1
		`, userID).
		Scan(&state.UserID, &state.CurrentStreak, &state.LongestStreak, &state.LastActiveDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *Repo) GetScoreState(ctx context.Context, userID string) (_ *score.State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.getscorestate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	state := &score.State{}
	err = r.db.
		QueryRow(ctx, `
			SELECT user_id, total_points, level
			FROM score_state
			WHERE user_id = $1
		`, userID).
		Scan(&state.UserID, &state.TotalPoints, &state.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}
