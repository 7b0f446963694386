package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/biopeak/backend/internal/telemetry/tracing"
	"github.com/biopeak/backend/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// ErrDuplicateEvent marks an insert that hit the dedupe uniqueness
// constraint; callers treat it as a successful no-op, not a failure.
var ErrDuplicateEvent = errors.New("duplicate activity event")

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same insert
// can run standalone or inside a larger transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, event ActivityEvent) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.ledger.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", event.UserID))
	span.SetAttributes(attribute.String("event.kind", event.Kind.String()))

	return Insert(ctx, r.db, event)
}

// Insert appends one event to the ledger; a hit on the dedupe uniqueness
// constraint comes back as ErrDuplicateEvent.
func Insert(ctx context.Context, q Querier, event ActivityEvent) error {
	metadataJson, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = q.Exec(
		ctx,
		`INSERT INTO activity_event
				(id, user_id, kind, category, dedupe_token, day, timestamp, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
		event.ID, event.UserID, event.Kind, event.Category,
		event.DedupeToken, event.Day, event.Timestamp, metadataJson,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateEvent
		}
		return err
	}

	return nil
}

// ListForUser returns the user's whole timeline, ordered by timestamp
// ascending. Derived facts (streaks, counts, milestone sums) are computed
// in memory from this list so a recompute is always auditable.
func (r *Repo) ListForUser(ctx context.Context, userID string) (_ []ActivityEvent, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.ledger.listforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, kind, category, dedupe_token, day, timestamp, metadata
			FROM activity_event
			WHERE user_id = $1
			ORDER BY timestamp ASC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return rows2events(rows)
}

func rows2events(rows pgx.Rows) ([]ActivityEvent, error) {
	events := make([]ActivityEvent, 0)
	for rows.Next() {
		var e ActivityEvent
		var day, timestamp time.Time
		var metadataBytes []byte
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Kind, &e.Category,
			&e.DedupeToken, &day, &timestamp, &metadataBytes,
		); err != nil {
			return nil, err
		}
		e.Day = day.UTC()
		e.Timestamp = timestamp

		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for event %s: %w", e.ID, err)
			}
		}

		events = append(events, e)
	}

	return events, nil
}
