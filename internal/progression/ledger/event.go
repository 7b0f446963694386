package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActivityKind can be one of:
//   - protocol-completed
//   - supplement-taken
//   - video-watched
//   - special
type ActivityKind string

const (
	KindProtocolCompleted ActivityKind = "protocol-completed"
	KindSupplementTaken   ActivityKind = "supplement-taken"
	KindVideoWatched      ActivityKind = "video-watched"
	KindSpecial           ActivityKind = "special"
)

func (k ActivityKind) String() string {
	return string(k)
}

func (k ActivityKind) IsValid() bool {
	switch k {
	case KindProtocolCompleted,
		KindSupplementTaken,
		KindVideoWatched,
		KindSpecial:
		return true
	default:
		return false
	}
}

// ActivityEvent is an append-only ledger entry, immutable once recorded.
// The (UserID, Kind, Category, DedupeToken, Day) tuple is unique, which is
// what stops duplicate UI taps and retried calls from double-counting.
type ActivityEvent struct {
	ID          uuid.UUID         `json:"id"`
	UserID      string            `json:"userId"`
	Kind        ActivityKind      `json:"kind"`
	Category    string            `json:"category"`
	DedupeToken string            `json:"dedupeToken"`
	Day         time.Time         `json:"day"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

var (
	ErrEmptyUserID   = errors.New("user id is empty")
	ErrEmptyCategory = errors.New("category is empty")
	ErrInvalidKind   = errors.New("invalid activity kind")
)

func NewActivityEvent(
	userID string,
	kind ActivityKind,
	category string,
	dedupeToken string,
	timestamp time.Time,
	loc *time.Location,
	metadata map[string]string,
) (ActivityEvent, error) {
	event := ActivityEvent{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Category:    category,
		DedupeToken: dedupeToken,
		Day:         DayOf(timestamp, loc),
		Timestamp:   timestamp,
		Metadata:    metadata,
	}
	if err := event.Validate(); err != nil {
		return ActivityEvent{}, err
	}
	return event, nil
}

func (e ActivityEvent) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if !e.Kind.IsValid() {
		return ErrInvalidKind
	}
	if e.Category == "" {
		return ErrEmptyCategory
	}
	return nil
}

// DayOf buckets an instant into its calendar date in the given location.
// The result is midnight UTC of that date, so dates compare with Equal
// regardless of the location they were bucketed in.
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
