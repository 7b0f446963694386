package progression

import (
	"context"
	"sync"

	"github.com/biopeak/backend/internal/progression/ledger"
)

type dedupeKey struct {
	userID      string
	kind        ledger.ActivityKind
	category    string
	dedupeToken string
	day         string
}

// RepoMock is an in-memory progressRepo with the same dedupe and
// exactly-once unlock behavior as the SQL repo; used by service tests.
type RepoMock struct {
	mu      sync.Mutex
	events  map[string][]ledger.ActivityEvent
	unlocks map[string][]Unlock
	seen    map[dedupeKey]struct{}

	SaveProgressErr error
}

func NewRepoMock() *RepoMock {
	return &RepoMock{
		events:  make(map[string][]ledger.ActivityEvent),
		unlocks: make(map[string][]Unlock),
		seen:    make(map[dedupeKey]struct{}),
	}
}

func (m *RepoMock) ListEventsForUser(_ context.Context, userID string) ([]ledger.ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]ledger.ActivityEvent, len(m.events[userID]))
	copy(events, m.events[userID])
	return events, nil
}

func (m *RepoMock) ListUnlocks(_ context.Context, userID string) ([]Unlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	unlocks := make([]Unlock, len(m.unlocks[userID]))
	copy(unlocks, m.unlocks[userID])
	return unlocks, nil
}

func (m *RepoMock) SaveProgress(_ context.Context, params SaveProgressParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveProgressErr != nil {
		return m.SaveProgressErr
	}

	event := params.Event
	key := dedupeKey{
		userID:      event.UserID,
		kind:        event.Kind,
		category:    event.Category,
		dedupeToken: event.DedupeToken,
		day:         event.Day.Format("2006-01-02"),
	}
	if _, ok := m.seen[key]; ok {
		return ledger.ErrDuplicateEvent
	}
	m.seen[key] = struct{}{}

	m.events[event.UserID] = append(m.events[event.UserID], event)
	for _, unlock := range params.NewUnlocks {
		alreadyUnlocked := false
		for _, existing := range m.unlocks[unlock.UserID] {
			if existing.AchievementID == unlock.AchievementID {
				alreadyUnlocked = true
				break
			}
		}
		if !alreadyUnlocked {
			m.unlocks[unlock.UserID] = append(m.unlocks[unlock.UserID], unlock)
		}
	}

	return nil
}
