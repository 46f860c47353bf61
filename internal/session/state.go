package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// MatchState is the shared record the verification loop writes and the UI
// reads. Writes carry the epoch handed out by Reset; a write from an older
// session, or after the session ended, is discarded. Once verified, the
// state is latched until the next Reset.
type MatchState struct {
	mu    sync.Mutex
	epoch uint64
	open  bool
	state domain.MatchState

	subs    map[int]chan domain.MatchState
	nextSub int
}

func NewMatchState() *MatchState {
	return &MatchState{subs: make(map[int]chan domain.MatchState)}
}

// Reset starts a new session: unverified, no identity, active.
func (m *MatchState) Reset(sessionID uuid.UUID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.open = true
	m.state = domain.MatchState{SessionID: sessionID, Active: true}
	m.publishLocked()
	return m.epoch
}

// Commit records the outcome of one verification attempt. It reports
// whether the write was applied.
func (m *MatchState) Commit(epoch uint64, verified bool, label string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || !m.open || m.state.Verified {
		return false
	}

	m.state.Verified = verified
	m.state.MatchedIdentity = ""
	if verified {
		m.state.MatchedIdentity = label
	}
	m.state.LastCheckedAt = at
	m.publishLocked()
	return true
}

// Fail records the error code that ends the session. Like Commit, it is
// ignored for a stale epoch or a latched match.
func (m *MatchState) Fail(epoch uint64, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || !m.open || m.state.Verified {
		return false
	}
	m.state.Error = code
	m.publishLocked()
	return true
}

// End marks the session inactive. The last outcome stays readable.
func (m *MatchState) End(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || !m.open {
		return
	}
	m.open = false
	m.state.Active = false
	m.publishLocked()
}

// Snapshot returns a copy of the current state.
func (m *MatchState) Snapshot() domain.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel receiving every state change. Slow
// subscribers miss updates rather than block writers.
func (m *MatchState) Subscribe(buffer int) (<-chan domain.MatchState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buffer < 1 {
		buffer = 1
	}
	id := m.nextSub
	m.nextSub++
	ch := make(chan domain.MatchState, buffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *MatchState) publishLocked() {
	for _, ch := range m.subs {
		select {
		case ch <- m.state:
		default:
		}
	}
}
