package content

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// lane is the synchronization state of one identity. busy serializes
// attempts; mu guards the fields below it.
type lane struct {
	id      string
	base    string
	trigger chan struct{}
	cancel  context.CancelFunc

	busy deadlock.Mutex

	mu         deadlock.Mutex
	edition    int64
	known      bool
	hint       int64
	done       int64 // highest edition parsed, -1 before the first
	state      types.SyncState
	lastSynced *time.Time
	staleSince *time.Time
}

func newLane(id, base string) *lane {
	return &lane{
		id:      id,
		base:    base,
		trigger: make(chan struct{}, 1),
		done:    -1,
		hint:    -1,
		state:   types.StateIdle,
	}
}

func (l *lane) wake() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// announce records an edition reported by the overlay subscription and
// wakes the lane.
func (l *lane) announce(edition int64) {
	l.mu.Lock()
	if edition > l.hint {
		l.hint = edition
	}
	l.mu.Unlock()
	l.wake()
}

// nextEdition returns the edition to fetch first and whether it is known.
func (l *lane) nextEdition() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hint > l.edition || (!l.known && l.hint >= 0) {
		return l.hint, true
	}
	return l.edition, l.known
}

func (l *lane) raiseEdition(edition int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.known || edition > l.edition {
		l.edition = edition
	}
	l.known = true
}

// forgetEdition makes the next attempt look the newest edition up again.
// The recorded edition itself never decreases.
func (l *lane) forgetEdition() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hint = -1
	if l.done < 0 {
		l.known = false
	}
}

func (l *lane) needsParse(edition int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return edition > l.done
}

func (l *lane) setDone(edition int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if edition > l.done {
		l.done = edition
	}
}

func (l *lane) setState(state types.SyncState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
}

func (l *lane) markSynced(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSynced = &at
	l.staleSince = nil
}

// markStale keeps the time of the first failure after the last success.
func (l *lane) markStale(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.staleSince == nil {
		l.staleSince = &at
	}
}

func (l *lane) status() types.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := types.Status{
		IdentityID: l.id,
		State:      l.state,
		StateName:  l.state.String(),
		Edition:    l.edition,
	}
	if l.lastSynced != nil {
		t := *l.lastSynced
		st.LastSynced = &t
	}
	if l.staleSince != nil {
		t := *l.staleSince
		st.StaleSince = &t
	}
	return st
}
