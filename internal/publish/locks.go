package publish

import "github.com/sasha-s/go-deadlock"

// Locks tracks, per identity, an in-flight publish and an optional user
// lock. Either one blocks publishing.
type Locks struct {
	mu       deadlock.Mutex
	inFlight map[string]bool
	user     map[string]bool
}

// NewLocks returns an empty registry.
func NewLocks() *Locks {
	return &Locks{inFlight: map[string]bool{}, user: map[string]bool{}}
}

// TryLock claims the publish slot of id. It fails while a publish is in
// flight or the user locked the identity.
func (l *Locks) TryLock(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[id] || l.user[id] {
		return false
	}
	l.inFlight[id] = true
	return true
}

// Unlock releases the publish slot of id.
func (l *Locks) Unlock(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, id)
}

// Publishing reports whether a publish of id is in flight.
func (l *Locks) Publishing(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[id]
}

// LockUser blocks publishing of id until UnlockUser.
func (l *Locks) LockUser(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.user[id] = true
}

// UnlockUser lifts the user lock of id.
func (l *Locks) UnlockUser(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.user, id)
}

// UserLocked reports whether the user locked id.
func (l *Locks) UserLocked(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.user[id]
}

// IsLocked reports whether either lock is held for id.
func (l *Locks) IsLocked(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[id] || l.user[id]
}
