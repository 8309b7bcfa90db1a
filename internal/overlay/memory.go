package overlay

import (
	"context"

	"github.com/sasha-s/go-deadlock"
)

// Memory is an in-process Overlay. Insert keys can be paired with request
// keys; an unpaired insert key publishes under itself.
type Memory struct {
	mu       deadlock.Mutex
	docs     map[string]map[int64][]byte
	latest   map[string]int64
	pairs    map[string]string
	subs     map[string]func(int64)
	failures map[string]error
	down     bool
	fetches  map[string]int
}

// NewMemory returns an empty in-memory overlay.
func NewMemory() *Memory {
	return &Memory{
		docs:     map[string]map[int64][]byte{},
		latest:   map[string]int64{},
		pairs:    map[string]string{},
		subs:     map[string]func(int64){},
		failures: map[string]error{},
		fetches:  map[string]int{},
	}
}

// Pair maps an insert key base to the request key base it publishes to.
func (m *Memory) Pair(insertBase, requestBase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[insertBase] = requestBase
}

// Put stores doc under key directly, as if a remote peer had published it.
func (m *Memory) Put(key Key, doc []byte) {
	m.mu.Lock()
	fn := m.store(key, doc)
	m.mu.Unlock()
	if fn != nil {
		fn(key.Edition)
	}
}

// SetDown makes every call fail with ErrUnavailable while down is true.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// FailNext makes the next call touching base return err.
func (m *Memory) FailNext(base string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[base] = err
}

// Fetches returns how many Fetch calls reached base.
func (m *Memory) Fetches(base string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[base]
}

// Fetch implements Overlay. Requesting a superseded or skipped edition
// redirects to the latest one.
func (m *Memory) Fetch(_ context.Context, key Key) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[key.Base]++
	if err := m.fail(key.Base); err != nil {
		return nil, err
	}
	latest, ok := m.latest[key.Base]
	if !ok || key.Edition > latest {
		return nil, ErrNotFound
	}
	if key.Edition < latest {
		return nil, &RedirectError{Key: Key{Base: key.Base, Edition: latest}}
	}
	return append([]byte(nil), m.docs[key.Base][latest]...), nil
}

// LatestEdition implements Overlay.
func (m *Memory) LatestEdition(_ context.Context, base string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(base); err != nil {
		return 0, err
	}
	latest, ok := m.latest[base]
	if !ok {
		return 0, ErrNotFound
	}
	return latest, nil
}

// Publish implements Overlay. The stored edition is the larger of the
// requested edition and the successor of the latest one.
func (m *Memory) Publish(_ context.Context, insert Key, doc []byte) (Key, error) {
	m.mu.Lock()
	if err := m.fail(insert.Base); err != nil {
		m.mu.Unlock()
		return Key{}, err
	}
	base := insert.Base
	if req, ok := m.pairs[base]; ok {
		base = req
	}
	key := Key{Base: base, Edition: insert.Edition}
	if latest, ok := m.latest[base]; ok && key.Edition <= latest {
		key.Edition = latest + 1
	}
	fn := m.store(key, append([]byte(nil), doc...))
	m.mu.Unlock()
	if fn != nil {
		fn(key.Edition)
	}
	return key, nil
}

// Subscribe implements Overlay.
func (m *Memory) Subscribe(base string, fn func(int64)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnavailable
	}
	m.subs[base] = fn
	return nil
}

// Unsubscribe implements Overlay.
func (m *Memory) Unsubscribe(base string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, base)
}

// Subscribed reports whether base has a subscription.
func (m *Memory) Subscribed(base string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[base]
	return ok
}

// store must be called with mu held. It returns the subscriber to notify
// once the lock is released.
func (m *Memory) store(key Key, doc []byte) func(int64) {
	if m.docs[key.Base] == nil {
		m.docs[key.Base] = map[int64][]byte{}
	}
	m.docs[key.Base][key.Edition] = doc
	if latest, ok := m.latest[key.Base]; !ok || key.Edition > latest {
		m.latest[key.Base] = key.Edition
	}
	return m.subs[key.Base]
}

func (m *Memory) fail(base string) error {
	if m.down {
		return ErrUnavailable
	}
	if err, ok := m.failures[base]; ok {
		delete(m.failures, base)
		return err
	}
	return nil
}
