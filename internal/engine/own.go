package engine

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/content"
	"github.com/mesh-intelligence/sone/internal/document"
	"github.com/mesh-intelligence/sone/internal/fingerprint"
	"github.com/mesh-intelligence/sone/internal/publish"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// ownState is the local side of an own identity. graph always points to a
// complete graph that is never mutated; edits swap in a modified clone.
type ownState struct {
	identity *types.OwnIdentity
	graph    atomic.Pointer[types.Graph]
	detector *publish.ModificationDetector

	edit     deadlock.Mutex // serializes edits
	mu       deadlock.Mutex // guards the fields below
	edition  int64          // last edition published or seen
	restored bool           // local graph exists, from a draft or self-refresh
}

func (st *ownState) raiseEdition(edition int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if edition > st.edition {
		st.edition = edition
	}
}

func (st *ownState) currentEdition() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.edition
}

func (e *Engine) addOwn(o *types.OwnIdentity) {
	st := &ownState{identity: o}
	g, edition, ok := e.loadDraft(o.ID)
	st.restored = ok
	if !ok {
		g = types.NewGraph(o.ID)
	}
	st.graph.Store(g)
	st.edition = max(edition, e.storedEdition(o.ID))

	published, ok := e.storedFingerprint(o.ID)
	if !ok {
		published = fingerprint.Of(types.NewGraph(o.ID))
	}
	st.detector = publish.NewModificationDetector(
		func() fingerprint.Digest { return fingerprint.Of(st.graph.Load()) },
		func() bool { return e.locks.IsLocked(o.ID) },
		published, e.quietPeriod(), func() time.Time { return e.now() })

	e.mu.Lock()
	e.own[o.ID] = st
	e.mu.Unlock()
	e.scheduler.Register(o.ID, st.detector)
	e.retain(o.ID, o.RequestURI, o.ID)
	e.log.Info("own identity %s (%s) added", o.ID, o.Nickname)
}

func (e *Engine) removeOwn(o *types.OwnIdentity) {
	e.mu.Lock()
	delete(e.own, o.ID)
	e.mu.Unlock()
	e.scheduler.Unregister(o.ID)
	e.release(o.ID, o.ID)
	e.log.Info("own identity %s removed", o.ID)
}

// onSynced adopts the first fetched own document when no local graph
// exists, and keeps the own edition current.
func (e *Engine) onSynced(_ context.Context, s content.Synced) {
	st, ok := e.ownState(s.IdentityID)
	if !ok {
		return
	}
	st.raiseEdition(s.Edition)

	st.edit.Lock()
	defer st.edit.Unlock()
	st.mu.Lock()
	restored := st.restored
	st.restored = true
	st.mu.Unlock()
	if restored {
		return
	}
	g := s.Graph.Clone()
	st.graph.Store(g)
	st.detector.SetFingerprint(fingerprint.Of(g))
	e.saveDraft(st, g)
	e.log.Info("restored own identity %s from edition %d", s.IdentityID, s.Edition)
}

func (e *Engine) ownState(id string) (*ownState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.own[id]
	return st, ok
}

func (e *Engine) quietPeriod() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.QuietPeriod
}

// OwnGraph returns the current local graph of an own identity. Callers must
// not modify it.
func (e *Engine) OwnGraph(id string) (*types.Graph, bool) {
	st, ok := e.ownState(id)
	if !ok {
		return nil, false
	}
	return st.graph.Load(), true
}

// OwnIdentities returns the IDs of the own identities the engine manages.
func (e *Engine) OwnIdentities() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.own))
	for id := range e.own {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Edit applies fn to a clone of the own graph of id. When fn succeeds the
// clone replaces the graph, is saved as draft and starts the quiet period
// if it differs from the published state. When fn fails nothing changes
// and its error is returned.
func (e *Engine) Edit(id string, fn func(g *types.Graph) error) error {
	st, ok := e.ownState(id)
	if !ok {
		return ErrUnknownOwnIdentity
	}
	st.edit.Lock()
	defer st.edit.Unlock()
	g := st.graph.Load().Clone()
	if err := fn(g); err != nil {
		return err
	}
	st.graph.Store(g)
	st.mu.Lock()
	st.restored = true
	st.mu.Unlock()
	e.saveDraft(st, g)
	st.detector.IsModified()
	return nil
}

func (e *Engine) loadDraft(id string) (*types.Graph, int64, bool) {
	if e.drafts == nil {
		return nil, 0, false
	}
	v, err := e.drafts.Get(id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			e.log.Warn("load draft of %s: %v", id, err)
		}
		return nil, 0, false
	}
	r, ok := v.(*types.DocumentRecord)
	if !ok {
		return nil, 0, false
	}
	g, err := document.Parse(id, r.Body)
	if err != nil {
		e.log.Warn("draft of %s unreadable: %v", id, err)
		return nil, 0, false
	}
	return g, r.Edition, true
}

// saveDraft stores g as the local draft. Drafts use the document format,
// so images without a content key are not kept across restarts.
func (e *Engine) saveDraft(st *ownState, g *types.Graph) {
	if e.drafts == nil {
		return
	}
	c := g.Clone()
	c.Time = e.now()
	data, err := document.Marshal(c)
	if err != nil {
		e.log.Warn("encode draft of %s: %v", st.identity.ID, err)
		return
	}
	rec := &types.DocumentRecord{IdentityID: st.identity.ID, Edition: st.currentEdition(), Body: data, StoredAt: e.now()}
	if _, err := e.drafts.Set(st.identity.ID, rec); err != nil {
		e.log.Warn("store draft of %s: %v", st.identity.ID, err)
	}
}

func (e *Engine) storedFingerprint(id string) (fingerprint.Digest, bool) {
	if e.fingerprints == nil {
		return "", false
	}
	v, err := e.fingerprints.Get(id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			e.log.Warn("load fingerprint of %s: %v", id, err)
		}
		return "", false
	}
	r, ok := v.(*types.FingerprintRecord)
	if !ok {
		return "", false
	}
	return fingerprint.Digest(r.Fingerprint), true
}

func (e *Engine) storedEdition(id string) int64 {
	if e.editions == nil {
		return 0
	}
	v, err := e.editions.Get(id)
	if err != nil {
		return 0
	}
	if r, ok := v.(*types.EditionRecord); ok {
		return r.Edition
	}
	return 0
}

// Lock blocks publishing of an own identity until Unlock.
func (e *Engine) Lock(id string) error {
	if _, ok := e.ownState(id); !ok {
		return ErrUnknownOwnIdentity
	}
	e.locks.LockUser(id)
	return nil
}

// Unlock lifts a user lock.
func (e *Engine) Unlock(id string) error {
	if _, ok := e.ownState(id); !ok {
		return ErrUnknownOwnIdentity
	}
	e.locks.UnlockUser(id)
	return nil
}
