// Package engine wires the identity synchronizer, the content lanes and the
// publish scheduler into one running node.
//
// Identity events decide which content lanes exist: a remote identity is
// tracked while at least one own identity trusts it, and every own identity
// tracks its own document for self-refresh. Own graphs are edited
// copy-on-write and published by the scheduler once they have been quiet
// for the configured period.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/content"
	"github.com/mesh-intelligence/sone/internal/identity"
	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/overlay"
	"github.com/mesh-intelligence/sone/internal/publish"
	"github.com/mesh-intelligence/sone/internal/visibility"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// ErrUnknownOwnIdentity is returned for operations on an identity that is
// not a currently known own identity.
var ErrUnknownOwnIdentity = errors.New("unknown own identity")

// Engine is a running sone node.
type Engine struct {
	cfg types.Config
	log *logging.Logger
	ov  overlay.Overlay
	now func() time.Time

	editions     types.Table
	drafts       types.Table
	fingerprints types.Table

	identities *identity.Synchronizer
	content    *content.Synchronizer
	locks      *publish.Locks
	scheduler  *publish.Scheduler
	filter     *visibility.Filter

	mu   deadlock.Mutex
	own  map[string]*ownState
	refs map[string]map[string]struct{} // tracked identity -> own identities holding the lane
}

// New builds an engine. store must be attached; a nil store keeps all state
// in memory.
func New(cfg types.Config, svc identity.Service, ov overlay.Overlay, store types.Store, log *logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:  cfg,
		log:  log.With("engine"),
		ov:   ov,
		now:  time.Now,
		own:  map[string]*ownState{},
		refs: map[string]map[string]struct{}{},
	}
	if store != nil {
		var err error
		if e.editions, err = store.GetTable(types.EditionsTable); err != nil {
			return nil, fmt.Errorf("editions table: %w", err)
		}
		if e.drafts, err = store.GetTable(types.DraftsTable); err != nil {
			return nil, fmt.Errorf("drafts table: %w", err)
		}
		if e.fingerprints, err = store.GetTable(types.FingerprintsTable); err != nil {
			return nil, fmt.Errorf("fingerprints table: %w", err)
		}
	}

	e.identities = identity.NewSynchronizer(svc, identity.Config{
		Context:  cfg.Context,
		Interval: cfg.IdentityPollInterval,
	}, log)
	cs, err := content.NewSynchronizer(ov, store, content.Config{Interval: cfg.ContentPollInterval}, log)
	if err != nil {
		return nil, err
	}
	e.content = cs
	e.locks = publish.NewLocks()
	e.scheduler = publish.NewScheduler(e.locks, e.publish, cfg.CheckInterval, log)
	e.filter = visibility.New(lookup{e}, func() time.Time { return e.now() })
	return e, nil
}

// Run starts all loops and blocks until ctx is cancelled. In-flight
// fetches and publishes complete before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	var wg deadlock.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				e.log.Error("%s stopped: %v", name, err)
			}
		}()
	}
	start("identity synchronizer", e.identities.Run)
	start("content synchronizer", e.content.Run)
	start("publish scheduler", e.scheduler.Run)

	e.log.Info("engine started")
	e.loop(ctx)
	wg.Wait()
	e.log.Info("engine stopped")
	return nil
}

// loop dispatches events until every event channel is closed.
func (e *Engine) loop(ctx context.Context) {
	ids := e.identities.Events()
	cs := e.content.Events()
	ownAdded, ownRemoved := ids.OwnAdded, ids.OwnRemoved
	added, removed, updated := ids.Added, ids.Removed, ids.Updated
	synced := cs.Synced
	postAdded, replyAdded := cs.PostAdded, cs.ReplyAdded
	postRemoved, replyRemoved := cs.PostRemoved, cs.ReplyRemoved

	for ownAdded != nil || ownRemoved != nil || added != nil || removed != nil || updated != nil ||
		synced != nil || postAdded != nil || replyAdded != nil || postRemoved != nil || replyRemoved != nil {
		select {
		case o, ok := <-ownAdded:
			if !ok {
				ownAdded = nil
				continue
			}
			e.addOwn(o)
		case o, ok := <-ownRemoved:
			if !ok {
				ownRemoved = nil
				continue
			}
			e.removeOwn(o)
		case c, ok := <-added:
			if !ok {
				added = nil
				continue
			}
			e.retain(c.Identity.ID, c.Identity.RequestURI, c.Own.ID)
		case c, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			e.release(c.Identity.ID, c.Own.ID)
		case c, ok := <-updated:
			if !ok {
				updated = nil
				continue
			}
			e.log.Debug("identity %s updated for %s", c.Identity.ID, c.Own.ID)
		case s, ok := <-synced:
			if !ok {
				synced = nil
				continue
			}
			e.onSynced(ctx, s)
		case p, ok := <-postAdded:
			if !ok {
				postAdded = nil
				continue
			}
			e.log.Debug("new post %s by %s", p.Post.ID, p.IdentityID)
		case p, ok := <-postRemoved:
			if !ok {
				postRemoved = nil
				continue
			}
			e.log.Debug("post %s by %s removed", p.Post.ID, p.IdentityID)
		case r, ok := <-replyAdded:
			if !ok {
				replyAdded = nil
				continue
			}
			e.log.Debug("new reply %s by %s", r.Reply.ID, r.IdentityID)
		case r, ok := <-replyRemoved:
			if !ok {
				replyRemoved = nil
				continue
			}
			e.log.Debug("reply %s by %s removed", r.Reply.ID, r.IdentityID)
		}
	}
}

// retain adds holder to the lane of identityID, starting the lane for the
// first holder.
func (e *Engine) retain(identityID, base, holder string) {
	e.mu.Lock()
	holders, ok := e.refs[identityID]
	if !ok {
		holders = map[string]struct{}{}
		e.refs[identityID] = holders
	}
	holders[holder] = struct{}{}
	first := !ok
	e.mu.Unlock()
	if !first {
		return
	}
	if err := e.content.Track(identityID, base); err != nil {
		e.log.Warn("track %s: %v", identityID, err)
	}
}

// release drops holder from the lane of identityID and stops the lane when
// no holder is left.
func (e *Engine) release(identityID, holder string) {
	e.mu.Lock()
	holders, ok := e.refs[identityID]
	if ok {
		delete(holders, holder)
	}
	last := ok && len(holders) == 0
	if last {
		delete(e.refs, identityID)
	}
	e.mu.Unlock()
	if last {
		e.content.Untrack(identityID)
	}
}

// Connected reports whether the identity service is reachable.
func (e *Engine) Connected(ctx context.Context) bool {
	return e.identities.Connected(ctx)
}

// Identities returns the last known identity snapshot.
func (e *Engine) Identities() *identity.Snapshot { return e.identities.Snapshot() }

// Replica returns the replica of synchronized graphs.
func (e *Engine) Replica() *content.Replica { return e.content.Replica() }

// RefreshIdentities starts an identity poll without waiting for the
// interval.
func (e *Engine) RefreshIdentities() { e.identities.Refresh() }

// SyncNow wakes the content lane of an identity.
func (e *Engine) SyncNow(identityID string) error { return e.content.SyncNow(identityID) }

// SetQuietPeriod changes the quiet period of every own identity.
func (e *Engine) SetQuietPeriod(quiet time.Duration) error {
	if quiet < 0 {
		return types.ErrConfigQuietPeriodInvalid
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.QuietPeriod = quiet
	for _, st := range e.own {
		st.detector.SetQuietPeriod(quiet)
	}
	return nil
}
