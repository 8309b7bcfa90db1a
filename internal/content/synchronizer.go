// Package content keeps the replica of remote content graphs current. Every
// tracked identity has its own lane that runs fetch, parse, diff and record
// strictly in sequence; lanes of different identities run independently.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/change"
	"github.com/mesh-intelligence/sone/internal/document"
	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/metrics"
	"github.com/mesh-intelligence/sone/internal/overlay"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// Redirect handling errors.
var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrBadRedirect      = errors.New("redirect does not advance the edition")
)

// Lane lifecycle errors.
var (
	ErrNotTracked = errors.New("identity is not tracked")
	ErrStopped    = errors.New("synchronizer stopped")
)

// Defaults used when the matching Config field is zero.
const (
	DefaultMaxRedirects = 5
	DefaultBuffer       = 256
)

// Config tunes a Synchronizer.
type Config struct {
	// Interval is the sleep between two attempts of one lane.
	Interval time.Duration

	// MaxRedirects bounds the redirect chain followed by one attempt.
	MaxRedirects int

	// Buffer is the capacity of each event channel.
	Buffer int
}

// PostEvent reports a post that appeared in or disappeared from a graph.
type PostEvent struct {
	IdentityID string
	Post       types.Post
}

// ReplyEvent reports a reply that appeared in or disappeared from a graph.
type ReplyEvent struct {
	IdentityID string
	Reply      types.PostReply
}

// Synced reports that a new graph replaced the retained one. Previous is nil
// for the first graph of an identity.
type Synced struct {
	IdentityID string
	Edition    int64
	Graph      *types.Graph
	Previous   *types.Graph
}

// Events exposes one channel per event kind. The channels are closed when
// Run returns.
type Events struct {
	PostAdded    <-chan PostEvent
	PostRemoved  <-chan PostEvent
	ReplyAdded   <-chan ReplyEvent
	ReplyRemoved <-chan ReplyEvent
	Synced       <-chan Synced
}

// Synchronizer owns the content lanes and the replica they feed.
type Synchronizer struct {
	ov        overlay.Overlay
	editions  types.Table
	documents types.Table
	cfg       Config
	log       *logging.Logger
	now       func() time.Time
	replica   *Replica

	mu     deadlock.Mutex
	ctx    context.Context // set by Run
	closed bool
	lanes  map[string]*lane
	wg     deadlock.WaitGroup

	postAdded    chan PostEvent
	postRemoved  chan PostEvent
	replyAdded   chan ReplyEvent
	replyRemoved chan ReplyEvent
	synced       chan Synced
}

// NewSynchronizer returns a synchronizer fetching from ov. A nil store keeps
// editions and documents in memory only.
func NewSynchronizer(ov overlay.Overlay, store types.Store, cfg Config, log *logging.Logger) (*Synchronizer, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = types.DefaultContentPollInterval
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	s := &Synchronizer{
		ov:           ov,
		cfg:          cfg,
		log:          log.With("content"),
		now:          time.Now,
		replica:      NewReplica(),
		lanes:        map[string]*lane{},
		postAdded:    make(chan PostEvent, cfg.Buffer),
		postRemoved:  make(chan PostEvent, cfg.Buffer),
		replyAdded:   make(chan ReplyEvent, cfg.Buffer),
		replyRemoved: make(chan ReplyEvent, cfg.Buffer),
		synced:       make(chan Synced, cfg.Buffer),
	}
	if store != nil {
		var err error
		if s.editions, err = store.GetTable(types.EditionsTable); err != nil {
			return nil, fmt.Errorf("editions table: %w", err)
		}
		if s.documents, err = store.GetTable(types.DocumentsTable); err != nil {
			return nil, fmt.Errorf("documents table: %w", err)
		}
	}
	return s, nil
}

// Events returns the event channels.
func (s *Synchronizer) Events() Events {
	return Events{
		PostAdded:    s.postAdded,
		PostRemoved:  s.postRemoved,
		ReplyAdded:   s.replyAdded,
		ReplyRemoved: s.replyRemoved,
		Synced:       s.synced,
	}
}

// Replica returns the replica the lanes write to.
func (s *Synchronizer) Replica() *Replica { return s.replica }

// Track starts a lane for identityID fetching documents under base. The
// last stored edition and document are restored first. Tracking an
// identity twice is a no-op.
func (s *Synchronizer) Track(identityID, base string) error {
	if identityID == "" || base == "" {
		return types.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStopped
	}
	if _, ok := s.lanes[identityID]; ok {
		return nil
	}
	l := newLane(identityID, base)
	s.restore(l)
	if err := s.ov.Subscribe(base, l.announce); err != nil {
		s.log.Debug("subscribe %s: %v", base, err)
	}
	s.lanes[identityID] = l
	metrics.TrackedIdentities.Inc()
	if s.ctx != nil {
		s.start(l)
	}
	return nil
}

// Untrack stops the lane of identityID and drops its graph from the
// replica. Stored editions are kept.
func (s *Synchronizer) Untrack(identityID string) {
	s.mu.Lock()
	l, ok := s.lanes[identityID]
	if ok {
		delete(s.lanes, identityID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	metrics.TrackedIdentities.Dec()
	s.ov.Unsubscribe(l.base)
	if l.cancel != nil {
		l.cancel()
	}
	s.replica.Remove(identityID)
}

// Tracked reports whether identityID has a lane.
func (s *Synchronizer) Tracked(identityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lanes[identityID]
	return ok
}

// SyncNow wakes the lane of identityID.
func (s *Synchronizer) SyncNow(identityID string) error {
	l, err := s.lane(identityID)
	if err != nil {
		return err
	}
	l.wake()
	return nil
}

// Sync runs one attempt for identityID in the caller's goroutine. It waits
// for an attempt already running in the lane. Run does not close the event
// channels before Sync returns.
func (s *Synchronizer) Sync(ctx context.Context, identityID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	l, ok := s.lanes[identityID]
	if !ok {
		s.mu.Unlock()
		return ErrNotTracked
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	return s.step(ctx, l)
}

// Status returns the status of a tracked identity.
func (s *Synchronizer) Status(identityID string) (types.Status, bool) {
	l, err := s.lane(identityID)
	if err != nil {
		return types.Status{IdentityID: identityID, StateName: types.StateUnknown.String()}, false
	}
	return l.status(), true
}

// Run starts every lane and blocks until ctx is cancelled. Lanes tracked
// later start immediately. Run closes the event channels on return and
// must be called at most once.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil || s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	s.ctx = ctx
	for _, l := range s.lanes {
		s.start(l)
	}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	close(s.postAdded)
	close(s.postRemoved)
	close(s.replyAdded)
	close(s.replyRemoved)
	close(s.synced)
	return nil
}

func (s *Synchronizer) lane(identityID string) (*lane, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStopped
	}
	l, ok := s.lanes[identityID]
	if !ok {
		return nil, ErrNotTracked
	}
	return l, nil
}

// start must be called with mu held.
func (s *Synchronizer) start(l *lane) {
	ctx, cancel := context.WithCancel(s.ctx)
	l.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, l)
	}()
}

func (s *Synchronizer) loop(ctx context.Context, l *lane) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-l.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := s.step(ctx, l); err != nil {
			s.log.Debug("sync %s deferred: %v", l.id, err)
		}
		timer.Reset(s.cfg.Interval)
	}
}

// restore seeds a new lane from the store. Failures only cost a refetch.
func (s *Synchronizer) restore(l *lane) {
	if s.editions != nil {
		if v, err := s.editions.Get(l.id); err == nil {
			if r, ok := v.(*types.EditionRecord); ok {
				l.edition, l.known = r.Edition, true
			}
		} else if !errors.Is(err, types.ErrNotFound) {
			s.log.Warn("load edition of %s: %v", l.id, err)
		}
	}
	if s.documents == nil {
		return
	}
	v, err := s.documents.Get(l.id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.log.Warn("load document of %s: %v", l.id, err)
		}
		return
	}
	r, ok := v.(*types.DocumentRecord)
	if !ok {
		return
	}
	g, err := document.Parse(l.id, r.Body)
	if err != nil {
		s.log.Warn("stored document of %s: %v", l.id, err)
		return
	}
	s.replica.Put(l.id, g)
	l.done = r.Edition
	if !l.known || r.Edition > l.edition {
		l.edition, l.known = r.Edition, true
	}
}

// step runs one fetch-parse-diff-record attempt. A failed attempt leaves
// the retained graph untouched.
func (s *Synchronizer) step(ctx context.Context, l *lane) error {
	l.busy.Lock()
	defer l.busy.Unlock()
	l.setState(types.StateSynchronizing)
	defer l.setState(types.StateIdle)
	timer := prometheus.NewTimer(metrics.FetchDuration)
	defer timer.ObserveDuration()

	err := s.attempt(ctx, l)
	if err != nil {
		l.markStale(s.now())
	}
	return err
}

func (s *Synchronizer) attempt(ctx context.Context, l *lane) error {
	key, err := s.startKey(ctx, l)
	if err != nil {
		metrics.Fetches.WithLabelValues(resultOf(err)).Inc()
		return err
	}
	data, key, err := s.fetch(ctx, key)
	if err != nil {
		metrics.Fetches.WithLabelValues(resultOf(err)).Inc()
		if errors.Is(err, overlay.ErrNotFound) {
			l.forgetEdition()
		}
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	s.recordEdition(l, key.Edition)

	if !l.needsParse(key.Edition) {
		metrics.Fetches.WithLabelValues(metrics.ResultOK).Inc()
		l.markSynced(s.now())
		return nil
	}
	l.setDone(key.Edition)

	g, err := document.Parse(l.id, data)
	if err != nil {
		metrics.Fetches.WithLabelValues(metrics.ResultInvalid).Inc()
		s.log.Warn("document %s rejected: %v", key, err)
		return fmt.Errorf("parse %s: %w", key, err)
	}

	prev, hadPrev := s.replica.Graph(l.id)
	if hadPrev && g.Time.Before(prev.Time) {
		metrics.Fetches.WithLabelValues(metrics.ResultStale).Inc()
		s.log.Warn("document %s is older than the retained one, discarded", key)
		l.markSynced(s.now())
		return nil
	}
	carryKnown(prev, g)
	if !s.commit(l, g) {
		return ErrNotTracked
	}
	s.storeDocument(l.id, key.Edition, data)
	metrics.Fetches.WithLabelValues(metrics.ResultOK).Inc()
	l.markSynced(s.now())
	s.log.Debug("synced %s at edition %d", l.id, key.Edition)

	return s.emit(ctx, l.id, key.Edition, prev, g)
}

// commit puts g into the replica while l is still the registered lane of
// its identity. Untrack removes the graph after unregistering, so a graph
// committed under mu is always removed again.
func (s *Synchronizer) commit(l *lane, g *types.Graph) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lanes[l.id] != l {
		return false
	}
	s.replica.Put(l.id, g)
	return true
}

// startKey picks the edition of the first fetch, asking the overlay for the
// newest one when no edition is known yet.
func (s *Synchronizer) startKey(ctx context.Context, l *lane) (overlay.Key, error) {
	edition, known := l.nextEdition()
	if !known {
		latest, err := s.ov.LatestEdition(ctx, l.base)
		if err != nil {
			return overlay.Key{Base: l.base}, fmt.Errorf("latest edition of %s: %w", l.base, err)
		}
		edition = latest
	}
	return overlay.Key{Base: l.base, Edition: edition}, nil
}

// fetch follows redirects up to the configured bound. Every redirect must
// move to a higher edition of the same base.
func (s *Synchronizer) fetch(ctx context.Context, key overlay.Key) ([]byte, overlay.Key, error) {
	for redirects := 0; ; redirects++ {
		data, err := s.ov.Fetch(ctx, key)
		var re *overlay.RedirectError
		if !errors.As(err, &re) {
			return data, key, err
		}
		metrics.Fetches.WithLabelValues(metrics.ResultRedirect).Inc()
		if redirects >= s.cfg.MaxRedirects {
			return nil, key, ErrTooManyRedirects
		}
		if re.Key.Base != key.Base || re.Key.Edition <= key.Edition {
			return nil, key, fmt.Errorf("%w: %s to %s", ErrBadRedirect, key, re.Key)
		}
		key = re.Key
	}
}

func (s *Synchronizer) recordEdition(l *lane, edition int64) {
	l.raiseEdition(edition)
	if s.editions == nil {
		return
	}
	rec := &types.EditionRecord{IdentityID: l.id, Edition: edition, UpdatedAt: s.now()}
	if _, err := s.editions.Set(l.id, rec); err != nil {
		s.log.Warn("store edition of %s: %v", l.id, err)
	}
}

func (s *Synchronizer) storeDocument(identityID string, edition int64, data []byte) {
	if s.documents == nil {
		return
	}
	rec := &types.DocumentRecord{IdentityID: identityID, Edition: edition, Body: data, StoredAt: s.now()}
	if _, err := s.documents.Set(identityID, rec); err != nil {
		s.log.Warn("store document of %s: %v", identityID, err)
	}
}

// carryKnown copies local known flags from prev to next.
func carryKnown(prev, next *types.Graph) {
	if prev == nil {
		return
	}
	for id, p := range prev.PostMap() {
		if p.Known {
			_ = next.SetPostKnown(id, true)
		}
	}
	for id, r := range prev.ReplyMap() {
		if r.Known {
			_ = next.SetReplyKnown(id, true)
		}
	}
}

func (s *Synchronizer) emit(ctx context.Context, identityID string, edition int64, prev, next *types.Graph) error {
	var prevPosts map[string]types.Post
	var prevReplies map[string]types.PostReply
	if prev != nil {
		prevPosts, prevReplies = prev.PostMap(), prev.ReplyMap()
	}

	var added, removed []PostEvent
	change.Detector[types.Post]{
		Equal:     func(a, b types.Post) bool { return a.SameContent(b) },
		OnAdded:   func(_ string, p types.Post) { added = append(added, PostEvent{identityID, p}) },
		OnRemoved: func(_ string, p types.Post) { removed = append(removed, PostEvent{identityID, p}) },
	}.Detect(prevPosts, next.PostMap())

	var rAdded, rRemoved []ReplyEvent
	change.Detector[types.PostReply]{
		Equal:     func(a, b types.PostReply) bool { return a.SameContent(b) },
		OnAdded:   func(_ string, r types.PostReply) { rAdded = append(rAdded, ReplyEvent{identityID, r}) },
		OnRemoved: func(_ string, r types.PostReply) { rRemoved = append(rRemoved, ReplyEvent{identityID, r}) },
	}.Detect(prevReplies, next.ReplyMap())

	for _, e := range removed {
		metrics.ContentEvents.WithLabelValues("post_removed").Inc()
		if err := send(ctx, s.postRemoved, e); err != nil {
			return err
		}
	}
	for _, e := range added {
		metrics.ContentEvents.WithLabelValues("post_added").Inc()
		if err := send(ctx, s.postAdded, e); err != nil {
			return err
		}
	}
	for _, e := range rRemoved {
		metrics.ContentEvents.WithLabelValues("reply_removed").Inc()
		if err := send(ctx, s.replyRemoved, e); err != nil {
			return err
		}
	}
	for _, e := range rAdded {
		metrics.ContentEvents.WithLabelValues("reply_added").Inc()
		if err := send(ctx, s.replyAdded, e); err != nil {
			return err
		}
	}
	return send(ctx, s.synced, Synced{IdentityID: identityID, Edition: edition, Graph: next, Previous: prev})
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, overlay.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, overlay.ErrUnavailable):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}
