package identity

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mesh-intelligence/sone/internal/change"
	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/metrics"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// Change describes one remote identity event as seen by an own identity.
// Previous is set for updates only.
type Change struct {
	Own      *types.OwnIdentity
	Identity *types.Identity
	Previous *types.Identity
}

// Events exposes one channel per change kind. The channels are closed when
// Run returns.
type Events struct {
	OwnAdded   <-chan *types.OwnIdentity
	OwnRemoved <-chan *types.OwnIdentity
	Added      <-chan Change
	Updated    <-chan Change
	Removed    <-chan Change
}

// Config tunes a Synchronizer.
type Config struct {
	// Context restricts own and trusted identities to those carrying this
	// context tag. Empty disables the filter.
	Context string

	// Interval is the sleep between poll cycles.
	Interval time.Duration

	// Buffer is the capacity of each event channel.
	Buffer int
}

// DefaultBuffer is the event channel capacity used when Config.Buffer is 0.
const DefaultBuffer = 256

// Synchronizer runs the identity poll loop. Only the loop writes the
// snapshot; readers get it lock-free through Snapshot.
type Synchronizer struct {
	svc Service
	cfg Config
	log *logging.Logger
	now func() time.Time

	snap    atomic.Pointer[Snapshot]
	refresh chan struct{}

	ownAdded   chan *types.OwnIdentity
	ownRemoved chan *types.OwnIdentity
	added      chan Change
	updated    chan Change
	removed    chan Change
}

// NewSynchronizer returns a synchronizer over svc.
func NewSynchronizer(svc Service, cfg Config, log *logging.Logger) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = types.DefaultIdentityPollInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	s := &Synchronizer{
		svc:        svc,
		cfg:        cfg,
		log:        log.With("identity"),
		now:        time.Now,
		refresh:    make(chan struct{}, 1),
		ownAdded:   make(chan *types.OwnIdentity, cfg.Buffer),
		ownRemoved: make(chan *types.OwnIdentity, cfg.Buffer),
		added:      make(chan Change, cfg.Buffer),
		updated:    make(chan Change, cfg.Buffer),
		removed:    make(chan Change, cfg.Buffer),
	}
	s.snap.Store(emptySnapshot())
	return s
}

// Events returns the event channels.
func (s *Synchronizer) Events() Events {
	return Events{
		OwnAdded:   s.ownAdded,
		OwnRemoved: s.ownRemoved,
		Added:      s.added,
		Updated:    s.updated,
		Removed:    s.removed,
	}
}

// Snapshot returns the last known good snapshot. Before the first
// successful poll it is empty.
func (s *Synchronizer) Snapshot() *Snapshot { return s.snap.Load() }

// Connected probes the identity service, independently of the poll loop.
func (s *Synchronizer) Connected(ctx context.Context) bool {
	return s.svc.Ping(ctx) == nil
}

// Refresh cuts the current sleep short so the next cycle starts at once.
func (s *Synchronizer) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
// A failed cycle is logged and retried after the next interval. Run closes
// the event channels on return and must be called at most once.
func (s *Synchronizer) Run(ctx context.Context) error {
	defer s.close()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-s.refresh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := s.Cycle(ctx); err != nil {
			s.log.Debug("poll cycle skipped: %v", err)
		}
		timer.Reset(s.cfg.Interval)
	}
}

// Cycle performs one poll. On failure the snapshot is kept and no event is
// emitted. On success the snapshot is replaced before the events are sent.
func (s *Synchronizer) Cycle(ctx context.Context) error {
	next, err := s.poll(ctx)
	if err != nil {
		metrics.IdentityPolls.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.IdentityPolls.WithLabelValues(metrics.ResultOK).Inc()
	prev := s.snap.Load()
	emits := diff(prev, next)
	s.snap.Store(next)
	for _, e := range emits {
		if err := s.emit(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) poll(ctx context.Context) (*Snapshot, error) {
	owns, err := s.svc.OwnIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list own identities: %w", err)
	}
	var kept []*types.OwnIdentity
	trusted := map[string][]*types.Identity{}
	for _, o := range owns {
		if o == nil || o.ID == "" {
			return nil, fmt.Errorf("%w: own identity without ID", ErrMalformed)
		}
		if s.cfg.Context != "" && !o.HasContext(s.cfg.Context) {
			continue
		}
		list, err := s.svc.TrustedIdentities(ctx, o, s.cfg.Context)
		if err != nil {
			return nil, fmt.Errorf("list identities trusted by %s: %w", o.ID, err)
		}
		for _, ident := range list {
			if ident == nil || ident.ID == "" {
				return nil, fmt.Errorf("%w: identity trusted by %s without ID", ErrMalformed, o.ID)
			}
			if ident.ID == o.ID {
				continue
			}
			trusted[o.ID] = append(trusted[o.ID], ident)
		}
		kept = append(kept, o)
	}
	return newSnapshot(s.now(), kept, trusted), nil
}

type eventKind int

const (
	kindOwnAdded eventKind = iota
	kindOwnRemoved
	kindAdded
	kindUpdated
	kindRemoved
)

var kindNames = map[eventKind]string{
	kindOwnAdded:   "own_added",
	kindOwnRemoved: "own_removed",
	kindAdded:      "added",
	kindUpdated:    "updated",
	kindRemoved:    "removed",
}

type event struct {
	kind   eventKind
	own    *types.OwnIdentity
	change Change
}

// diff runs the two-level change detection between two snapshots.
func diff(prev, next *Snapshot) []event {
	var out []event
	trustedDetector := func(own *types.OwnIdentity) change.Detector[*types.Identity] {
		return change.Detector[*types.Identity]{
			Equal: func(a, b *types.Identity) bool { return a.SameState(b) },
			OnAdded: func(_ string, ident *types.Identity) {
				out = append(out, event{kind: kindAdded, change: Change{Own: own, Identity: ident}})
			},
			OnRemoved: func(_ string, ident *types.Identity) {
				out = append(out, event{kind: kindRemoved, change: Change{Own: own, Identity: ident}})
			},
			OnChanged: func(_ string, old, cur *types.Identity) {
				out = append(out, event{kind: kindUpdated, change: Change{Own: own, Identity: cur, Previous: old}})
			},
		}
	}
	recurse := func(id string, _, cur *types.OwnIdentity) {
		trustedDetector(cur).Detect(prev.trusted[id], next.trusted[id])
	}

	change.Detector[*types.OwnIdentity]{
		Equal: func(a, b *types.OwnIdentity) bool { return a.SameState(b) },
		OnAdded: func(id string, own *types.OwnIdentity) {
			out = append(out, event{kind: kindOwnAdded, own: own})
			trustedDetector(own).Detect(nil, next.trusted[id])
		},
		OnRemoved: func(id string, own *types.OwnIdentity) {
			out = append(out, event{kind: kindOwnRemoved, own: own})
			trustedDetector(own).Detect(prev.trusted[id], nil)
		},
		OnChanged:   recurse,
		OnUnchanged: recurse,
	}.Detect(prev.own, next.own)
	return out
}

func (s *Synchronizer) emit(ctx context.Context, e event) error {
	metrics.IdentityEvents.WithLabelValues(kindNames[e.kind]).Inc()
	var err error
	switch e.kind {
	case kindOwnAdded:
		err = send(ctx, s.ownAdded, e.own)
	case kindOwnRemoved:
		err = send(ctx, s.ownRemoved, e.own)
	case kindAdded:
		err = send(ctx, s.added, e.change)
	case kindUpdated:
		err = send(ctx, s.updated, e.change)
	case kindRemoved:
		err = send(ctx, s.removed, e.change)
	}
	return err
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) close() {
	close(s.ownAdded)
	close(s.ownRemoved)
	close(s.added)
	close(s.updated)
	close(s.removed)
}
