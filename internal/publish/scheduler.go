package publish

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/fingerprint"
	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/metrics"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// Func publishes the current graph of an own identity and returns the
// fingerprint of what it published.
type Func func(ctx context.Context, identityID string) (fingerprint.Digest, error)

// Scheduler checks every registered detector on a fixed interval and
// dispatches a publish for each eligible identity. A check reads shared
// state only; the publish runs in its own goroutine under the identity's
// lock.
type Scheduler struct {
	locks    *Locks
	publish  Func
	interval time.Duration
	log      *logging.Logger

	mu        deadlock.Mutex
	detectors map[string]*ModificationDetector
	failed    map[string]bool
	wg        deadlock.WaitGroup
}

// NewScheduler returns a scheduler dispatching to publish. A non-positive
// interval selects types.DefaultCheckInterval.
func NewScheduler(locks *Locks, publish Func, interval time.Duration, log *logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = types.DefaultCheckInterval
	}
	return &Scheduler{
		locks:     locks,
		publish:   publish,
		interval:  interval,
		log:       log.With("publish"),
		detectors: map[string]*ModificationDetector{},
		failed:    map[string]bool{},
	}
}

// Register adds the detector of an own identity, replacing a previous one.
func (s *Scheduler) Register(identityID string, d *ModificationDetector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectors[identityID] = d
}

// Unregister drops an identity. A publish already in flight completes.
func (s *Scheduler) Unregister(identityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.detectors, identityID)
	delete(s.failed, identityID)
}

// Detector returns the registered detector of an identity.
func (s *Scheduler) Detector(identityID string) (*ModificationDetector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.detectors[identityID]
	return d, ok
}

// LastPublishFailed reports whether the latest publish of an identity
// failed.
func (s *Scheduler) LastPublishFailed(identityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed[identityID]
}

// Run checks on every tick until ctx is cancelled, then waits for
// in-flight publishes.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check dispatches a publish for every eligible identity and returns the
// identities it dispatched. A held lock makes the identity ineligible; it
// is skipped, not queued.
func (s *Scheduler) Check(ctx context.Context) []string {
	s.mu.Lock()
	ids := slices.Sorted(maps.Keys(s.detectors))
	detectors := maps.Clone(s.detectors)
	s.mu.Unlock()

	var dispatched []string
	for _, id := range ids {
		d := detectors[id]
		if !d.IsEligibleForInsert() || !s.locks.TryLock(id) {
			continue
		}
		dispatched = append(dispatched, id)
		s.wg.Add(1)
		go func(id string, d *ModificationDetector) {
			defer s.wg.Done()
			defer s.locks.Unlock(id)
			s.run(ctx, id, d)
		}(id, d)
	}
	return dispatched
}

// Wait blocks until every dispatched publish has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context, id string, d *ModificationDetector) {
	fp, err := s.publish(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		metrics.Publishes.WithLabelValues(metrics.ResultError).Inc()
		s.log.Warn("publish %s failed: %v", id, err)
		s.failed[id] = true
		return
	}
	metrics.Publishes.WithLabelValues(metrics.ResultOK).Inc()
	s.log.Info("published %s", id)
	d.SetFingerprint(fp)
	s.failed[id] = false
}
