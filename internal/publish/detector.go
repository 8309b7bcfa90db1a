// Package publish decides when a locally modified graph is published and
// dispatches the publish, with at most one attempt per identity in flight.
package publish

import (
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/fingerprint"
)

// ModificationDetector compares the current fingerprint of an own graph with
// the last published one. A modification becomes eligible for insert once it
// has been observed for the quiet period and the identity is not locked.
type ModificationDetector struct {
	current func() fingerprint.Digest
	locked  func() bool
	now     func() time.Time

	mu        deadlock.Mutex
	quiet     time.Duration
	published fingerprint.Digest
	since     *time.Time // first observation of the current modification
}

// NewModificationDetector returns a detector. current yields the fingerprint
// of the graph as edited, locked reports a held publish or user lock and
// published is the fingerprint of the last successful publish. A nil now
// uses time.Now.
func NewModificationDetector(current func() fingerprint.Digest, locked func() bool, published fingerprint.Digest, quiet time.Duration, now func() time.Time) *ModificationDetector {
	if now == nil {
		now = time.Now
	}
	if locked == nil {
		locked = func() bool { return false }
	}
	return &ModificationDetector{
		current:   current,
		locked:    locked,
		now:       now,
		quiet:     quiet,
		published: published,
	}
}

// IsModified reports whether the current graph differs from the published
// one. The first positive answer starts the quiet period timer; later edits
// do not restart it.
func (d *ModificationDetector) IsModified() bool {
	cur := d.current()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observe(cur)
}

// Modified reports whether the current graph differs from the published
// one without touching the quiet period timer.
func (d *ModificationDetector) Modified() bool {
	cur := d.current()
	d.mu.Lock()
	defer d.mu.Unlock()
	return cur != d.published
}

// observe must be called with mu held.
func (d *ModificationDetector) observe(cur fingerprint.Digest) bool {
	if cur == d.published {
		d.since = nil
		return false
	}
	if d.since == nil {
		t := d.now()
		d.since = &t
	}
	return true
}

// IsEligibleForInsert reports whether the graph is modified, the
// modification is at least the quiet period old and no lock is held.
func (d *ModificationDetector) IsEligibleForInsert() bool {
	cur := d.current()
	locked := d.locked()
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.observe(cur) {
		return false
	}
	return !locked && d.now().Sub(*d.since) >= d.quiet
}

// SetFingerprint records a successful publish of fp and disarms the timer.
func (d *ModificationDetector) SetFingerprint(fp fingerprint.Digest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = fp
	d.since = nil
}

// Fingerprint returns the last published fingerprint.
func (d *ModificationDetector) Fingerprint() fingerprint.Digest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.published
}

// SetQuietPeriod changes the quiet period. Shortening it disarms the timer,
// so the next observation starts a new period.
func (d *ModificationDetector) SetQuietPeriod(quiet time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if quiet < d.quiet {
		d.since = nil
	}
	d.quiet = quiet
}

// QuietPeriod returns the configured quiet period.
func (d *ModificationDetector) QuietPeriod() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quiet
}

// ModifiedSince returns when the pending modification was first observed.
func (d *ModificationDetector) ModifiedSince() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.since == nil {
		return time.Time{}, false
	}
	return *d.since, true
}
