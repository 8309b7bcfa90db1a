package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sone/internal/fingerprint"
	"github.com/mesh-intelligence/sone/internal/logging"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)} }

func TestEligibilityWaitsForQuietPeriod(t *testing.T) {
	clock := newClock()
	current := fingerprint.Digest("a")
	d := NewModificationDetector(func() fingerprint.Digest { return current }, nil, "a", time.Minute, clock.now)

	assert.False(t, d.IsModified())
	current = "b"
	assert.True(t, d.IsModified())
	assert.False(t, d.IsEligibleForInsert())

	clock.advance(30 * time.Second)
	assert.False(t, d.IsEligibleForInsert())

	current = "c"
	clock.advance(30*time.Second + time.Millisecond)
	assert.True(t, d.IsEligibleForInsert(), "later edits do not restart the timer")

	d.SetFingerprint("c")
	assert.False(t, d.IsModified())
	assert.False(t, d.IsEligibleForInsert())
	_, armed := d.ModifiedSince()
	assert.False(t, armed)
}

func TestModifiedLeavesTimerAlone(t *testing.T) {
	clock := newClock()
	d := NewModificationDetector(func() fingerprint.Digest { return "b" }, nil, "a", time.Minute, clock.now)

	assert.True(t, d.Modified())
	_, armed := d.ModifiedSince()
	assert.False(t, armed, "reading the state does not start the quiet period")

	clock.advance(time.Hour)
	assert.True(t, d.IsModified())
	clock.advance(30 * time.Second)
	assert.True(t, d.Modified())
	assert.False(t, d.IsEligibleForInsert(), "timer started at the first observation")
}

func TestEligibilityBlockedByLock(t *testing.T) {
	clock := newClock()
	locks := NewLocks()
	locks.LockUser("me")
	d := NewModificationDetector(func() fingerprint.Digest { return "b" },
		func() bool { return locks.IsLocked("me") }, "a", time.Minute, clock.now)

	assert.True(t, d.IsModified())
	for range 10 {
		clock.advance(time.Hour)
		assert.False(t, d.IsEligibleForInsert())
	}
	locks.UnlockUser("me")
	assert.True(t, d.IsEligibleForInsert(), "lock does not reset the timer")
}

func TestRevertingEditDisarmsTimer(t *testing.T) {
	clock := newClock()
	current := fingerprint.Digest("b")
	d := NewModificationDetector(func() fingerprint.Digest { return current }, nil, "a", time.Minute, clock.now)
	assert.True(t, d.IsModified())
	clock.advance(45 * time.Second)
	current = "a"
	assert.False(t, d.IsModified())
	current = "b"
	clock.advance(45 * time.Second)
	assert.False(t, d.IsEligibleForInsert())
}

func TestShorterQuietPeriodRestartsTimer(t *testing.T) {
	clock := newClock()
	d := NewModificationDetector(func() fingerprint.Digest { return "b" }, nil, "a", time.Minute, clock.now)
	assert.True(t, d.IsModified())
	clock.advance(50 * time.Second)

	d.SetQuietPeriod(20 * time.Second)
	assert.False(t, d.IsEligibleForInsert())
	clock.advance(20 * time.Second)
	assert.True(t, d.IsEligibleForInsert())

	d.SetQuietPeriod(time.Hour)
	assert.False(t, d.IsEligibleForInsert())
	since, armed := d.ModifiedSince()
	require.True(t, armed)
	assert.Equal(t, clock.t.Add(-20*time.Second), since, "lengthening keeps the timer")
}

func TestLocks(t *testing.T) {
	l := NewLocks()
	assert.True(t, l.TryLock("me"))
	assert.False(t, l.TryLock("me"))
	assert.True(t, l.Publishing("me"))
	l.Unlock("me")
	assert.False(t, l.IsLocked("me"))

	l.LockUser("me")
	assert.True(t, l.UserLocked("me"))
	assert.False(t, l.TryLock("me"))
	l.UnlockUser("me")
	assert.True(t, l.TryLock("me"))
}

func TestSchedulerPublishesOncePerEligibleIdentity(t *testing.T) {
	clock := newClock()
	locks := NewLocks()
	release := make(chan struct{})
	calls := make(chan string, 4)
	publish := func(_ context.Context, id string) (fingerprint.Digest, error) {
		calls <- id
		<-release
		return "b", nil
	}
	s := NewScheduler(locks, publish, time.Second, logging.Nop())
	d := NewModificationDetector(func() fingerprint.Digest { return "b" },
		func() bool { return locks.IsLocked("me") }, "a", 0, clock.now)
	s.Register("me", d)

	ctx := context.Background()
	assert.Equal(t, []string{"me"}, s.Check(ctx))
	assert.Equal(t, "me", <-calls)
	assert.Empty(t, s.Check(ctx), "in-flight publish blocks a second dispatch")

	close(release)
	s.Wait()
	assert.False(t, locks.IsLocked("me"))
	assert.False(t, s.LastPublishFailed("me"))
	assert.Equal(t, fingerprint.Digest("b"), d.Fingerprint())
	assert.Empty(t, s.Check(ctx), "nothing left to publish")
}

func TestSchedulerFailureKeepsTimerArmed(t *testing.T) {
	clock := newClock()
	locks := NewLocks()
	fail := true
	publish := func(context.Context, string) (fingerprint.Digest, error) {
		if fail {
			return "", errors.New("relay rejected")
		}
		return "b", nil
	}
	s := NewScheduler(locks, publish, time.Second, logging.Nop())
	d := NewModificationDetector(func() fingerprint.Digest { return "b" },
		func() bool { return locks.IsLocked("me") }, "a", time.Minute, clock.now)
	s.Register("me", d)
	ctx := context.Background()

	assert.Empty(t, s.Check(ctx))
	clock.advance(time.Minute)
	assert.Equal(t, []string{"me"}, s.Check(ctx))
	s.Wait()
	assert.True(t, s.LastPublishFailed("me"))
	assert.Equal(t, fingerprint.Digest("a"), d.Fingerprint())
	assert.True(t, d.IsEligibleForInsert(), "retry on next tick")

	fail = false
	assert.Equal(t, []string{"me"}, s.Check(ctx))
	s.Wait()
	assert.False(t, s.LastPublishFailed("me"))

	s.Unregister("me")
	_, ok := s.Detector("me")
	assert.False(t, ok)
}

func TestSchedulerRunStops(t *testing.T) {
	s := NewScheduler(NewLocks(), nil, time.Millisecond, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
