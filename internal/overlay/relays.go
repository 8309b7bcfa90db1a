package overlay

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/logging"
)

// DefaultQueryTimeout bounds a single relay query.
const DefaultQueryTimeout = 6 * time.Second

// RelayPool fans requests out to a fixed set of nostr relays. Connections
// are opened per request.
type RelayPool struct {
	urls    []string
	timeout time.Duration
	log     *logging.Logger
}

// NewRelayPool returns a pool over urls. A non-positive timeout selects
// DefaultQueryTimeout.
func NewRelayPool(urls []string, timeout time.Duration, log *logging.Logger) *RelayPool {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &RelayPool{urls: append([]string(nil), urls...), timeout: timeout, log: log.With("relays")}
}

// Query returns the validly signed events every relay holds for filters,
// deduplicated by event ID. Returns ErrUnavailable when no relay answered.
func (p *RelayPool) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	var (
		mu       deadlock.Mutex
		wg       deadlock.WaitGroup
		events   = map[string]*nostr.Event{}
		answered bool
	)
	for _, url := range p.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			got, err := p.query(ctx, url, filters)
			if err != nil {
				p.log.Trace("query %s: %v", url, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			answered = true
			for _, ev := range got {
				events[ev.ID] = ev
			}
		}(url)
	}
	wg.Wait()
	if !answered {
		return nil, ErrUnavailable
	}
	out := make([]*nostr.Event, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
	}
	return out, nil
}

func (p *RelayPool) query(ctx context.Context, url string, filters nostr.Filters) ([]*nostr.Event, error) {
	relay, err := p.connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer relay.Close()
	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	sub, err := relay.Subscribe(qctx, filters)
	if err != nil {
		return nil, err
	}

	var out []*nostr.Event
	for {
		select {
		case ev := <-sub.Events:
			if ev == nil {
				return out, nil
			}
			if ok, err := ev.CheckSignature(); err == nil && ok {
				out = append(out, ev)
			}
		case <-sub.EndOfStoredEvents:
			return out, nil
		case <-qctx.Done():
			return out, nil
		}
	}
}

// Publish sends ev to every relay. It succeeds when at least one relay
// accepts the event.
func (p *RelayPool) Publish(ctx context.Context, ev nostr.Event) error {
	accepted := 0
	for _, url := range p.urls {
		relay, err := p.connect(ctx, url)
		if err != nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, p.timeout)
		status, err := relay.Publish(pctx, ev)
		cancel()
		relay.Close()
		if err != nil || status == nostr.PublishStatusFailed {
			p.log.Debug("publish to %s rejected: %v", url, err)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return ErrUnavailable
	}
	return nil
}

// Watch streams validly signed events matching filters from every relay to
// fn until ctx is cancelled. fn may be called concurrently.
func (p *RelayPool) Watch(ctx context.Context, filters nostr.Filters, fn func(*nostr.Event)) error {
	if len(p.urls) == 0 {
		return ErrUnavailable
	}
	for _, url := range p.urls {
		go p.watch(ctx, url, filters, fn)
	}
	return nil
}

func (p *RelayPool) watch(ctx context.Context, url string, filters nostr.Filters, fn func(*nostr.Event)) {
	relay, err := p.connect(ctx, url)
	if err != nil {
		return
	}
	defer relay.Close()
	sub, err := relay.Subscribe(ctx, filters)
	if err != nil {
		p.log.Debug("subscribe on %s: %v", url, err)
		return
	}
	for {
		select {
		case ev := <-sub.Events:
			if ev == nil {
				return
			}
			if ok, err := ev.CheckSignature(); err == nil && ok {
				fn(ev)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Ping reports whether at least one relay accepts a connection.
func (p *RelayPool) Ping(ctx context.Context) error {
	for _, url := range p.urls {
		relay, err := p.connect(ctx, url)
		if err == nil {
			relay.Close()
			return nil
		}
	}
	return ErrUnavailable
}

func (p *RelayPool) connect(ctx context.Context, url string) (*nostr.Relay, error) {
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, url, err)
	}
	return relay, nil
}

// Newest returns the event with the latest creation time, or nil.
func Newest(events []*nostr.Event) *nostr.Event {
	var best *nostr.Event
	for _, ev := range events {
		if best == nil || ev.CreatedAt > best.CreatedAt {
			best = ev
		}
	}
	return best
}
