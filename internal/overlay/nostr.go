package overlay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
)

// Nostr document layout: one parameterized replaceable event per identity.
const (
	DocumentKind = 30078
	DocumentTag  = "sone"
	EditionTag   = "edition"
)

// Nostr is an Overlay backed by nostr relays. Request key bases are hex
// public keys and insert key bases are hex secret keys. The edition travels
// in a tag of the document event; relays keep only the newest event per
// author, so any older requested edition redirects to it.
type Nostr struct {
	pool *RelayPool

	mu   deadlock.Mutex
	subs map[string]context.CancelFunc
}

// NewNostr returns a relay overlay over pool.
func NewNostr(pool *RelayPool) *Nostr {
	return &Nostr{pool: pool, subs: map[string]context.CancelFunc{}}
}

func documentFilter(base string) nostr.Filters {
	return nostr.Filters{nostr.Filter{
		Kinds:   []int{DocumentKind},
		Authors: []string{base},
		Tags:    nostr.TagMap{"d": []string{DocumentTag}},
	}}
}

// Fetch implements Overlay.
func (n *Nostr) Fetch(ctx context.Context, key Key) ([]byte, error) {
	ev, edition, err := n.newest(ctx, key.Base)
	if err != nil {
		return nil, err
	}
	switch {
	case edition > key.Edition:
		return nil, &RedirectError{Key: Key{Base: key.Base, Edition: edition}}
	case edition < key.Edition:
		return nil, ErrNotFound
	}
	return []byte(ev.Content), nil
}

// LatestEdition implements Overlay.
func (n *Nostr) LatestEdition(ctx context.Context, base string) (int64, error) {
	_, edition, err := n.newest(ctx, base)
	return edition, err
}

// Publish implements Overlay. The document is signed with the insert key.
func (n *Nostr) Publish(ctx context.Context, insert Key, doc []byte) (Key, error) {
	pub, err := nostr.GetPublicKey(insert.Base)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	ev := nostr.Event{
		PubKey:    pub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      DocumentKind,
		Tags: nostr.Tags{
			nostr.Tag{"d", DocumentTag},
			nostr.Tag{EditionTag, strconv.FormatInt(insert.Edition, 10)},
		},
		Content: string(doc),
	}
	if err := ev.Sign(insert.Base); err != nil {
		return Key{}, fmt.Errorf("sign document: %w", err)
	}
	if err := n.pool.Publish(ctx, ev); err != nil {
		return Key{}, err
	}
	return Key{Base: pub, Edition: insert.Edition}, nil
}

// Subscribe implements Overlay.
func (n *Nostr) Subscribe(base string, fn func(int64)) error {
	ctx, cancel := context.WithCancel(context.Background())
	err := n.pool.Watch(ctx, documentFilter(base), func(ev *nostr.Event) {
		if edition, ok := editionOf(ev, base); ok {
			fn(edition)
		}
	})
	if err != nil {
		cancel()
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if prev, ok := n.subs[base]; ok {
		prev()
	}
	n.subs[base] = cancel
	return nil
}

// Unsubscribe implements Overlay.
func (n *Nostr) Unsubscribe(base string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cancel, ok := n.subs[base]; ok {
		cancel()
		delete(n.subs, base)
	}
}

// newest returns the document event with the highest edition across all
// relays.
func (n *Nostr) newest(ctx context.Context, base string) (*nostr.Event, int64, error) {
	events, err := n.pool.Query(ctx, documentFilter(base))
	if err != nil {
		return nil, 0, err
	}
	var best *nostr.Event
	var bestEdition int64
	for _, ev := range events {
		if edition, ok := editionOf(ev, base); ok && (best == nil || edition > bestEdition) {
			best, bestEdition = ev, edition
		}
	}
	if best == nil {
		return nil, 0, ErrNotFound
	}
	return best, bestEdition, nil
}

// editionOf validates a document event and extracts its edition.
func editionOf(ev *nostr.Event, base string) (int64, bool) {
	if ev.PubKey != base || ev.Kind != DocumentKind {
		return 0, false
	}
	if ok, err := ev.CheckSignature(); err != nil || !ok {
		return 0, false
	}
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == EditionTag {
			edition, err := strconv.ParseInt(tag[1], 10, 64)
			if err != nil || edition < 0 {
				return 0, false
			}
			return edition, true
		}
	}
	return 0, false
}
