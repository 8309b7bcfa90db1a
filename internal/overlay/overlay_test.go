package overlay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sone/internal/logging"
)

func TestKeyParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "USK@abc/sone/4", want: Key{Base: "USK@abc/sone", Edition: 4}},
		{in: "base/0", want: Key{Base: "base", Edition: 0}},
		{in: "base", wantErr: true},
		{in: "/3", wantErr: true},
		{in: "base/", wantErr: true},
		{in: "base/-1", wantErr: true},
		{in: "base/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
	assert.Equal(t, Key{Base: "b", Edition: 2}, Key{Base: "b", Edition: 1}.Next())
}

func TestMemoryFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Fetch(ctx, Key{Base: "b", Edition: 0})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.LatestEdition(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	m.Put(Key{Base: "b", Edition: 3}, []byte("three"))

	doc, err := m.Fetch(ctx, Key{Base: "b", Edition: 3})
	require.NoError(t, err)
	assert.Equal(t, "three", string(doc))

	_, err = m.Fetch(ctx, Key{Base: "b", Edition: 1})
	var redirect *RedirectError
	require.True(t, errors.As(err, &redirect))
	assert.Equal(t, Key{Base: "b", Edition: 3}, redirect.Key)

	_, err = m.Fetch(ctx, Key{Base: "b", Edition: 4})
	assert.ErrorIs(t, err, ErrNotFound)

	latest, err := m.LatestEdition(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)
	assert.Equal(t, 4, m.Fetches("b"))
}

func TestMemoryFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(Key{Base: "b", Edition: 0}, []byte("x"))

	m.FailNext("b", ErrUnavailable)
	_, err := m.Fetch(ctx, Key{Base: "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.Fetch(ctx, Key{Base: "b"})
	assert.NoError(t, err, "failure is consumed")

	m.SetDown(true)
	_, err = m.LatestEdition(ctx, "b")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, m.Subscribe("b", func(int64) {}), ErrUnavailable)
	m.SetDown(false)
}

func TestMemoryPublish(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Pair("insert", "request")

	var notified []int64
	require.NoError(t, m.Subscribe("request", func(ed int64) { notified = append(notified, ed) }))
	assert.True(t, m.Subscribed("request"))

	key, err := m.Publish(ctx, Key{Base: "insert", Edition: 0}, []byte("v0"))
	require.NoError(t, err)
	assert.Equal(t, Key{Base: "request", Edition: 0}, key)

	key, err = m.Publish(ctx, Key{Base: "insert", Edition: 0}, []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), key.Edition, "editions never go backwards")

	doc, err := m.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(doc))
	assert.Equal(t, []int64{0, 1}, notified)

	m.Unsubscribe("request")
	assert.False(t, m.Subscribed("request"))
	_, err = m.Publish(ctx, Key{Base: "insert", Edition: 7}, []byte("v7"))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, notified)
}

func TestNostrWithoutRelaysIsUnavailable(t *testing.T) {
	ctx := context.Background()
	n := NewNostr(NewRelayPool(nil, time.Second, logging.Nop()))
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)

	_, err = n.Fetch(ctx, Key{Base: pk})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = n.LatestEdition(ctx, pk)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = n.Publish(ctx, Key{Base: sk, Edition: 1}, []byte("{}"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, n.Subscribe(pk, func(int64) {}), ErrUnavailable)
	n.Unsubscribe(pk)
	assert.ErrorIs(t, NewRelayPool(nil, 0, logging.Nop()).Ping(ctx), ErrUnavailable)
}

func TestNewest(t *testing.T) {
	assert.Nil(t, Newest(nil))
	older := &nostr.Event{ID: "a", CreatedAt: 10}
	newer := &nostr.Event{ID: "b", CreatedAt: 20}
	assert.Equal(t, newer, Newest([]*nostr.Event{older, newer}))
}

func TestEditionOf(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)

	signed := func(tags nostr.Tags) *nostr.Event {
		ev := nostr.Event{
			PubKey:    pk,
			CreatedAt: nostr.Timestamp(time.Now().Unix()),
			Kind:      DocumentKind,
			Tags:      tags,
			Content:   "{}",
		}
		require.NoError(t, ev.Sign(sk))
		return &ev
	}

	ed, ok := editionOf(signed(nostr.Tags{{"d", DocumentTag}, {EditionTag, "12"}}), pk)
	assert.True(t, ok)
	assert.Equal(t, int64(12), ed)

	_, ok = editionOf(signed(nostr.Tags{{"d", DocumentTag}}), pk)
	assert.False(t, ok, "missing edition tag")

	_, ok = editionOf(signed(nostr.Tags{{EditionTag, "-2"}}), pk)
	assert.False(t, ok, "negative edition")

	_, ok = editionOf(signed(nostr.Tags{{EditionTag, "1"}}), "someone-else")
	assert.False(t, ok, "wrong author")

	tampered := signed(nostr.Tags{{EditionTag, "1"}})
	tampered.Content = "changed"
	_, ok = editionOf(tampered, pk)
	assert.False(t, ok, "bad signature")
}
