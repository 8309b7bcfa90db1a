package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sone/internal/document"
	"github.com/mesh-intelligence/sone/internal/identity"
	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/overlay"
	"github.com/mesh-intelligence/sone/internal/sqlite"
	"github.com/mesh-intelligence/sone/pkg/sone"
	"github.com/mesh-intelligence/sone/pkg/types"
)

type fixture struct {
	svc   *identity.MemoryService
	ov    *overlay.Memory
	store types.Store
	dir   string
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		svc: identity.NewMemoryService(),
		ov:  overlay.NewMemory(),
		dir: t.TempDir(),
		now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	f.store = sqlite.NewBackend()
	require.NoError(t, f.store.Attach(types.StoreConfig{Backend: types.BackendSQLite, DataDir: f.dir}))
	t.Cleanup(func() { f.store.Detach() })

	f.svc.AddOwn("me", "Me", "req-me", "ins-me", types.DefaultIdentityContext)
	f.ov.Pair("ins-me", "req-me")
	f.svc.AddRemote("alice", "Alice", "req-alice", types.DefaultIdentityContext)
	f.svc.SetTrust("me", "alice", types.NewTrust(types.Ptr(50), nil, types.Ptr(1)))
	return f
}

func (f *fixture) engine(t *testing.T) *Engine {
	t.Helper()
	cfg := types.DefaultConfig(f.dir)
	e, err := New(cfg, f.svc, f.ov, f.store, logging.Nop())
	require.NoError(t, err)
	e.now = func() time.Time { return f.now }
	return e
}

// pump runs one identity poll and applies the resulting events.
func pump(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.identities.Cycle(context.Background()))
	ev := e.identities.Events()
	for {
		select {
		case o := <-ev.OwnAdded:
			e.addOwn(o)
		case o := <-ev.OwnRemoved:
			e.removeOwn(o)
		case c := <-ev.Added:
			e.retain(c.Identity.ID, c.Identity.RequestURI, c.Own.ID)
		case c := <-ev.Removed:
			e.release(c.Identity.ID, c.Own.ID)
		case <-ev.Updated:
		default:
			return
		}
	}
}

// syncContent runs one attempt for id and applies the resulting events.
func syncContent(t *testing.T, e *Engine, id string) {
	t.Helper()
	_ = e.content.Sync(context.Background(), id)
	cs := e.content.Events()
	for {
		select {
		case s := <-cs.Synced:
			e.onSynced(context.Background(), s)
		case <-cs.PostAdded:
		case <-cs.PostRemoved:
		case <-cs.ReplyAdded:
		case <-cs.ReplyRemoved:
		default:
			return
		}
	}
}

func remoteDoc(t *testing.T, owner string, at time.Time, posts ...types.Post) []byte {
	t.Helper()
	g := types.NewGraph(owner)
	g.Time = at
	for _, p := range posts {
		require.NoError(t, g.AddPost(p))
	}
	data, err := document.Marshal(g)
	require.NoError(t, err)
	return data
}

func TestIdentityEventsDriveLanes(t *testing.T) {
	f := newFixture(t)
	f.svc.AddOwn("you", "You", "req-you", "ins-you", types.DefaultIdentityContext)
	f.svc.SetTrust("you", "alice", types.Trust{})
	e := f.engine(t)

	pump(t, e)
	assert.Equal(t, []string{"me", "you"}, e.OwnIdentities())
	assert.True(t, e.content.Tracked("me"), "own identity refreshes itself")
	assert.True(t, e.content.Tracked("alice"))

	f.svc.Untrust("me", "alice")
	pump(t, e)
	assert.True(t, e.content.Tracked("alice"), "still trusted by you")

	f.svc.Untrust("you", "alice")
	pump(t, e)
	assert.False(t, e.content.Tracked("alice"))

	f.svc.RemoveOwn("you")
	pump(t, e)
	assert.Equal(t, []string{"me"}, e.OwnIdentities())
	assert.False(t, e.content.Tracked("you"))
}

func TestEditPublishesAfterQuietPeriod(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	pump(t, e)
	ctx := context.Background()

	p, err := e.CreatePost("me", "", "hello")
	require.NoError(t, err)
	st := e.Status("me")
	assert.True(t, st.Modified)

	f.now = f.now.Add(30 * time.Second)
	assert.Empty(t, e.scheduler.Check(ctx))

	f.now = f.now.Add(31 * time.Second)
	assert.Equal(t, []string{"me"}, e.scheduler.Check(ctx))
	e.scheduler.Wait()

	latest, err := f.ov.LatestEdition(ctx, "req-me")
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
	data, err := f.ov.Fetch(ctx, overlay.Key{Base: "req-me", Edition: latest})
	require.NoError(t, err)
	g, err := document.Parse("me", data)
	require.NoError(t, err)
	_, ok := g.Post(p.ID)
	assert.True(t, ok)
	require.NotNil(t, g.Client)
	assert.Equal(t, sone.ClientName, g.Client.Name)

	st = e.Status("me")
	assert.False(t, st.Modified)
	assert.False(t, st.LastPublishFailed)
	assert.Equal(t, int64(1), st.Edition)

	fps, err := f.store.GetTable(types.FingerprintsTable)
	require.NoError(t, err)
	_, err = fps.Get("me")
	assert.NoError(t, err)
}

func TestPublishFailureIsReported(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	pump(t, e)
	ctx := context.Background()

	_, err := e.CreatePost("me", "", "hello")
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Minute)
	f.ov.FailNext("ins-me", overlay.ErrUnavailable)
	assert.Equal(t, []string{"me"}, e.scheduler.Check(ctx))
	e.scheduler.Wait()

	st := e.Status("me")
	assert.True(t, st.LastPublishFailed)
	assert.True(t, st.Modified)

	assert.Equal(t, []string{"me"}, e.scheduler.Check(ctx), "retried on the next check")
	e.scheduler.Wait()
	assert.False(t, e.Status("me").LastPublishFailed)
}

func TestUserLockBlocksPublish(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	pump(t, e)
	ctx := context.Background()

	require.NoError(t, e.Lock("me"))
	_, err := e.CreatePost("me", "", "hello")
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	assert.Empty(t, e.scheduler.Check(ctx))

	require.NoError(t, e.Unlock("me"))
	assert.Equal(t, []string{"me"}, e.scheduler.Check(ctx))
	e.scheduler.Wait()

	assert.ErrorIs(t, e.Lock("nobody"), ErrUnknownOwnIdentity)
}

func TestSelfRefreshRestoresOwnGraph(t *testing.T) {
	f := newFixture(t)
	post := types.Post{ID: "old-post", AuthorID: "me", Time: f.now.Add(-time.Hour), Text: "from before"}
	f.ov.Put(overlay.Key{Base: "req-me", Edition: 2}, remoteDoc(t, "me", f.now.Add(-time.Hour), post))

	e := f.engine(t)
	pump(t, e)
	syncContent(t, e, "me")

	g, ok := e.OwnGraph("me")
	require.True(t, ok)
	_, ok = g.Post("old-post")
	assert.True(t, ok)
	st := e.Status("me")
	assert.False(t, st.Modified, "restored graph counts as published")
	assert.Equal(t, int64(2), st.Edition)
}

func TestDraftSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	pump(t, e)
	p, err := e.CreatePost("me", "", "draft")
	require.NoError(t, err)

	restarted := f.engine(t)
	pump(t, restarted)
	g, ok := restarted.OwnGraph("me")
	require.True(t, ok)
	_, ok = g.Post(p.ID)
	assert.True(t, ok)
	assert.True(t, restarted.Status("me").Modified)
}

func TestEditErrorsLeaveGraphUnchanged(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	pump(t, e)

	before, _ := e.OwnGraph("me")
	err := e.UpdateProfile("me", func(p *types.Profile) { p.Avatar = types.Ptr("missing") })
	assert.ErrorIs(t, err, types.ErrImageNotFound)
	assert.ErrorIs(t, e.DeleteAlbum("me", "nope"), types.ErrAlbumNotFound)
	after, _ := e.OwnGraph("me")
	assert.Same(t, before, after)
	assert.False(t, e.Status("me").Modified)

	assert.ErrorIs(t, e.Edit("nobody", func(*types.Graph) error { return nil }), ErrUnknownOwnIdentity)
}

func TestAlbumAndProfileEditing(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	pump(t, e)

	root, err := e.CreateAlbum("me", "", "Trips", "")
	require.NoError(t, err)
	child, err := e.CreateAlbum("me", root, "Alps", "snow")
	require.NoError(t, err)
	assert.ErrorIs(t, e.MoveAlbum("me", root, child), types.ErrAlbumCycle)
	img, err := e.CreateImage("me", child, "key-1", f.now, 640, 480, "peak", "")
	require.NoError(t, err)
	require.NoError(t, e.UpdateProfile("me", func(p *types.Profile) { p.Avatar = types.Ptr(img) }))

	field, err := e.AddProfileField("me", "Hobby", "climbing")
	require.NoError(t, err)
	_, err = e.AddProfileField("me", "Hobby", "")
	assert.ErrorIs(t, err, types.ErrDuplicateField)

	g, _ := e.OwnGraph("me")
	a, ok := g.Album(child)
	require.True(t, ok)
	assert.Equal(t, img, a.AlbumImage)
	got, ok := g.Profile.Field(field.ID)
	require.True(t, ok)
	assert.Equal(t, "climbing", got.Value)
}

func TestFeedAppliesVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older := types.Post{ID: "a1", AuthorID: "alice", Time: f.now.Add(-2 * time.Hour), Text: "one"}
	newer := types.Post{ID: "a2", AuthorID: "alice", Time: f.now.Add(-time.Hour), Text: "two"}
	future := types.Post{ID: "a3", AuthorID: "alice", Time: f.now.Add(time.Hour), Text: "later"}
	f.ov.Put(overlay.Key{Base: "req-alice", Edition: 1}, remoteDoc(t, "alice", f.now.Add(-time.Minute), older, newer, future))

	e := f.engine(t)
	pump(t, e)
	syncContent(t, e, "alice")

	ids := func(posts []types.Post) []string {
		var out []string
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a2", "a1"}, ids(e.Feed("")))
	assert.Empty(t, e.Feed("me"), "not followed")

	require.NoError(t, e.Follow("me", "alice"))
	assert.Equal(t, []string{"a2", "a1"}, ids(e.Feed("me")))

	r, err := e.CreateReply("me", "a1", "nice")
	require.NoError(t, err)
	replies := e.Replies("me", "a1")
	require.Len(t, replies, 1)
	assert.Equal(t, r.ID, replies[0].ID)

	f.svc.SetTrust("me", "alice", types.NewTrust(types.Ptr(-1), nil, types.Ptr(1)))
	require.NoError(t, e.identities.Cycle(ctx))
	assert.Empty(t, e.Feed("me"), "explicit distrust hides")
	assert.Empty(t, e.Replies("me", "a1"))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}
}
