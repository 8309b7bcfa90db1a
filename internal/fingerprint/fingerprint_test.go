package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sone/pkg/types"
)

func sampleGraph(t *testing.T) *types.Graph {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000)
	g := types.NewGraph("owner")
	g.Time = now
	g.Profile.FirstName = types.Ptr("Ada")
	_, err := g.Profile.AddFieldWithID("f1", "Hobby", "chess")
	require.NoError(t, err)
	_, err = g.Profile.AddFieldWithID("f2", "Town", "London")
	require.NoError(t, err)
	require.NoError(t, g.AddPost(types.Post{ID: "p1", AuthorID: "owner", Time: now, Text: "hello"}))
	require.NoError(t, g.AddPost(types.Post{ID: "p2", AuthorID: "owner", RecipientID: "bob", Time: now, Text: "hi bob"}))
	require.NoError(t, g.AddReply(types.PostReply{ID: "r1", AuthorID: "owner", PostID: "x", Time: now, Text: "re"}))
	require.NoError(t, g.AddAlbum("a", "", "Holiday", ""))
	require.NoError(t, g.AddAlbum("b", "", "Work", ""))
	require.NoError(t, g.AddImage("a", types.NewImage("i1", now, 640, 480, "beach", "")))
	require.NoError(t, g.AddImage("a", types.NewImage("i2", now, 640, 480, "sunset", "")))
	g.LikePost("remote-post")
	require.NoError(t, g.AddFriend("bob"))
	return g
}

func TestOfIsDeterministic(t *testing.T) {
	g := sampleGraph(t)
	assert.Equal(t, Of(g), Of(g))
	assert.Equal(t, Of(g), Of(g.Clone()))
	assert.Len(t, string(Of(g)), 64)
}

func TestOfIgnoresDerivedState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *types.Graph)
	}{
		{name: "post known flag", mutate: func(g *types.Graph) { _ = g.SetPostKnown("p1", true) }},
		{name: "reply known flag", mutate: func(g *types.Graph) { _ = g.SetReplyKnown("r1", true) }},
		{name: "document time", mutate: func(g *types.Graph) { g.Time = g.Time.Add(time.Hour) }},
		{name: "client block", mutate: func(g *types.Graph) { g.Client = &types.Client{Name: "x", Version: "1"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sampleGraph(t)
			before := Of(g)
			tt.mutate(g)
			assert.Equal(t, before, Of(g))
		})
	}
}

func TestOfDetectsOriginalChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, g *types.Graph)
	}{
		{name: "post text", mutate: func(t *testing.T, g *types.Graph) {
			require.NoError(t, g.RemovePost("p1"))
			require.NoError(t, g.AddPost(types.Post{ID: "p1", AuthorID: "owner", Time: time.UnixMilli(1_700_000_000_000), Text: "changed"}))
		}},
		{name: "profile field value", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.Profile.SetFieldValue("f1", "go")) }},
		{name: "profile field order", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.Profile.MoveFieldUp("f2")) }},
		{name: "absent vs empty name", mutate: func(t *testing.T, g *types.Graph) { g.Profile.LastName = types.Ptr("") }},
		{name: "album order", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.MoveAlbumUp("", "b")) }},
		{name: "image order", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.MoveImageUp("i2")) }},
		{name: "album moved", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.MoveAlbum("b", "a")) }},
		{name: "image key", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.SetImageKey("i1", "CHK@1")) }},
		{name: "album image", mutate: func(t *testing.T, g *types.Graph) { require.NoError(t, g.SetAlbumImage("a", "i2")) }},
		{name: "liked reply", mutate: func(t *testing.T, g *types.Graph) { g.LikeReply("remote-reply") }},
		{name: "friend removed", mutate: func(t *testing.T, g *types.Graph) { g.RemoveFriend("bob") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sampleGraph(t)
			before := Of(g)
			tt.mutate(t, g)
			assert.NotEqual(t, before, Of(g))
		})
	}
}

func TestFieldBoundaries(t *testing.T) {
	a := Post(types.Post{ID: "ab", AuthorID: "c"})
	b := Post(types.Post{ID: "a", AuthorID: "bc"})
	assert.NotEqual(t, a, b)
}
