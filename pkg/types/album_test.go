package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlbumGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph("owner")
	require.NoError(t, g.AddAlbum("a", "", "A", ""))
	require.NoError(t, g.AddAlbum("b", "", "B", ""))
	require.NoError(t, g.AddAlbum("a1", "a", "A1", ""))
	require.NoError(t, g.AddAlbum("a2", "a", "A2", ""))
	return g
}

func TestGraphAddAlbum(t *testing.T) {
	g := newAlbumGraph(t)

	assert.Equal(t, []string{"a", "b"}, g.RootAlbums())
	a, ok := g.Album("a")
	require.True(t, ok)
	assert.Equal(t, []string{"a1", "a2"}, a.Children())

	child, _ := g.Album("a1")
	assert.Equal(t, "a", child.ParentID)

	assert.ErrorIs(t, g.AddAlbum("a", "", "dup", ""), ErrDuplicateID)
	assert.ErrorIs(t, g.AddAlbum("c", "missing", "C", ""), ErrAlbumNotFound)
	assert.ErrorIs(t, g.AddAlbum("", "", "C", ""), ErrInvalidID)
}

func TestGraphMoveAlbum(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		newParent string
		wantErr   error
		wantRoots []string
	}{
		{name: "move child to root", id: "a1", newParent: "", wantRoots: []string{"a", "b", "a1"}},
		{name: "move root below sibling", id: "b", newParent: "a", wantRoots: []string{"a"}},
		{name: "move below itself", id: "a", newParent: "a", wantErr: ErrAlbumCycle},
		{name: "move below descendant", id: "a", newParent: "a2", wantErr: ErrAlbumCycle},
		{name: "unknown album", id: "x", newParent: "", wantErr: ErrAlbumNotFound},
		{name: "unknown parent", id: "a1", newParent: "x", wantErr: ErrAlbumNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newAlbumGraph(t)
			err := g.MoveAlbum(tt.id, tt.newParent)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, []string{"a", "b"}, g.RootAlbums())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoots, g.RootAlbums())

			moved, _ := g.Album(tt.id)
			assert.Equal(t, tt.newParent, moved.ParentID)
			if tt.newParent != "" {
				parent, _ := g.Album(tt.newParent)
				assert.Contains(t, parent.Children(), tt.id)
			}
		})
	}
}

func TestGraphMoveAlbumUpDown(t *testing.T) {
	g := newAlbumGraph(t)

	require.NoError(t, g.MoveAlbumUp("a", "a2"))
	a, _ := g.Album("a")
	assert.Equal(t, []string{"a2", "a1"}, a.Children())

	assert.ErrorIs(t, g.MoveAlbumUp("a", "a2"), ErrNotFirst)
	assert.ErrorIs(t, g.MoveAlbumDown("a", "a1"), ErrNotLast)
	assert.ErrorIs(t, g.MoveAlbumUp("b", "a1"), ErrNotChild)
	assert.ErrorIs(t, g.MoveAlbumDown("", "a1"), ErrNotChild)

	require.NoError(t, g.MoveAlbumDown("", "a"))
	assert.Equal(t, []string{"b", "a"}, g.RootAlbums())
}

func TestGraphRemoveAlbum(t *testing.T) {
	g := newAlbumGraph(t)

	assert.ErrorIs(t, g.RemoveAlbum("a"), ErrAlbumNotEmpty)
	require.NoError(t, g.RemoveAlbum("a1"))
	a, _ := g.Album("a")
	assert.Equal(t, []string{"a2"}, a.Children())
	_, ok := g.Album("a1")
	assert.False(t, ok)
	assert.ErrorIs(t, g.RemoveAlbum("a1"), ErrAlbumNotFound)
}

func TestGraphImages(t *testing.T) {
	g := newAlbumGraph(t)
	now := time.Now()

	first := NewImage("i1", now, 10, 20, "one", "")
	second := NewImage("i2", now, 10, 20, "two", "")
	require.NoError(t, g.AddImage("a1", first))
	require.NoError(t, g.AddImage("a1", second))

	a, _ := g.Album("a1")
	assert.Equal(t, []string{"i1", "i2"}, a.Images())
	assert.Equal(t, "i1", a.AlbumImage, "first inserted image becomes album image")

	img, ok := g.Image("i2")
	require.True(t, ok)
	assert.Equal(t, "owner", img.OwnerID())
	assert.Equal(t, "a1", img.AlbumID())
	assert.False(t, img.Published())

	t.Run("image cannot be added twice", func(t *testing.T) {
		assert.ErrorIs(t, g.AddImage("a2", NewImage("i1", now, 1, 1, "", "")), ErrDuplicateID)
	})

	t.Run("key is set once", func(t *testing.T) {
		require.NoError(t, g.SetImageKey("i1", "CHK@abc"))
		assert.ErrorIs(t, g.SetImageKey("i1", "CHK@def"), ErrFieldAlreadySet)
		img, _ := g.Image("i1")
		assert.Equal(t, "CHK@abc", img.Key())
	})

	t.Run("album image must belong to album", func(t *testing.T) {
		assert.ErrorIs(t, g.SetAlbumImage("a2", "i1"), ErrImageNotInAlbum)
		require.NoError(t, g.SetAlbumImage("a1", "i2"))
	})

	t.Run("move images", func(t *testing.T) {
		require.NoError(t, g.MoveImageUp("i2"))
		a, _ := g.Album("a1")
		assert.Equal(t, []string{"i2", "i1"}, a.Images())
		assert.ErrorIs(t, g.MoveImageUp("i2"), ErrNotFirst)
		assert.ErrorIs(t, g.MoveImageDown("i1"), ErrNotLast)
	})

	t.Run("removing album image falls back to first image", func(t *testing.T) {
		require.NoError(t, g.RemoveImage("i2"))
		a, _ := g.Album("a1")
		assert.Equal(t, []string{"i1"}, a.Images())
		assert.Equal(t, "i1", a.AlbumImage)
		assert.ErrorIs(t, g.RemoveImage("i2"), ErrImageNotFound)
	})
}

func TestAttachedImageCannotBeReassigned(t *testing.T) {
	g := newAlbumGraph(t)
	other := NewGraph("other")
	require.NoError(t, other.AddAlbum("x", "", "X", ""))

	img := NewImage("i1", time.Now(), 1, 1, "", "")
	require.NoError(t, g.AddImage("a", img))

	attached, _ := g.Image("i1")
	assert.ErrorIs(t, other.AddImage("x", &attached), ErrFieldAlreadySet)
}

func TestWalkAlbumsParentsFirst(t *testing.T) {
	g := newAlbumGraph(t)
	require.NoError(t, g.AddAlbum("a1x", "a1", "deep", ""))

	var order []string
	var depths []int
	g.WalkAlbums(func(a Album, depth int) {
		order = append(order, a.ID)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"a", "a1", "a1x", "a2", "b"}, order)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, depths)
}
