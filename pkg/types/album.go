package types

import (
	"slices"
	"time"
)

// Album is a node of an identity's album tree. Albums live in the Graph's
// arena keyed by ID; ParentID and the parent's child list are always updated
// together by the Graph methods. An empty ParentID marks a root album.
type Album struct {
	ID          string
	ParentID    string
	Title       string
	Description string
	AlbumImage  string // image ID, empty when the album has no images

	children []string
	images   []string
}

// Children returns the ordered child album IDs.
func (a Album) Children() []string { return slices.Clone(a.children) }

// Images returns the ordered image IDs.
func (a Album) Images() []string { return slices.Clone(a.images) }

// Image is a picture inside an album. OwnerID and AlbumID are assigned when
// the image is added to a graph and cannot be reassigned. The content key is
// set once; its presence means the image data has been published.
type Image struct {
	ID           string
	CreationTime time.Time
	Width        int
	Height       int
	Title        string
	Description  string

	ownerID string
	albumID string
	key     string
}

// NewImage builds an unattached image.
func NewImage(id string, creationTime time.Time, width, height int, title, description string) *Image {
	return &Image{
		ID:           id,
		CreationTime: creationTime,
		Width:        width,
		Height:       height,
		Title:        title,
		Description:  description,
	}
}

// OwnerID returns the identity the image belongs to.
func (i Image) OwnerID() string { return i.ownerID }

// AlbumID returns the album the image belongs to.
func (i Image) AlbumID() string { return i.albumID }

// Key returns the content key, empty if the image is not published yet.
func (i Image) Key() string { return i.key }

// Published reports whether the image carries a content key.
func (i Image) Published() bool { return i.key != "" }

// SetKey assigns the content key of an unattached image.
// Returns ErrFieldAlreadySet if a key is already present.
func (i *Image) SetKey(key string) error {
	if key == "" {
		return ErrInvalidData
	}
	if i.key != "" {
		return ErrFieldAlreadySet
	}
	i.key = key
	return nil
}

// Album returns a copy of the album with the given ID.
func (g *Graph) Album(id string) (Album, bool) {
	a, ok := g.albums[id]
	if !ok {
		return Album{}, false
	}
	return a.clone(), true
}

// RootAlbums returns the ordered IDs of the top-level albums.
func (g *Graph) RootAlbums() []string { return slices.Clone(g.rootAlbums) }

// Image returns a copy of the image with the given ID.
func (g *Graph) Image(id string) (Image, bool) {
	i, ok := g.images[id]
	if !ok {
		return Image{}, false
	}
	return *i, true
}

// WalkAlbums visits every album depth-first, parents before children, in
// their stored order.
func (g *Graph) WalkAlbums(fn func(a Album, depth int)) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			a := g.albums[id]
			fn(a.clone(), depth)
			walk(a.children, depth+1)
		}
	}
	walk(g.rootAlbums, 0)
}

// AddAlbum inserts a new album below parentID, or at the top level when
// parentID is empty. The album is appended after its existing siblings.
func (g *Graph) AddAlbum(id, parentID, title, description string) error {
	if id == "" {
		return ErrInvalidID
	}
	if g.idInUse(id) {
		return ErrDuplicateID
	}
	if parentID != "" {
		if _, ok := g.albums[parentID]; !ok {
			return ErrAlbumNotFound
		}
	}
	g.albums[id] = &Album{ID: id, ParentID: parentID, Title: title, Description: description}
	g.attachAlbum(id, parentID)
	return nil
}

// UpdateAlbum replaces the title and description of an album.
func (g *Graph) UpdateAlbum(id, title, description string) error {
	a, ok := g.albums[id]
	if !ok {
		return ErrAlbumNotFound
	}
	a.Title = title
	a.Description = description
	return nil
}

// RemoveAlbum deletes an empty album. Returns ErrAlbumNotEmpty if it still
// has child albums or images.
func (g *Graph) RemoveAlbum(id string) error {
	a, ok := g.albums[id]
	if !ok {
		return ErrAlbumNotFound
	}
	if len(a.children) > 0 || len(a.images) > 0 {
		return ErrAlbumNotEmpty
	}
	g.detachAlbum(id, a.ParentID)
	delete(g.albums, id)
	return nil
}

// MoveAlbum re-parents an album, appending it to the new parent's children.
// An empty newParentID moves it to the top level. Moving an album below
// itself or one of its descendants returns ErrAlbumCycle.
func (g *Graph) MoveAlbum(id, newParentID string) error {
	a, ok := g.albums[id]
	if !ok {
		return ErrAlbumNotFound
	}
	if newParentID != "" {
		if _, ok := g.albums[newParentID]; !ok {
			return ErrAlbumNotFound
		}
		for cur := newParentID; cur != ""; cur = g.albums[cur].ParentID {
			if cur == id {
				return ErrAlbumCycle
			}
		}
	}
	if a.ParentID == newParentID {
		return nil
	}
	g.detachAlbum(id, a.ParentID)
	a.ParentID = newParentID
	g.attachAlbum(id, newParentID)
	return nil
}

// MoveAlbumUp swaps an album with its preceding sibling under parentID.
// Returns ErrNotChild if the album is not a child of parentID.
func (g *Graph) MoveAlbumUp(parentID, id string) error {
	siblings, err := g.siblingsOf(parentID, id)
	if err != nil {
		return err
	}
	i := slices.Index(*siblings, id)
	if i == 0 {
		return ErrNotFirst
	}
	(*siblings)[i-1], (*siblings)[i] = (*siblings)[i], (*siblings)[i-1]
	return nil
}

// MoveAlbumDown swaps an album with its following sibling under parentID.
// Returns ErrNotChild if the album is not a child of parentID.
func (g *Graph) MoveAlbumDown(parentID, id string) error {
	siblings, err := g.siblingsOf(parentID, id)
	if err != nil {
		return err
	}
	i := slices.Index(*siblings, id)
	if i == len(*siblings)-1 {
		return ErrNotLast
	}
	(*siblings)[i+1], (*siblings)[i] = (*siblings)[i], (*siblings)[i+1]
	return nil
}

// AddImage attaches an unattached image to an album and to the graph owner.
// The first image added to an album becomes its album image.
func (g *Graph) AddImage(albumID string, img *Image) error {
	if img == nil || img.ID == "" {
		return ErrInvalidID
	}
	a, ok := g.albums[albumID]
	if !ok {
		return ErrAlbumNotFound
	}
	if img.ownerID != "" || img.albumID != "" {
		return ErrFieldAlreadySet
	}
	if g.idInUse(img.ID) {
		return ErrDuplicateID
	}
	stored := *img
	stored.ownerID = g.OwnerID
	stored.albumID = albumID
	g.images[img.ID] = &stored
	a.images = append(a.images, img.ID)
	if a.AlbumImage == "" {
		a.AlbumImage = img.ID
	}
	return nil
}

// UpdateImage replaces the title and description of an image.
func (g *Graph) UpdateImage(id, title, description string) error {
	img, ok := g.images[id]
	if !ok {
		return ErrImageNotFound
	}
	img.Title = title
	img.Description = description
	return nil
}

// SetImageKey assigns the content key of an attached image once.
func (g *Graph) SetImageKey(id, key string) error {
	img, ok := g.images[id]
	if !ok {
		return ErrImageNotFound
	}
	return img.SetKey(key)
}

// RemoveImage deletes an image. If it was the album image, the album falls
// back to its first remaining image.
func (g *Graph) RemoveImage(id string) error {
	img, ok := g.images[id]
	if !ok {
		return ErrImageNotFound
	}
	a := g.albums[img.albumID]
	a.images = slices.DeleteFunc(a.images, func(s string) bool { return s == id })
	if a.AlbumImage == id {
		a.AlbumImage = ""
		if len(a.images) > 0 {
			a.AlbumImage = a.images[0]
		}
	}
	if g.Profile.Avatar != nil && *g.Profile.Avatar == id {
		g.Profile.Avatar = nil
	}
	delete(g.images, id)
	return nil
}

// MoveImageUp swaps an image with its predecessor inside its album.
func (g *Graph) MoveImageUp(id string) error {
	img, ok := g.images[id]
	if !ok {
		return ErrImageNotFound
	}
	a := g.albums[img.albumID]
	i := slices.Index(a.images, id)
	if i == 0 {
		return ErrNotFirst
	}
	a.images[i-1], a.images[i] = a.images[i], a.images[i-1]
	return nil
}

// MoveImageDown swaps an image with its successor inside its album.
func (g *Graph) MoveImageDown(id string) error {
	img, ok := g.images[id]
	if !ok {
		return ErrImageNotFound
	}
	a := g.albums[img.albumID]
	i := slices.Index(a.images, id)
	if i == len(a.images)-1 {
		return ErrNotLast
	}
	a.images[i+1], a.images[i] = a.images[i], a.images[i+1]
	return nil
}

// SetAlbumImage selects the image representing an album. The image must
// belong to the album; an empty imageID clears the selection.
func (g *Graph) SetAlbumImage(albumID, imageID string) error {
	a, ok := g.albums[albumID]
	if !ok {
		return ErrAlbumNotFound
	}
	if imageID != "" && !slices.Contains(a.images, imageID) {
		return ErrImageNotInAlbum
	}
	a.AlbumImage = imageID
	return nil
}

func (g *Graph) attachAlbum(id, parentID string) {
	if parentID == "" {
		g.rootAlbums = append(g.rootAlbums, id)
		return
	}
	p := g.albums[parentID]
	p.children = append(p.children, id)
}

func (g *Graph) detachAlbum(id, parentID string) {
	drop := func(s string) bool { return s == id }
	if parentID == "" {
		g.rootAlbums = slices.DeleteFunc(g.rootAlbums, drop)
		return
	}
	p := g.albums[parentID]
	p.children = slices.DeleteFunc(p.children, drop)
}

func (g *Graph) siblingsOf(parentID, id string) (*[]string, error) {
	a, ok := g.albums[id]
	if !ok {
		return nil, ErrAlbumNotFound
	}
	if a.ParentID != parentID {
		return nil, ErrNotChild
	}
	if parentID == "" {
		return &g.rootAlbums, nil
	}
	return &g.albums[parentID].children, nil
}

func (a *Album) clone() Album {
	c := *a
	c.children = slices.Clone(a.children)
	c.images = slices.Clone(a.images)
	return c
}
