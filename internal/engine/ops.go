package engine

import (
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Editing operations on own graphs. Each one is a single Edit; graph
// invariant errors are returned unchanged.

// CreatePost adds a post by id, optionally directed at recipientID.
func (e *Engine) CreatePost(id, recipientID, text string) (types.Post, error) {
	p, err := types.NewPost(types.NewID(), id, recipientID, e.now(), text)
	if err != nil {
		return types.Post{}, err
	}
	if err := e.Edit(id, func(g *types.Graph) error { return g.AddPost(p) }); err != nil {
		return types.Post{}, err
	}
	return p, nil
}

// DeletePost removes a post of id.
func (e *Engine) DeletePost(id, postID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.RemovePost(postID) })
}

// CreateReply adds a reply by id to any post.
func (e *Engine) CreateReply(id, postID, text string) (types.PostReply, error) {
	r, err := types.NewPostReply(types.NewID(), id, postID, e.now(), text)
	if err != nil {
		return types.PostReply{}, err
	}
	if err := e.Edit(id, func(g *types.Graph) error { return g.AddReply(r) }); err != nil {
		return types.PostReply{}, err
	}
	return r, nil
}

// DeleteReply removes a reply of id.
func (e *Engine) DeleteReply(id, replyID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.RemoveReply(replyID) })
}

// LikePost records that id likes postID.
func (e *Engine) LikePost(id, postID string) error {
	return e.Edit(id, func(g *types.Graph) error { g.LikePost(postID); return nil })
}

// UnlikePost drops a like.
func (e *Engine) UnlikePost(id, postID string) error {
	return e.Edit(id, func(g *types.Graph) error { g.UnlikePost(postID); return nil })
}

// LikeReply records that id likes replyID.
func (e *Engine) LikeReply(id, replyID string) error {
	return e.Edit(id, func(g *types.Graph) error { g.LikeReply(replyID); return nil })
}

// UnlikeReply drops a reply like.
func (e *Engine) UnlikeReply(id, replyID string) error {
	return e.Edit(id, func(g *types.Graph) error { g.UnlikeReply(replyID); return nil })
}

// Follow adds friendID to the friends of id.
func (e *Engine) Follow(id, friendID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.AddFriend(friendID) })
}

// Unfollow removes friendID from the friends of id.
func (e *Engine) Unfollow(id, friendID string) error {
	return e.Edit(id, func(g *types.Graph) error { g.RemoveFriend(friendID); return nil })
}

// CreateAlbum adds an album below parentID, or at the top level when
// parentID is empty, and returns its ID.
func (e *Engine) CreateAlbum(id, parentID, title, description string) (string, error) {
	albumID := types.NewID()
	if err := e.Edit(id, func(g *types.Graph) error {
		return g.AddAlbum(albumID, parentID, title, description)
	}); err != nil {
		return "", err
	}
	return albumID, nil
}

// UpdateAlbum replaces the title and description of an album.
func (e *Engine) UpdateAlbum(id, albumID, title, description string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.UpdateAlbum(albumID, title, description) })
}

// DeleteAlbum removes an empty album.
func (e *Engine) DeleteAlbum(id, albumID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.RemoveAlbum(albumID) })
}

// MoveAlbum re-parents an album.
func (e *Engine) MoveAlbum(id, albumID, parentID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.MoveAlbum(albumID, parentID) })
}

// MoveAlbumUp swaps an album with its preceding sibling.
func (e *Engine) MoveAlbumUp(id, parentID, albumID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.MoveAlbumUp(parentID, albumID) })
}

// MoveAlbumDown swaps an album with its following sibling.
func (e *Engine) MoveAlbumDown(id, parentID, albumID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.MoveAlbumDown(parentID, albumID) })
}

// SetAlbumImage selects the image shown for an album.
func (e *Engine) SetAlbumImage(id, albumID, imageID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.SetAlbumImage(albumID, imageID) })
}

// CreateImage adds an image to an album and returns its ID. key is the
// content key of the already inserted image data; an empty key leaves the
// image unpublished until SetImageKey.
func (e *Engine) CreateImage(id, albumID, key string, created time.Time, width, height int, title, description string) (string, error) {
	img := types.NewImage(types.NewID(), created, width, height, title, description)
	if key != "" {
		if err := img.SetKey(key); err != nil {
			return "", err
		}
	}
	if err := e.Edit(id, func(g *types.Graph) error { return g.AddImage(albumID, img) }); err != nil {
		return "", err
	}
	return img.ID, nil
}

// SetImageKey assigns the content key of an image once.
func (e *Engine) SetImageKey(id, imageID, key string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.SetImageKey(imageID, key) })
}

// UpdateImage replaces the title and description of an image.
func (e *Engine) UpdateImage(id, imageID, title, description string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.UpdateImage(imageID, title, description) })
}

// DeleteImage removes an image.
func (e *Engine) DeleteImage(id, imageID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.RemoveImage(imageID) })
}

// MoveImageUp swaps an image with its predecessor.
func (e *Engine) MoveImageUp(id, imageID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.MoveImageUp(imageID) })
}

// MoveImageDown swaps an image with its successor.
func (e *Engine) MoveImageDown(id, imageID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.MoveImageDown(imageID) })
}

// UpdateProfile replaces the name, birth date and avatar parts of a
// profile. The avatar must be an image of the identity.
func (e *Engine) UpdateProfile(id string, fn func(p *types.Profile)) error {
	return e.Edit(id, func(g *types.Graph) error {
		fn(&g.Profile)
		if g.Profile.Avatar != nil {
			if _, ok := g.Image(*g.Profile.Avatar); !ok {
				return types.ErrImageNotFound
			}
		}
		return nil
	})
}

// AddProfileField appends a field and returns it.
func (e *Engine) AddProfileField(id, name, value string) (types.Field, error) {
	var f types.Field
	err := e.Edit(id, func(g *types.Graph) error {
		var err error
		if f, err = g.Profile.AddField(name); err != nil {
			return err
		}
		if value == "" {
			return nil
		}
		f.Value = value
		return g.Profile.SetFieldValue(f.ID, value)
	})
	if err != nil {
		return types.Field{}, err
	}
	return f, nil
}

// RenameProfileField renames a field.
func (e *Engine) RenameProfileField(id, fieldID, name string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.Profile.RenameField(fieldID, name) })
}

// SetProfileFieldValue replaces the value of a field.
func (e *Engine) SetProfileFieldValue(id, fieldID, value string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.Profile.SetFieldValue(fieldID, value) })
}

// RemoveProfileField deletes a field.
func (e *Engine) RemoveProfileField(id, fieldID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.Profile.RemoveField(fieldID) })
}

// MoveProfileFieldUp swaps a field with its predecessor.
func (e *Engine) MoveProfileFieldUp(id, fieldID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.Profile.MoveFieldUp(fieldID) })
}

// MoveProfileFieldDown swaps a field with its successor.
func (e *Engine) MoveProfileFieldDown(id, fieldID string) error {
	return e.Edit(id, func(g *types.Graph) error { return g.Profile.MoveFieldDown(fieldID) })
}
