// Package document converts between the published JSON content document and
// the in-memory content graph.
//
// Parsing is all or nothing: the first structural violation aborts with an
// *Error and no partial graph is returned.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Parse decodes a content document published by ownerID.
func Parse(ownerID string, data []byte) (*types.Graph, error) {
	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.ProtocolVersion < 0 {
		return nil, invalid("protocolVersion", "negative version %d", doc.ProtocolVersion)
	}
	docTime, err := positiveMillis("time", doc.Time)
	if err != nil {
		return nil, err
	}

	g := types.NewGraph(ownerID)
	g.Time = docTime
	if doc.Client != nil {
		g.Client = &types.Client{Name: doc.Client.Name, Version: doc.Client.Version}
	}
	if err := parseProfile(g, doc.Profile); err != nil {
		return nil, err
	}
	if err := parsePosts(g, doc.Posts); err != nil {
		return nil, err
	}
	if err := parseReplies(g, doc.Replies); err != nil {
		return nil, err
	}
	if err := parseSets(g, doc); err != nil {
		return nil, err
	}
	if err := parseGallery(g, doc.Gallery); err != nil {
		return nil, err
	}
	return g, nil
}

func parseProfile(g *types.Graph, p wireProfile) error {
	g.Profile.FirstName = p.FirstName
	g.Profile.MiddleName = p.MiddleName
	g.Profile.LastName = p.LastName
	g.Profile.BirthDay = p.BirthDay
	g.Profile.BirthMonth = p.BirthMonth
	g.Profile.BirthYear = p.BirthYear
	g.Profile.Avatar = p.Avatar
	for i, f := range p.Fields {
		_, err := g.Profile.AddFieldWithID(FieldID(g.OwnerID, f.Name), f.Name, f.Value)
		switch {
		case errors.Is(err, types.ErrInvalidName):
			return invalid(fmt.Sprintf("profile.fields[%d].name", i), "missing")
		case errors.Is(err, types.ErrDuplicateField), errors.Is(err, types.ErrDuplicateID):
			return invalid(fmt.Sprintf("profile.fields[%d].name", i), "duplicate name %q", f.Name)
		case err != nil:
			return invalid(fmt.Sprintf("profile.fields[%d]", i), "%v", err)
		}
	}
	return nil
}

func parsePosts(g *types.Graph, posts []wirePost) error {
	for i, wp := range posts {
		field := fmt.Sprintf("posts[%d]", i)
		if wp.ID == "" {
			return invalid(field+".id", "missing")
		}
		t, err := positiveMillis(field+".time", wp.Time)
		if err != nil {
			return err
		}
		if wp.Text == nil {
			return invalid(field+".text", "missing")
		}
		p, err := types.NewPost(wp.ID, g.OwnerID, wp.Recipient, t, *wp.Text)
		if err != nil {
			return invalid(field+".recipient", "%v", err)
		}
		if err := g.AddPost(p); err != nil {
			return invalid(field+".id", "%v", err)
		}
	}
	return nil
}

func parseReplies(g *types.Graph, replies []wireReply) error {
	for i, wr := range replies {
		field := fmt.Sprintf("replies[%d]", i)
		if wr.ID == "" {
			return invalid(field+".id", "missing")
		}
		if wr.Post == "" {
			return invalid(field+".post", "missing")
		}
		t, err := positiveMillis(field+".time", wr.Time)
		if err != nil {
			return err
		}
		if wr.Text == nil {
			return invalid(field+".text", "missing")
		}
		r, err := types.NewPostReply(wr.ID, g.OwnerID, wr.Post, t, *wr.Text)
		if err != nil {
			return invalid(field, "%v", err)
		}
		if err := g.AddReply(r); err != nil {
			return invalid(field+".id", "%v", err)
		}
	}
	return nil
}

func parseSets(g *types.Graph, doc wireDocument) error {
	for i, id := range doc.LikedPosts {
		if id == "" {
			return invalid(fmt.Sprintf("likedPosts[%d]", i), "empty id")
		}
		g.LikePost(id)
	}
	for i, id := range doc.LikedReplies {
		if id == "" {
			return invalid(fmt.Sprintf("likedReplies[%d]", i), "empty id")
		}
		g.LikeReply(id)
	}
	for i, id := range doc.Friends {
		if err := g.AddFriend(id); err != nil {
			return invalid(fmt.Sprintf("friends[%d]", i), "%v", err)
		}
	}
	return nil
}

// parseGallery requires albums in parent-before-child order and images after
// the album they belong to.
func parseGallery(g *types.Graph, gallery wireGallery) error {
	for i, wa := range gallery.Albums {
		field := fmt.Sprintf("gallery.albums[%d]", i)
		if wa.ID == "" {
			return invalid(field+".id", "missing")
		}
		if wa.Title == nil {
			return invalid(field+".title", "missing")
		}
		err := g.AddAlbum(wa.ID, wa.Parent, *wa.Title, wa.Description)
		switch {
		case errors.Is(err, types.ErrAlbumNotFound):
			return invalid(field+".parent", "undeclared album %q", wa.Parent)
		case err != nil:
			return invalid(field+".id", "%v", err)
		}
	}

	for i, wi := range gallery.Images {
		field := fmt.Sprintf("gallery.images[%d]", i)
		if wi.ID == "" {
			return invalid(field+".id", "missing")
		}
		created, err := positiveMillis(field+".creationTime", wi.CreationTime)
		if err != nil {
			return err
		}
		if wi.Key == "" {
			return invalid(field+".key", "missing")
		}
		if wi.Width == nil || *wi.Width <= 0 {
			return invalid(field+".width", "must be positive")
		}
		if wi.Height == nil || *wi.Height <= 0 {
			return invalid(field+".height", "must be positive")
		}
		img := types.NewImage(wi.ID, created, *wi.Width, *wi.Height, wi.Title, wi.Description)
		if err := img.SetKey(wi.Key); err != nil {
			return invalid(field+".key", "%v", err)
		}
		err = g.AddImage(wi.Album, img)
		switch {
		case errors.Is(err, types.ErrAlbumNotFound):
			return invalid(field+".album", "undeclared album %q", wi.Album)
		case err != nil:
			return invalid(field+".id", "%v", err)
		}
	}

	// The album image is taken as written; adding images defaults it to the
	// first one, which would otherwise undo a cleared selection.
	for i, wa := range gallery.Albums {
		if err := g.SetAlbumImage(wa.ID, wa.AlbumImage); err != nil {
			return invalid(fmt.Sprintf("gallery.albums[%d].albumImage", i), "%v", err)
		}
	}
	return nil
}

func positiveMillis(field string, v *int64) (time.Time, error) {
	if v == nil {
		return time.Time{}, invalid(field, "missing")
	}
	if *v <= 0 {
		return time.Time{}, invalid(field, "must be positive")
	}
	return time.UnixMilli(*v), nil
}

// FieldID derives the stable ID of a parsed profile field from the owner
// and the field name.
func FieldID(ownerID, name string) string {
	sum := sha256.Sum256([]byte(ownerID + "\x00" + name))
	return hex.EncodeToString(sum[:16])
}
