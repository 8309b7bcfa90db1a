package document

import (
	"encoding/json"

	"github.com/mesh-intelligence/sone/pkg/sone"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// Marshal encodes a graph as a content document. Images without a content
// key are not published yet and are left out, together with any album image
// or avatar reference to them. The graph time must be set.
func Marshal(g *types.Graph) ([]byte, error) {
	if g.Time.UnixMilli() <= 0 {
		return nil, invalid("time", "must be positive")
	}
	millis := g.Time.UnixMilli()
	doc := wireDocument{
		ProtocolVersion: sone.ProtocolVersion,
		Time:            &millis,
		Profile:         marshalProfile(g),
		Posts:           []wirePost{},
		Replies:         []wireReply{},
		LikedPosts:      g.LikedPosts(),
		LikedReplies:    g.LikedReplies(),
		Friends:         g.Friends(),
		Gallery:         marshalGallery(g),
	}
	if g.Client != nil {
		doc.Client = &wireClient{Name: g.Client.Name, Version: g.Client.Version}
	}
	for _, p := range g.Posts() {
		doc.Posts = append(doc.Posts, wirePost{
			ID:        p.ID,
			Recipient: p.RecipientID,
			Time:      millisPtr(p.Time.UnixMilli()),
			Text:      types.Ptr(p.Text),
		})
	}
	for _, r := range g.Replies() {
		doc.Replies = append(doc.Replies, wireReply{
			ID:   r.ID,
			Post: r.PostID,
			Time: millisPtr(r.Time.UnixMilli()),
			Text: types.Ptr(r.Text),
		})
	}
	return json.Marshal(doc)
}

func marshalProfile(g *types.Graph) wireProfile {
	p := g.Profile
	wp := wireProfile{
		FirstName:  p.FirstName,
		MiddleName: p.MiddleName,
		LastName:   p.LastName,
		BirthDay:   p.BirthDay,
		BirthMonth: p.BirthMonth,
		BirthYear:  p.BirthYear,
		Fields:     []wireField{},
	}
	if p.Avatar != nil {
		if img, ok := g.Image(*p.Avatar); !ok || img.Published() {
			wp.Avatar = p.Avatar
		}
	}
	for _, f := range p.Fields() {
		wp.Fields = append(wp.Fields, wireField{Name: f.Name, Value: f.Value})
	}
	return wp
}

func marshalGallery(g *types.Graph) wireGallery {
	gallery := wireGallery{Albums: []wireAlbum{}, Images: []wireImage{}}
	g.WalkAlbums(func(a types.Album, _ int) {
		wa := wireAlbum{
			ID:          a.ID,
			Parent:      a.ParentID,
			Title:       types.Ptr(a.Title),
			Description: a.Description,
		}
		wa.AlbumImage = publishedAlbumImage(g, a)
		gallery.Albums = append(gallery.Albums, wa)
	})
	g.WalkAlbums(func(a types.Album, _ int) {
		for _, id := range a.Images() {
			img, _ := g.Image(id)
			if !img.Published() {
				continue
			}
			gallery.Images = append(gallery.Images, wireImage{
				ID:           img.ID,
				Album:        a.ID,
				CreationTime: millisPtr(img.CreationTime.UnixMilli()),
				Key:          img.Key(),
				Title:        img.Title,
				Description:  img.Description,
				Width:        types.Ptr(img.Width),
				Height:       types.Ptr(img.Height),
			})
		}
	})
	return gallery
}

// publishedAlbumImage returns the album image as readers will see it. An
// unpublished selection falls back to the first published image of the
// album; a cleared selection stays cleared.
func publishedAlbumImage(g *types.Graph, a types.Album) string {
	if a.AlbumImage == "" {
		return ""
	}
	if img, ok := g.Image(a.AlbumImage); ok && img.Published() {
		return a.AlbumImage
	}
	for _, id := range a.Images() {
		if img, ok := g.Image(id); ok && img.Published() {
			return id
		}
	}
	return ""
}

func millisPtr(v int64) *int64 { return &v }
