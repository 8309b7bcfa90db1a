// Package fingerprint computes deterministic digests over the original
// fields of a content graph.
//
// Every value is written length-prefixed into a SHA-256 stream so that
// adjacent fields can never run into each other. Ordered collections
// (profile fields, child albums, album images) are walked in their stored
// order, so reordering changes the digest. Set-like collections (posts,
// replies, likes, friends) are walked sorted by ID. Derived state such as
// the known flags, the document time and the client block is never written.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Digest is a hex-encoded SHA-256 fingerprint.
type Digest string

// Of returns the fingerprint of a whole graph.
func Of(g *types.Graph) Digest {
	w := newWriter()
	w.tag("graph")
	w.str(g.OwnerID)
	w.digest(Profile(&g.Profile))

	posts := g.Posts()
	slices.SortFunc(posts, func(a, b types.Post) int { return strings.Compare(a.ID, b.ID) })
	w.count(len(posts))
	for _, p := range posts {
		w.digest(Post(p))
	}

	replies := g.Replies()
	slices.SortFunc(replies, func(a, b types.PostReply) int { return strings.Compare(a.ID, b.ID) })
	w.count(len(replies))
	for _, r := range replies {
		w.digest(Reply(r))
	}

	w.strs(g.LikedPosts())
	w.strs(g.LikedReplies())
	w.strs(g.Friends())

	roots := g.RootAlbums()
	w.count(len(roots))
	for _, id := range roots {
		w.digest(Album(g, id))
	}
	return w.sum()
}

// Profile returns the fingerprint of a profile. Field IDs are local and
// not part of the digest; names and values are written in field order.
func Profile(p *types.Profile) Digest {
	w := newWriter()
	w.tag("profile")
	w.optStr(p.FirstName)
	w.optStr(p.MiddleName)
	w.optStr(p.LastName)
	w.optInt(p.BirthDay)
	w.optInt(p.BirthMonth)
	w.optInt(p.BirthYear)
	w.optStr(p.Avatar)
	fields := p.Fields()
	w.count(len(fields))
	for _, f := range fields {
		w.str(f.Name)
		w.str(f.Value)
	}
	return w.sum()
}

// Post returns the fingerprint of a post.
func Post(p types.Post) Digest {
	w := newWriter()
	w.tag("post")
	w.str(p.ID)
	w.str(p.AuthorID)
	w.str(p.RecipientID)
	w.time(p.Time)
	w.str(p.Text)
	return w.sum()
}

// Reply returns the fingerprint of a post reply.
func Reply(r types.PostReply) Digest {
	w := newWriter()
	w.tag("reply")
	w.str(r.ID)
	w.str(r.AuthorID)
	w.str(r.PostID)
	w.time(r.Time)
	w.str(r.Text)
	return w.sum()
}

// Album returns the fingerprint of an album, composed from the
// fingerprints of its child albums and images in their stored order.
// An unknown id fingerprints as an empty album with that id.
func Album(g *types.Graph, id string) Digest {
	a, _ := g.Album(id)
	w := newWriter()
	w.tag("album")
	w.str(id)
	w.str(a.Title)
	w.str(a.Description)
	w.str(a.AlbumImage)
	children := a.Children()
	w.count(len(children))
	for _, c := range children {
		w.digest(Album(g, c))
	}
	images := a.Images()
	w.count(len(images))
	for _, i := range images {
		img, _ := g.Image(i)
		w.digest(Image(img))
	}
	return w.sum()
}

// Image returns the fingerprint of an image.
func Image(i types.Image) Digest {
	w := newWriter()
	w.tag("image")
	w.str(i.ID)
	w.str(i.AlbumID())
	w.time(i.CreationTime)
	w.str(i.Key())
	w.str(i.Title)
	w.str(i.Description)
	w.int(int64(i.Width))
	w.int(int64(i.Height))
	return w.sum()
}

type writer struct {
	h   hash.Hash
	buf [binary.MaxVarintLen64]byte
}

func newWriter() *writer { return &writer{h: sha256.New()} }

func (w *writer) int(v int64) {
	n := binary.PutVarint(w.buf[:], v)
	w.h.Write(w.buf[:n])
}

func (w *writer) count(n int) { w.int(int64(n)) }

func (w *writer) str(s string) {
	w.count(len(s))
	w.h.Write([]byte(s))
}

func (w *writer) tag(s string) { w.str(s) }

func (w *writer) strs(ss []string) {
	w.count(len(ss))
	for _, s := range ss {
		w.str(s)
	}
}

// optStr and optInt write a presence byte so that an absent value differs
// from an empty or zero one.
func (w *writer) optStr(p *string) {
	if p == nil {
		w.h.Write([]byte{0})
		return
	}
	w.h.Write([]byte{1})
	w.str(*p)
}

func (w *writer) optInt(p *int) {
	if p == nil {
		w.h.Write([]byte{0})
		return
	}
	w.h.Write([]byte{1})
	w.int(int64(*p))
}

func (w *writer) time(t time.Time) { w.int(t.UnixMilli()) }

func (w *writer) digest(d Digest) { w.str(string(d)) }

func (w *writer) sum() Digest { return Digest(hex.EncodeToString(w.h.Sum(nil))) }
