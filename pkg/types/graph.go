package types

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Client names the software that produced a document.
type Client struct {
	Name    string
	Version string
}

// Graph is the full content of one identity: profile, album arena, images,
// posts, replies, liked IDs and friends. A Graph handed out as a snapshot is
// never mutated; editors work on a Clone and publish the copy.
type Graph struct {
	OwnerID string
	Time    time.Time // document time, zero for a graph that was never published
	Client  *Client
	Profile Profile

	posts        map[string]*Post
	replies      map[string]*PostReply
	likedPosts   map[string]struct{}
	likedReplies map[string]struct{}
	friends      map[string]struct{}

	albums     map[string]*Album
	images     map[string]*Image
	rootAlbums []string
}

// NewGraph returns an empty graph owned by ownerID.
func NewGraph(ownerID string) *Graph {
	return &Graph{
		OwnerID:      ownerID,
		posts:        map[string]*Post{},
		replies:      map[string]*PostReply{},
		likedPosts:   map[string]struct{}{},
		likedReplies: map[string]struct{}{},
		friends:      map[string]struct{}{},
		albums:       map[string]*Album{},
		images:       map[string]*Image{},
	}
}

// Post returns a copy of the post with the given ID.
func (g *Graph) Post(id string) (Post, bool) {
	p, ok := g.posts[id]
	if !ok {
		return Post{}, false
	}
	return *p, true
}

// Posts returns copies of all posts, newest first, ties broken by ID.
func (g *Graph) Posts() []Post {
	out := make([]Post, 0, len(g.posts))
	for _, p := range g.posts {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Post) int {
		if c := b.Time.Compare(a.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// PostMap returns the posts keyed by ID.
func (g *Graph) PostMap() map[string]Post {
	out := make(map[string]Post, len(g.posts))
	for id, p := range g.posts {
		out[id] = *p
	}
	return out
}

// AddPost inserts a post authored by the graph owner.
func (g *Graph) AddPost(p Post) error {
	if p.ID == "" {
		return ErrInvalidID
	}
	if p.AuthorID != g.OwnerID {
		return ErrInvalidData
	}
	if p.RecipientID == p.AuthorID {
		return ErrSelfRecipient
	}
	if g.idInUse(p.ID) {
		return ErrDuplicateID
	}
	g.posts[p.ID] = &p
	return nil
}

// RemovePost deletes a post.
func (g *Graph) RemovePost(id string) error {
	if _, ok := g.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(g.posts, id)
	return nil
}

// SetPostKnown updates the local known flag of a post.
func (g *Graph) SetPostKnown(id string, known bool) error {
	p, ok := g.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	p.Known = known
	return nil
}

// Reply returns a copy of the reply with the given ID.
func (g *Graph) Reply(id string) (PostReply, bool) {
	r, ok := g.replies[id]
	if !ok {
		return PostReply{}, false
	}
	return *r, true
}

// Replies returns copies of all replies, oldest first, ties broken by ID.
func (g *Graph) Replies() []PostReply {
	out := make([]PostReply, 0, len(g.replies))
	for _, r := range g.replies {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b PostReply) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// ReplyMap returns the replies keyed by ID.
func (g *Graph) ReplyMap() map[string]PostReply {
	out := make(map[string]PostReply, len(g.replies))
	for id, r := range g.replies {
		out[id] = *r
	}
	return out
}

// AddReply inserts a reply authored by the graph owner. The referenced post
// may belong to any identity.
func (g *Graph) AddReply(r PostReply) error {
	if r.ID == "" || r.PostID == "" {
		return ErrInvalidID
	}
	if r.AuthorID != g.OwnerID {
		return ErrInvalidData
	}
	if g.idInUse(r.ID) {
		return ErrDuplicateID
	}
	g.replies[r.ID] = &r
	return nil
}

// RemoveReply deletes a reply.
func (g *Graph) RemoveReply(id string) error {
	if _, ok := g.replies[id]; !ok {
		return ErrNotFound
	}
	delete(g.replies, id)
	return nil
}

// SetReplyKnown updates the local known flag of a reply.
func (g *Graph) SetReplyKnown(id string, known bool) error {
	r, ok := g.replies[id]
	if !ok {
		return ErrNotFound
	}
	r.Known = known
	return nil
}

// LikePost records a liked post ID.
func (g *Graph) LikePost(id string) { g.likedPosts[id] = struct{}{} }

// UnlikePost removes a liked post ID.
func (g *Graph) UnlikePost(id string) { delete(g.likedPosts, id) }

// LikedPosts returns the sorted liked post IDs.
func (g *Graph) LikedPosts() []string { return slices.Sorted(maps.Keys(g.likedPosts)) }

// LikeReply records a liked reply ID.
func (g *Graph) LikeReply(id string) { g.likedReplies[id] = struct{}{} }

// UnlikeReply removes a liked reply ID.
func (g *Graph) UnlikeReply(id string) { delete(g.likedReplies, id) }

// LikedReplies returns the sorted liked reply IDs.
func (g *Graph) LikedReplies() []string { return slices.Sorted(maps.Keys(g.likedReplies)) }

// AddFriend records a followed identity. The owner cannot follow itself.
func (g *Graph) AddFriend(id string) error {
	if id == "" || id == g.OwnerID {
		return ErrInvalidID
	}
	g.friends[id] = struct{}{}
	return nil
}

// RemoveFriend drops a followed identity.
func (g *Graph) RemoveFriend(id string) { delete(g.friends, id) }

// IsFriend reports whether the owner follows id.
func (g *Graph) IsFriend(id string) bool {
	_, ok := g.friends[id]
	return ok
}

// Friends returns the sorted IDs of followed identities.
func (g *Graph) Friends() []string { return slices.Sorted(maps.Keys(g.friends)) }

// Clone returns a deep copy that shares no mutable state with g.
func (g *Graph) Clone() *Graph {
	c := NewGraph(g.OwnerID)
	c.Time = g.Time
	if g.Client != nil {
		cl := *g.Client
		c.Client = &cl
	}
	c.Profile = g.Profile.Clone()
	for id, p := range g.posts {
		cp := *p
		c.posts[id] = &cp
	}
	for id, r := range g.replies {
		cr := *r
		c.replies[id] = &cr
	}
	c.likedPosts = maps.Clone(g.likedPosts)
	c.likedReplies = maps.Clone(g.likedReplies)
	c.friends = maps.Clone(g.friends)
	for id, a := range g.albums {
		ca := a.clone()
		c.albums[id] = &ca
	}
	for id, i := range g.images {
		ci := *i
		c.images[id] = &ci
	}
	c.rootAlbums = slices.Clone(g.rootAlbums)
	return c
}

func (g *Graph) idInUse(id string) bool {
	if _, ok := g.posts[id]; ok {
		return true
	}
	if _, ok := g.replies[id]; ok {
		return true
	}
	if _, ok := g.albums[id]; ok {
		return true
	}
	_, ok := g.images[id]
	return ok
}
