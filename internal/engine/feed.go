package engine

import (
	"slices"
	"strings"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// lookup exposes engine state to the visibility filter. Own graphs take
// precedence over their replicated copies.
type lookup struct{ e *Engine }

func (l lookup) Resolved(id string) bool {
	if _, ok := l.e.OwnGraph(id); ok {
		return true
	}
	return l.e.Replica().Ref(id).IsResolved()
}

func (l lookup) Post(id string) (types.Post, bool) {
	for _, g := range l.e.ownGraphs() {
		if p, ok := g.Post(id); ok {
			return p, true
		}
	}
	return l.e.Replica().Post(id)
}

func (l lookup) Trust(truster, trustee string) (types.Trust, bool) {
	return l.e.Identities().Trust(truster, trustee)
}

func (l lookup) Follows(viewer, id string) bool {
	g, ok := l.e.OwnGraph(viewer)
	return ok && g.IsFriend(id)
}

func (e *Engine) ownGraphs() []*types.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.Graph, 0, len(e.own))
	for _, st := range e.own {
		out = append(out, st.graph.Load())
	}
	return out
}

// graphs returns the own graphs plus every replicated graph not shadowed
// by an own one.
func (e *Engine) graphs() []*types.Graph {
	out := e.ownGraphs()
	for _, id := range e.Replica().Identities() {
		if _, own := e.ownState(id); own {
			continue
		}
		if g, ok := e.Replica().Graph(id); ok {
			out = append(out, g)
		}
	}
	return out
}

// Feed returns the posts the viewer may see, newest first. An empty viewer
// applies only the viewer-independent rules.
func (e *Engine) Feed(viewerID string) []types.Post {
	var posts []types.Post
	for _, g := range e.graphs() {
		posts = append(posts, g.Posts()...)
	}
	slices.SortFunc(posts, func(a, b types.Post) int {
		if c := b.Time.Compare(a.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return e.filter.Posts(viewerID, posts)
}

// Replies returns the visible replies to a post, oldest first.
func (e *Engine) Replies(viewerID, postID string) []types.PostReply {
	var replies []types.PostReply
	for _, g := range e.graphs() {
		for _, r := range g.Replies() {
			if r.PostID == postID {
				replies = append(replies, r)
			}
		}
	}
	slices.SortFunc(replies, func(a, b types.PostReply) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return e.filter.Replies(viewerID, replies)
}

// PostVisible applies the visibility rules to a single post.
func (e *Engine) PostVisible(viewerID string, p types.Post) bool {
	return e.filter.PostVisible(viewerID, p)
}
