// Package visibility decides which posts and replies a viewer may see.
// The filter is a pure predicate over the state its Lookup exposes.
package visibility

import (
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Lookup supplies the replica and trust state the filter reads.
type Lookup interface {
	// Resolved reports whether the content of identityID is synchronized.
	Resolved(identityID string) bool

	// Post returns a post by ID from any synchronized graph.
	Post(postID string) (types.Post, bool)

	// Trust returns the trust truster holds for trustee, false when the
	// identity service has no value.
	Trust(trusterID, trusteeID string) (types.Trust, bool)

	// Follows reports whether viewerID follows identityID.
	Follows(viewerID, identityID string) bool
}

// Filter evaluates visibility at the time returned by Now.
type Filter struct {
	lookup Lookup
	now    func() time.Time
}

// New returns a filter over lookup. A nil now uses time.Now.
func New(lookup Lookup, now func() time.Time) *Filter {
	if now == nil {
		now = time.Now
	}
	return &Filter{lookup: lookup, now: now}
}

// PostVisible reports whether viewer may see p. An empty viewerID means no
// viewer.
func (f *Filter) PostVisible(viewerID string, p types.Post) bool {
	if !f.lookup.Resolved(p.AuthorID) {
		return false
	}
	if p.Time.After(f.now()) {
		return false
	}
	if viewerID == "" {
		return true
	}
	if tr, ok := f.lookup.Trust(viewerID, p.AuthorID); ok && tr.Negative() {
		return false
	}
	if viewerID == p.AuthorID || viewerID == p.RecipientID {
		return true
	}
	return f.lookup.Follows(viewerID, p.AuthorID)
}

// ReplyVisible reports whether viewer may see r. A reply whose post is not
// synchronized is invisible.
func (f *Filter) ReplyVisible(viewerID string, r types.PostReply) bool {
	if r.Time.After(f.now()) {
		return false
	}
	p, ok := f.lookup.Post(r.PostID)
	if !ok {
		return false
	}
	return f.PostVisible(viewerID, p)
}

// Posts returns the visible subset of posts, keeping their order.
func (f *Filter) Posts(viewerID string, posts []types.Post) []types.Post {
	var out []types.Post
	for _, p := range posts {
		if f.PostVisible(viewerID, p) {
			out = append(out, p)
		}
	}
	return out
}

// Replies returns the visible subset of replies, keeping their order.
func (f *Filter) Replies(viewerID string, replies []types.PostReply) []types.PostReply {
	var out []types.PostReply
	for _, r := range replies {
		if f.ReplyVisible(viewerID, r) {
			out = append(out, r)
		}
	}
	return out
}
