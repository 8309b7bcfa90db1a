package content

import (
	"maps"
	"slices"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Replica holds the latest good graph of every tracked identity. Stored
// graphs are never mutated; updates swap in a new graph.
type Replica struct {
	mu      deadlock.RWMutex
	graphs  map[string]*types.Graph
	posts   map[string]string // post ID -> owner ID
	replies map[string]string // reply ID -> owner ID
}

// NewReplica returns an empty replica.
func NewReplica() *Replica {
	return &Replica{
		graphs:  map[string]*types.Graph{},
		posts:   map[string]string{},
		replies: map[string]string{},
	}
}

// Graph returns the retained graph of an identity. Callers must not modify
// it; use Clone first.
func (r *Replica) Graph(identityID string) (*types.Graph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[identityID]
	return g, ok
}

// Ref returns the graph of an identity as a possibly unresolved reference.
func (r *Replica) Ref(identityID string) types.Ref[*types.Graph] {
	if g, ok := r.Graph(identityID); ok {
		return types.Resolved(identityID, g)
	}
	return types.Unresolved[*types.Graph](identityID)
}

// Identities returns the sorted IDs with a retained graph.
func (r *Replica) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.graphs))
}

// Post looks a post up across all retained graphs.
func (r *Replica) Post(id string) (types.Post, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.posts[id]
	if !ok {
		return types.Post{}, false
	}
	return r.graphs[owner].Post(id)
}

// Reply looks a reply up across all retained graphs.
func (r *Replica) Reply(id string) (types.PostReply, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.replies[id]
	if !ok {
		return types.PostReply{}, false
	}
	return r.graphs[owner].Reply(id)
}

// RepliesTo returns the retained replies referencing postID, oldest first.
func (r *Replica) RepliesTo(postID string) []types.PostReply {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.PostReply
	for _, id := range slices.Sorted(maps.Keys(r.graphs)) {
		for _, reply := range r.graphs[id].Replies() {
			if reply.PostID == postID {
				out = append(out, reply)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b types.PostReply) int { return a.Time.Compare(b.Time) })
	return out
}

// MarkPostKnown sets the known flag of a retained post.
func (r *Replica) MarkPostKnown(postID string) error {
	return r.update(r.posts, postID, types.ErrPostNotFound, func(g *types.Graph) error {
		return g.SetPostKnown(postID, true)
	})
}

// MarkReplyKnown sets the known flag of a retained reply.
func (r *Replica) MarkReplyKnown(replyID string) error {
	return r.update(r.replies, replyID, types.ErrNotFound, func(g *types.Graph) error {
		return g.SetReplyKnown(replyID, true)
	})
}

func (r *Replica) update(index map[string]string, id string, missing error, fn func(*types.Graph) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := index[id]
	if !ok {
		return missing
	}
	g := r.graphs[owner].Clone()
	if err := fn(g); err != nil {
		return err
	}
	r.graphs[owner] = g
	return nil
}

// Put replaces the retained graph of an identity.
func (r *Replica) Put(identityID string, g *types.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropIndex(identityID)
	r.graphs[identityID] = g
	for id := range g.PostMap() {
		r.posts[id] = identityID
	}
	for id := range g.ReplyMap() {
		r.replies[id] = identityID
	}
}

// Remove forgets an identity.
func (r *Replica) Remove(identityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropIndex(identityID)
	delete(r.graphs, identityID)
}

// dropIndex must be called with mu held.
func (r *Replica) dropIndex(identityID string) {
	old, ok := r.graphs[identityID]
	if !ok {
		return
	}
	for id := range old.PostMap() {
		if r.posts[id] == identityID {
			delete(r.posts, id)
		}
	}
	for id := range old.ReplyMap() {
		if r.replies[id] == identityID {
			delete(r.replies, id)
		}
	}
}
