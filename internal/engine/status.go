package engine

import (
	"maps"
	"slices"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Status returns the synchronization status of an identity. Own identities
// also report modification, publish state and the last publish result.
func (e *Engine) Status(id string) types.Status {
	st, _ := e.content.Status(id)
	own, ok := e.ownState(id)
	if !ok {
		return st
	}
	st.IdentityID = id
	st.Modified = own.detector.Modified()
	st.LastPublishFailed = e.scheduler.LastPublishFailed(id)
	st.Edition = max(st.Edition, own.currentEdition())
	if e.locks.Publishing(id) {
		st.State = types.StatePublishing
	} else if st.State == types.StateUnknown {
		st.State = types.StateIdle
	}
	st.StateName = st.State.String()
	return st
}

// Statuses returns the status of every own and tracked identity, sorted by
// ID.
func (e *Engine) Statuses() []types.Status {
	e.mu.Lock()
	ids := map[string]struct{}{}
	for id := range e.own {
		ids[id] = struct{}{}
	}
	for id := range e.refs {
		ids[id] = struct{}{}
	}
	e.mu.Unlock()

	out := make([]types.Status, 0, len(ids))
	for _, id := range slices.Sorted(maps.Keys(ids)) {
		out = append(out, e.Status(id))
	}
	return out
}
