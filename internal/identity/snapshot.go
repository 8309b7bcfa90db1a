package identity

import (
	"maps"
	"slices"
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// Snapshot is the immutable result of one successful poll. It is replaced
// wholesale by the next successful poll and never mutated.
type Snapshot struct {
	At time.Time

	own     map[string]*types.OwnIdentity
	trusted map[string]map[string]*types.Identity // own ID -> remote ID -> identity
	remote  map[string]*types.Identity            // trust caches merged over all trusters
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		own:     map[string]*types.OwnIdentity{},
		trusted: map[string]map[string]*types.Identity{},
		remote:  map[string]*types.Identity{},
	}
}

func newSnapshot(at time.Time, owns []*types.OwnIdentity, trusted map[string][]*types.Identity) *Snapshot {
	s := emptySnapshot()
	s.At = at
	for _, o := range owns {
		s.own[o.ID] = o
		set := map[string]*types.Identity{}
		for _, ident := range trusted[o.ID] {
			set[ident.ID] = ident
		}
		s.trusted[o.ID] = set
	}
	for _, ownID := range slices.Sorted(maps.Keys(s.trusted)) {
		for _, id := range slices.Sorted(maps.Keys(s.trusted[ownID])) {
			ident := s.trusted[ownID][id]
			merged, ok := s.remote[id]
			if !ok {
				s.remote[id] = ident
				continue
			}
			if t, ok := ident.TrustFrom(ownID); ok {
				s.remote[id] = merged.WithTrust(ownID, t)
			}
		}
	}
	return s
}

// OwnIdentities returns the own identities sorted by ID.
func (s *Snapshot) OwnIdentities() []*types.OwnIdentity {
	out := make([]*types.OwnIdentity, 0, len(s.own))
	for _, id := range slices.Sorted(maps.Keys(s.own)) {
		out = append(out, s.own[id])
	}
	return out
}

// Own returns the own identity with the given ID.
func (s *Snapshot) Own(id string) (*types.OwnIdentity, bool) {
	o, ok := s.own[id]
	return o, ok
}

// Trusted returns the identities trusted by ownID, sorted by ID.
func (s *Snapshot) Trusted(ownID string) []*types.Identity {
	set := s.trusted[ownID]
	out := make([]*types.Identity, 0, len(set))
	for _, id := range slices.Sorted(maps.Keys(set)) {
		out = append(out, set[id])
	}
	return out
}

// Remote returns the sorted IDs of every identity trusted by at least one
// own identity.
func (s *Snapshot) Remote() []string {
	return slices.Sorted(maps.Keys(s.remote))
}

// Identity resolves an ID against the trusted identities first and the own
// identities second.
func (s *Snapshot) Identity(id string) (*types.Identity, bool) {
	if ident, ok := s.remote[id]; ok {
		return ident, true
	}
	if o, ok := s.own[id]; ok {
		return &o.Identity, true
	}
	return nil, false
}

// Trust returns the cached trust trusterID holds for trusteeID.
func (s *Snapshot) Trust(trusterID, trusteeID string) (types.Trust, bool) {
	ident, ok := s.trusted[trusterID][trusteeID]
	if !ok {
		return types.Trust{}, false
	}
	return ident.TrustFrom(trusterID)
}
