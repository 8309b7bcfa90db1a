package identity

import (
	"context"
	"errors"
	"slices"

	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// ErrServiceDown is returned by a MemoryService that was switched off.
var ErrServiceDown = errors.New("identity service down")

type record struct {
	id, nickname, requestURI, insertURI string

	contexts   []string
	properties map[string]string
}

func (r *record) identity() *types.Identity {
	return types.NewIdentity(r.id, r.nickname, r.requestURI, r.contexts, r.properties)
}

func (r *record) own() *types.OwnIdentity {
	return types.NewOwnIdentity(r.id, r.nickname, r.requestURI, r.insertURI, r.contexts, r.properties)
}

// MemoryService is an in-process Service for tests and local runs.
type MemoryService struct {
	mu      deadlock.Mutex
	records map[string]*record
	owns    []string
	trusted map[string][]string
	trust   map[[2]string]types.Trust
	down    bool
}

// NewMemoryService returns an empty service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		records: map[string]*record{},
		trusted: map[string][]string{},
		trust:   map[[2]string]types.Trust{},
	}
}

// AddOwn registers a locally controlled identity.
func (m *MemoryService) AddOwn(id, nickname, requestURI, insertURI string, contexts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = &record{id: id, nickname: nickname, requestURI: requestURI, insertURI: insertURI,
		contexts: contexts, properties: map[string]string{}}
	if !slices.Contains(m.owns, id) {
		m.owns = append(m.owns, id)
	}
}

// RemoveOwn forgets an own identity and its trust list.
func (m *MemoryService) RemoveOwn(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owns = slices.DeleteFunc(m.owns, func(s string) bool { return s == id })
	delete(m.trusted, id)
}

// AddRemote registers a remote identity.
func (m *MemoryService) AddRemote(id, nickname, requestURI string, contexts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = &record{id: id, nickname: nickname, requestURI: requestURI,
		contexts: contexts, properties: map[string]string{}}
}

// SetTrust makes ownID trust trusteeID with the given value.
func (m *MemoryService) SetTrust(ownID, trusteeID string, t types.Trust) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.trusted[ownID], trusteeID) {
		m.trusted[ownID] = append(m.trusted[ownID], trusteeID)
	}
	m.trust[[2]string{ownID, trusteeID}] = t
}

// Untrust removes trusteeID from ownID's trusted set.
func (m *MemoryService) Untrust(ownID, trusteeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[ownID] = slices.DeleteFunc(m.trusted[ownID], func(s string) bool { return s == trusteeID })
	delete(m.trust, [2]string{ownID, trusteeID})
}

// SetDown makes every call fail with ErrServiceDown while down is true.
func (m *MemoryService) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// OwnIdentities implements Service.
func (m *MemoryService) OwnIdentities(context.Context) ([]*types.OwnIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, ErrServiceDown
	}
	out := make([]*types.OwnIdentity, 0, len(m.owns))
	for _, id := range m.owns {
		out = append(out, m.records[id].own())
	}
	return out, nil
}

// TrustedIdentities implements Service.
func (m *MemoryService) TrustedIdentities(_ context.Context, own *types.OwnIdentity, ctxFilter string) ([]*types.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, ErrServiceDown
	}
	var out []*types.Identity
	for _, id := range m.trusted[own.ID] {
		r, ok := m.records[id]
		if !ok {
			continue
		}
		if ctxFilter != "" && !slices.Contains(r.contexts, ctxFilter) {
			continue
		}
		ident := r.identity()
		if t, ok := m.trust[[2]string{own.ID, id}]; ok {
			ident = ident.WithTrust(own.ID, t)
		}
		out = append(out, ident)
	}
	return out, nil
}

// Trust implements Service.
func (m *MemoryService) Trust(_ context.Context, trusterID, trusteeID string) (types.Trust, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return types.Trust{}, false, ErrServiceDown
	}
	t, ok := m.trust[[2]string{trusterID, trusteeID}]
	return t, ok, nil
}

// Ping implements Service.
func (m *MemoryService) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrServiceDown
	}
	return nil
}

// AddContext implements Service.
func (m *MemoryService) AddContext(_ context.Context, identityID, tag string) error {
	return m.edit(identityID, func(r *record) {
		if !slices.Contains(r.contexts, tag) {
			r.contexts = append(slices.Clone(r.contexts), tag)
		}
	})
}

// RemoveContext implements Service.
func (m *MemoryService) RemoveContext(_ context.Context, identityID, tag string) error {
	return m.edit(identityID, func(r *record) {
		r.contexts = slices.DeleteFunc(slices.Clone(r.contexts), func(s string) bool { return s == tag })
	})
}

// SetProperty implements Service.
func (m *MemoryService) SetProperty(_ context.Context, identityID, name, value string) error {
	return m.edit(identityID, func(r *record) { r.properties[name] = value })
}

// RemoveProperty implements Service.
func (m *MemoryService) RemoveProperty(_ context.Context, identityID, name string) error {
	return m.edit(identityID, func(r *record) { delete(r.properties, name) })
}

func (m *MemoryService) edit(id string, fn func(r *record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrServiceDown
	}
	r, ok := m.records[id]
	if !ok {
		return ErrUnknownIdentity
	}
	fn(r)
	return nil
}
