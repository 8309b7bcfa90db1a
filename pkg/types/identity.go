package types

import (
	"maps"
	"slices"
)

// Identity is a remote participant as reported by the identity service.
// Snapshots are replaced wholesale on every poll; callers never mutate an
// Identity they did not create.
type Identity struct {
	ID         string
	Nickname   string
	RequestURI string // versioned public key reference of the content document

	contexts   []string          // sorted, unique
	properties map[string]string
	trust      map[string]Trust // keyed by truster identity ID
}

// NewIdentity builds an Identity. Contexts are normalized to a sorted set so
// that iteration order never depends on how the service listed them.
func NewIdentity(id, nickname, requestURI string, contexts []string, properties map[string]string) *Identity {
	ctx := slices.Clone(contexts)
	slices.Sort(ctx)
	ctx = slices.Compact(ctx)
	props := make(map[string]string, len(properties))
	maps.Copy(props, properties)
	return &Identity{
		ID:         id,
		Nickname:   nickname,
		RequestURI: requestURI,
		contexts:   ctx,
		properties: props,
		trust:      map[string]Trust{},
	}
}

// Contexts returns a copy of the sorted context tags.
func (i *Identity) Contexts() []string {
	return slices.Clone(i.contexts)
}

// HasContext reports whether the identity carries the given context tag.
func (i *Identity) HasContext(context string) bool {
	_, found := slices.BinarySearch(i.contexts, context)
	return found
}

// Properties returns a copy of the property map.
func (i *Identity) Properties() map[string]string {
	return maps.Clone(i.properties)
}

// Property returns the value of the named property.
func (i *Identity) Property(name string) (string, bool) {
	v, ok := i.properties[name]
	return v, ok
}

// TrustFrom returns the cached trust the given truster holds for this identity.
func (i *Identity) TrustFrom(trusterID string) (Trust, bool) {
	t, ok := i.trust[trusterID]
	return t, ok
}

// Trusters returns the sorted IDs of identities with a cached trust entry.
func (i *Identity) Trusters() []string {
	return slices.Sorted(maps.Keys(i.trust))
}

// WithTrust returns a copy of the identity with the trust entry for
// trusterID replaced.
func (i *Identity) WithTrust(trusterID string, trust Trust) *Identity {
	c := i.Clone()
	c.trust[trusterID] = trust
	return c
}

// WithoutTrust returns a copy of the identity without a trust entry for
// trusterID.
func (i *Identity) WithoutTrust(trusterID string) *Identity {
	c := i.Clone()
	delete(c.trust, trusterID)
	return c
}

// Clone returns a deep copy.
func (i *Identity) Clone() *Identity {
	c := *i
	c.contexts = slices.Clone(i.contexts)
	c.properties = maps.Clone(i.properties)
	if c.properties == nil {
		c.properties = map[string]string{}
	}
	c.trust = maps.Clone(i.trust)
	if c.trust == nil {
		c.trust = map[string]Trust{}
	}
	return &c
}

// SameState reports whether two snapshots of an identity carry the same
// tracked state: contexts and properties. Trust and nickname are not tracked.
func (i *Identity) SameState(o *Identity) bool {
	return slices.Equal(i.contexts, o.contexts) && maps.Equal(i.properties, o.properties)
}

// OwnIdentity is a locally controlled identity. It can publish and it acts
// as a truster.
type OwnIdentity struct {
	Identity
	InsertURI string // insert-capable key reference
}

// NewOwnIdentity builds an OwnIdentity.
func NewOwnIdentity(id, nickname, requestURI, insertURI string, contexts []string, properties map[string]string) *OwnIdentity {
	return &OwnIdentity{
		Identity:  *NewIdentity(id, nickname, requestURI, contexts, properties),
		InsertURI: insertURI,
	}
}

// SameState reports whether two snapshots of an own identity carry the same
// contexts and properties.
func (o *OwnIdentity) SameState(other *OwnIdentity) bool {
	return o.Identity.SameState(&other.Identity)
}
