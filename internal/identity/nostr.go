package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"

	"github.com/mesh-intelligence/sone/internal/overlay"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// Nostr event kinds read by NostrService.
const (
	MetadataKind = 0
	ContactsKind = 3
)

// FollowTrust is the explicit trust reported for a followed identity.
const FollowTrust = 100

// NostrService derives identities and trust from nostr relays. Own
// identities come from configured secret keys; an own identity trusts every
// public key on its latest contact list. Contexts and properties are kept
// locally in the annotations table, defaulting to the Sone context.
type NostrService struct {
	pool        *overlay.RelayPool
	keys        map[string]string // public key -> secret key
	annotations types.Table

	mu    deadlock.Mutex
	local map[string]types.AnnotationRecord
}

// NewNostrService validates the secret keys and returns a service. A nil
// annotations table keeps annotations in memory.
func NewNostrService(pool *overlay.RelayPool, secretKeys []string, annotations types.Table) (*NostrService, error) {
	keys := map[string]string{}
	for _, sk := range secretKeys {
		pk, err := nostr.GetPublicKey(sk)
		if err != nil {
			return nil, fmt.Errorf("invalid secret key: %w", err)
		}
		keys[pk] = sk
	}
	return &NostrService{
		pool:        pool,
		keys:        keys,
		annotations: annotations,
		local:       map[string]types.AnnotationRecord{},
	}, nil
}

// OwnIdentities implements Service.
func (n *NostrService) OwnIdentities(ctx context.Context) ([]*types.OwnIdentity, error) {
	pks := make([]string, 0, len(n.keys))
	for pk := range n.keys {
		pks = append(pks, pk)
	}
	slices.Sort(pks)
	names, err := n.names(ctx, pks)
	if err != nil {
		return nil, err
	}
	out := make([]*types.OwnIdentity, 0, len(pks))
	for _, pk := range pks {
		ann, err := n.annotation(pk)
		if err != nil {
			return nil, err
		}
		out = append(out, types.NewOwnIdentity(pk, names[pk], pk, n.keys[pk], ann.Contexts, ann.Properties))
	}
	return out, nil
}

// TrustedIdentities implements Service.
func (n *NostrService) TrustedIdentities(ctx context.Context, own *types.OwnIdentity, contextTag string) ([]*types.Identity, error) {
	follows, err := n.follows(ctx, own.ID)
	if err != nil {
		return nil, err
	}
	names, err := n.names(ctx, follows)
	if err != nil {
		return nil, err
	}
	trust := types.NewTrust(types.Ptr(FollowTrust), nil, types.Ptr(1))
	var out []*types.Identity
	for _, pk := range follows {
		ann, err := n.annotation(pk)
		if err != nil {
			return nil, err
		}
		ident := types.NewIdentity(pk, names[pk], pk, ann.Contexts, ann.Properties)
		if contextTag != "" && !ident.HasContext(contextTag) {
			continue
		}
		out = append(out, ident.WithTrust(own.ID, trust))
	}
	return out, nil
}

// Trust implements Service.
func (n *NostrService) Trust(ctx context.Context, trusterID, trusteeID string) (types.Trust, bool, error) {
	follows, err := n.follows(ctx, trusterID)
	if err != nil {
		return types.Trust{}, false, err
	}
	if !slices.Contains(follows, trusteeID) {
		return types.Trust{}, false, nil
	}
	return types.NewTrust(types.Ptr(FollowTrust), nil, types.Ptr(1)), true, nil
}

// Ping implements Service.
func (n *NostrService) Ping(ctx context.Context) error { return n.pool.Ping(ctx) }

// AddContext implements Service.
func (n *NostrService) AddContext(_ context.Context, identityID, tag string) error {
	return n.annotate(identityID, func(r *types.AnnotationRecord) {
		if !slices.Contains(r.Contexts, tag) {
			r.Contexts = append(r.Contexts, tag)
		}
	})
}

// RemoveContext implements Service.
func (n *NostrService) RemoveContext(_ context.Context, identityID, tag string) error {
	return n.annotate(identityID, func(r *types.AnnotationRecord) {
		r.Contexts = slices.DeleteFunc(r.Contexts, func(s string) bool { return s == tag })
	})
}

// SetProperty implements Service.
func (n *NostrService) SetProperty(_ context.Context, identityID, name, value string) error {
	return n.annotate(identityID, func(r *types.AnnotationRecord) { r.Properties[name] = value })
}

// RemoveProperty implements Service.
func (n *NostrService) RemoveProperty(_ context.Context, identityID, name string) error {
	return n.annotate(identityID, func(r *types.AnnotationRecord) { delete(r.Properties, name) })
}

// follows returns the public keys on the newest contact list of pk.
func (n *NostrService) follows(ctx context.Context, pk string) ([]string, error) {
	events, err := n.pool.Query(ctx, nostr.Filters{nostr.Filter{
		Kinds:   []int{ContactsKind},
		Authors: []string{pk},
	}})
	if err != nil {
		return nil, err
	}
	latest := overlay.Newest(events)
	if latest == nil {
		return nil, nil
	}
	var out []string
	for _, tag := range latest.Tags {
		if len(tag) >= 2 && tag[0] == "p" && tag[1] != "" && tag[1] != pk && !slices.Contains(out, tag[1]) {
			out = append(out, tag[1])
		}
	}
	slices.Sort(out)
	return out, nil
}

// names resolves display names from the newest metadata event per key.
func (n *NostrService) names(ctx context.Context, pks []string) (map[string]string, error) {
	out := map[string]string{}
	if len(pks) == 0 {
		return out, nil
	}
	events, err := n.pool.Query(ctx, nostr.Filters{nostr.Filter{
		Kinds:   []int{MetadataKind},
		Authors: pks,
	}})
	if err != nil {
		return nil, err
	}
	byAuthor := map[string][]*nostr.Event{}
	for _, ev := range events {
		byAuthor[ev.PubKey] = append(byAuthor[ev.PubKey], ev)
	}
	for pk, evs := range byAuthor {
		var meta struct {
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
		}
		if err := json.Unmarshal([]byte(overlay.Newest(evs).Content), &meta); err != nil {
			continue
		}
		out[pk] = meta.Name
		if meta.DisplayName != "" {
			out[pk] = meta.DisplayName
		}
	}
	return out, nil
}

func defaultAnnotation(id string) types.AnnotationRecord {
	return types.AnnotationRecord{
		IdentityID: id,
		Contexts:   []string{types.DefaultIdentityContext},
		Properties: map[string]string{},
	}
}

func (n *NostrService) annotation(id string) (types.AnnotationRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loadAnnotation(id)
}

// loadAnnotation must be called with mu held.
func (n *NostrService) loadAnnotation(id string) (types.AnnotationRecord, error) {
	if n.annotations == nil {
		if r, ok := n.local[id]; ok {
			return cloneAnnotation(r), nil
		}
		return defaultAnnotation(id), nil
	}
	v, err := n.annotations.Get(id)
	if errors.Is(err, types.ErrNotFound) {
		return defaultAnnotation(id), nil
	}
	if err != nil {
		return types.AnnotationRecord{}, err
	}
	r, ok := v.(*types.AnnotationRecord)
	if !ok {
		return types.AnnotationRecord{}, types.ErrInvalidData
	}
	out := cloneAnnotation(*r)
	if out.Properties == nil {
		out.Properties = map[string]string{}
	}
	return out, nil
}

func (n *NostrService) annotate(id string, fn func(r *types.AnnotationRecord)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, err := n.loadAnnotation(id)
	if err != nil {
		return err
	}
	fn(&r)
	if n.annotations == nil {
		n.local[id] = r
		return nil
	}
	_, err = n.annotations.Set(id, &r)
	return err
}

func cloneAnnotation(r types.AnnotationRecord) types.AnnotationRecord {
	out := types.AnnotationRecord{IdentityID: r.IdentityID, Contexts: slices.Clone(r.Contexts), Properties: map[string]string{}}
	maps.Copy(out.Properties, r.Properties)
	return out
}
