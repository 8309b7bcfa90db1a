// Package identity polls the identity service and turns successive
// snapshots of own and trusted identities into typed change events.
package identity

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// ErrMalformed is returned when the service reports data the synchronizer
// cannot use, such as an identity without an ID.
var ErrMalformed = errors.New("malformed identity data")

// ErrUnknownIdentity is returned by services for operations on identities
// they do not know.
var ErrUnknownIdentity = errors.New("unknown identity")

// Service is the identity and trust collaborator. Every error is treated as
// "unavailable this cycle" by the synchronizer.
type Service interface {
	// OwnIdentities lists the locally controlled identities.
	OwnIdentities(ctx context.Context) ([]*types.OwnIdentity, error)

	// TrustedIdentities lists the identities own trusts, restricted to
	// those carrying contextTag when it is not empty. The returned
	// identities carry own's trust in their trust cache.
	TrustedIdentities(ctx context.Context, own *types.OwnIdentity, contextTag string) ([]*types.Identity, error)

	// Trust returns the trust truster holds for trustee. The boolean is
	// false when the service has no value.
	Trust(ctx context.Context, trusterID, trusteeID string) (types.Trust, bool, error)

	// Ping checks that the service is reachable.
	Ping(ctx context.Context) error

	AddContext(ctx context.Context, identityID, tag string) error
	RemoveContext(ctx context.Context, identityID, tag string) error
	SetProperty(ctx context.Context, identityID, name, value string) error
	RemoveProperty(ctx context.Context, identityID, name string) error
}
