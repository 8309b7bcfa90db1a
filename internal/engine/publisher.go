package engine

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/sone/internal/document"
	"github.com/mesh-intelligence/sone/internal/fingerprint"
	"github.com/mesh-intelligence/sone/internal/overlay"
	"github.com/mesh-intelligence/sone/pkg/sone"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// publish inserts the current graph of an own identity under its insert
// key. It runs under the identity's publish lock and reports the
// fingerprint of the graph it published, which may be older than the graph
// at the time it returns.
func (e *Engine) publish(ctx context.Context, id string) (fingerprint.Digest, error) {
	st, ok := e.ownState(id)
	if !ok {
		return "", ErrUnknownOwnIdentity
	}
	g := st.graph.Load().Clone()
	fp := fingerprint.Of(g)
	g.Time = e.now()
	g.Client = &types.Client{Name: sone.ClientName, Version: sone.Version}
	data, err := document.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", id, err)
	}

	insert := overlay.Key{Base: st.identity.InsertURI, Edition: st.currentEdition() + 1}
	key, err := e.ov.Publish(ctx, insert, data)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", insert, err)
	}
	st.raiseEdition(key.Edition)
	e.log.Debug("inserted %s at %s", id, key)

	if e.fingerprints != nil {
		rec := &types.FingerprintRecord{IdentityID: id, Fingerprint: string(fp), PublishedAt: g.Time}
		if _, err := e.fingerprints.Set(id, rec); err != nil {
			e.log.Warn("store fingerprint of %s: %v", id, err)
		}
	}
	if e.editions != nil {
		rec := &types.EditionRecord{IdentityID: id, Edition: key.Edition, UpdatedAt: g.Time}
		if _, err := e.editions.Set(id, rec); err != nil {
			e.log.Warn("store edition of %s: %v", id, err)
		}
	}
	return fp, nil
}
