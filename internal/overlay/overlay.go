// Package overlay defines the boundary to the versioned key-value network
// content documents are published to, with an in-memory implementation and
// a nostr relay implementation.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fetch outcomes other than success.
var (
	ErrNotFound    = errors.New("document not found")
	ErrUnavailable = errors.New("overlay unavailable")
	ErrInvalidKey  = errors.New("invalid versioned key")
)

// RedirectError is returned by Fetch when a newer edition supersedes the
// requested one. Callers retry against Key.
type RedirectError struct {
	Key Key
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("permanent redirect to %s", e.Key)
}

// Key is a versioned document name: a base key plus an edition number.
type Key struct {
	Base    string
	Edition int64
}

// String renders the key as base/edition.
func (k Key) String() string {
	return k.Base + "/" + strconv.FormatInt(k.Edition, 10)
}

// Next returns the key of the following edition.
func (k Key) Next() Key { return Key{Base: k.Base, Edition: k.Edition + 1} }

// ParseKey parses the base/edition form produced by Key.String.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndexByte(s, '/')
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	ed, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil || ed < 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{Base: s[:i], Edition: ed}, nil
}

// Overlay is the network collaborator. Editions of a base key only ever
// increase. Implementations return ErrUnavailable (possibly wrapped) for
// transport failures.
type Overlay interface {
	// Fetch returns the document stored under key. A newer edition yields
	// a *RedirectError; a missing document yields ErrNotFound.
	Fetch(ctx context.Context, key Key) ([]byte, error)

	// LatestEdition returns the newest known edition of base, or
	// ErrNotFound when nothing was published under it.
	LatestEdition(ctx context.Context, base string) (int64, error)

	// Publish stores doc under the insert key and returns the request key
	// and edition it became available at.
	Publish(ctx context.Context, insert Key, doc []byte) (Key, error)

	// Subscribe registers fn for edition updates of base. fn must not
	// block. A second Subscribe for the same base replaces the first.
	Subscribe(base string, fn func(edition int64)) error

	// Unsubscribe drops the subscription for base.
	Unsubscribe(base string)
}
