package types

// Ref is a reference to an entity that may not be synchronized yet. An
// unresolved Ref only knows the ID; consumers must check Get before use.
type Ref[T any] struct {
	id       string
	value    T
	resolved bool
}

// Unresolved returns a Ref that only carries an ID.
func Unresolved[T any](id string) Ref[T] {
	return Ref[T]{id: id}
}

// Resolved returns a Ref carrying the entity.
func Resolved[T any](id string, v T) Ref[T] {
	return Ref[T]{id: id, value: v, resolved: true}
}

// ID returns the referenced ID.
func (r Ref[T]) ID() string { return r.id }

// IsResolved reports whether the entity is available.
func (r Ref[T]) IsResolved() bool { return r.resolved }

// Get returns the entity and whether it is available.
func (r Ref[T]) Get() (T, bool) { return r.value, r.resolved }
