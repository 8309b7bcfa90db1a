package types

import "fmt"

// Trust bounds for the explicit value.
const (
	MinExplicitTrust = -100
	MaxExplicitTrust = 100
)

// Trust is the immutable trust triple one identity holds for another. Each
// component is optional: the identity service may not have computed it yet.
// A zero Trust (all components absent) is distinct from an explicit trust of 0.
type Trust struct {
	explicit *int
	implicit *int
	distance *int
}

// NewTrust builds a Trust from optional components. The explicit value is
// clamped to [MinExplicitTrust, MaxExplicitTrust] and a negative distance is
// treated as absent.
func NewTrust(explicit, implicit, distance *int) Trust {
	var t Trust
	if explicit != nil {
		v := min(max(*explicit, MinExplicitTrust), MaxExplicitTrust)
		t.explicit = &v
	}
	if implicit != nil {
		v := *implicit
		t.implicit = &v
	}
	if distance != nil && *distance >= 0 {
		v := *distance
		t.distance = &v
	}
	return t
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Explicit returns the explicit trust value and whether it is present.
func (t Trust) Explicit() (int, bool) { return deref(t.explicit) }

// Implicit returns the implicit trust value and whether it is present.
func (t Trust) Implicit() (int, bool) { return deref(t.implicit) }

// Distance returns the trust distance and whether it is present.
func (t Trust) Distance() (int, bool) { return deref(t.distance) }

// Equal reports whether both triples carry the same components.
func (t Trust) Equal(o Trust) bool {
	return sameOptional(t.explicit, o.explicit) &&
		sameOptional(t.implicit, o.implicit) &&
		sameOptional(t.distance, o.distance)
}

// Negative reports whether the triple expresses distrust. An explicit value
// takes precedence; the implicit value only counts when no explicit value is
// present. Missing data is neutral.
func (t Trust) Negative() bool {
	if v, ok := t.Explicit(); ok {
		return v < 0
	}
	if v, ok := t.Implicit(); ok {
		return v < 0
	}
	return false
}

func (t Trust) String() string {
	return fmt.Sprintf("Trust(explicit=%s, implicit=%s, distance=%s)",
		optionalString(t.explicit), optionalString(t.implicit), optionalString(t.distance))
}

func deref(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func sameOptional(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func optionalString(p *int) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprint(*p)
}
