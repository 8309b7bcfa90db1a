// Package change classifies the difference between two snapshots of an
// identified collection.
package change

import (
	"maps"
	"slices"
)

// Detector compares an old and a new collection keyed by ID. Equal decides
// whether an element present in both snapshots is unchanged; a nil Equal
// treats every common element as unchanged. Nil callbacks are no-ops.
type Detector[T any] struct {
	Equal func(prev, next T) bool

	OnAdded     func(id string, v T)
	OnRemoved   func(id string, v T)
	OnChanged   func(id string, prev, next T)
	OnUnchanged func(id string, prev, next T)
}

// Result lists the classified IDs of one Detect call, each sorted.
type Result struct {
	Added     []string
	Removed   []string
	Changed   []string
	Unchanged []string
}

// Empty reports whether nothing was added, removed or changed.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Detect classifies every ID of prev and next exactly once and invokes the
// matching callback. Removals are reported first, then IDs present in the
// new snapshot in sorted order. The input maps are not modified.
func (d Detector[T]) Detect(prev, next map[string]T) Result {
	var res Result
	for _, id := range slices.Sorted(maps.Keys(prev)) {
		if _, ok := next[id]; ok {
			continue
		}
		res.Removed = append(res.Removed, id)
		if d.OnRemoved != nil {
			d.OnRemoved(id, prev[id])
		}
	}
	for _, id := range slices.Sorted(maps.Keys(next)) {
		nv := next[id]
		ov, existed := prev[id]
		switch {
		case !existed:
			res.Added = append(res.Added, id)
			if d.OnAdded != nil {
				d.OnAdded(id, nv)
			}
		case d.Equal != nil && !d.Equal(ov, nv):
			res.Changed = append(res.Changed, id)
			if d.OnChanged != nil {
				d.OnChanged(id, ov, nv)
			}
		default:
			res.Unchanged = append(res.Unchanged, id)
			if d.OnUnchanged != nil {
				d.OnUnchanged(id, ov, nv)
			}
		}
	}
	return res
}

// Index builds an ID-keyed map from a slice.
func Index[T any](items []T, id func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, it := range items {
		out[id(it)] = it
	}
	return out
}
