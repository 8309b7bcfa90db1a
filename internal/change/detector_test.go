package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	fields string
}

func sameItem(a, b item) bool { return a.fields == b.fields }

func TestDetectExample(t *testing.T) {
	old := map[string]item{"A": {fields: "X"}, "B": {}}
	next := map[string]item{"A": {fields: "Y"}, "C": {}}

	var added, removed, changed []string
	d := Detector[item]{
		Equal:     sameItem,
		OnAdded:   func(id string, _ item) { added = append(added, id) },
		OnRemoved: func(id string, _ item) { removed = append(removed, id) },
		OnChanged: func(id string, o, n item) {
			assert.Equal(t, "X", o.fields)
			assert.Equal(t, "Y", n.fields)
			changed = append(changed, id)
		},
		OnUnchanged: func(id string, _, _ item) { t.Errorf("unexpected unchanged %s", id) },
	}
	res := d.Detect(old, next)

	assert.Equal(t, []string{"C"}, added)
	assert.Equal(t, []string{"B"}, removed)
	assert.Equal(t, []string{"A"}, changed)
	assert.Equal(t, Result{Added: []string{"C"}, Removed: []string{"B"}, Changed: []string{"A"}}, res)
	assert.False(t, res.Empty())
}

func TestDetectPartitionsAreExhaustive(t *testing.T) {
	tests := []struct {
		name string
		old  map[string]item
		next map[string]item
	}{
		{name: "both empty"},
		{name: "only old", old: map[string]item{"a": {}, "b": {}}},
		{name: "only new", next: map[string]item{"a": {}, "b": {}}},
		{name: "overlap", old: map[string]item{"a": {"1"}, "b": {"1"}, "c": {}}, next: map[string]item{"b": {"2"}, "c": {}, "d": {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := map[string]int{}
			count := func(id string) { seen[id]++ }
			d := Detector[item]{
				Equal:       sameItem,
				OnAdded:     func(id string, _ item) { count(id) },
				OnRemoved:   func(id string, _ item) { count(id) },
				OnChanged:   func(id string, _, _ item) { count(id) },
				OnUnchanged: func(id string, _, _ item) { count(id) },
			}
			d.Detect(tt.old, tt.next)

			union := map[string]bool{}
			for id := range tt.old {
				union[id] = true
			}
			for id := range tt.next {
				union[id] = true
			}
			assert.Len(t, seen, len(union))
			for id := range union {
				assert.Equal(t, 1, seen[id], "id %s", id)
			}
		})
	}
}

func TestDetectNilCallbacks(t *testing.T) {
	old := map[string]item{"a": {"1"}, "b": {}}
	next := map[string]item{"a": {"2"}, "c": {}}

	res := Detector[item]{Equal: sameItem}.Detect(old, next)
	assert.Equal(t, []string{"c"}, res.Added)
	assert.Len(t, old, 2, "inputs untouched")
	assert.Len(t, next, 2)
}

func TestDetectWithoutEqualTreatsCommonAsUnchanged(t *testing.T) {
	res := Detector[item]{}.Detect(map[string]item{"a": {"1"}}, map[string]item{"a": {"2"}})
	assert.Equal(t, []string{"a"}, res.Unchanged)
	assert.True(t, res.Empty())
}

func TestIndex(t *testing.T) {
	got := Index([]string{"x", "yy"}, func(s string) string { return s })
	assert.Equal(t, map[string]string{"x": "x", "yy": "yy"}, got)
}
