package registry

import (
	"sort"
	"strings"
)

// Overrides is one scope in an immutable stack of handle overlays. Pushing a
// scope returns a new chain and leaves the parent untouched, so a subtree can
// substitute handles without affecting its siblings.
type Overrides struct {
	parent  *Overrides
	entries map[string]Handle
	key     string
}

// Push returns a new innermost scope on top of o. o may be nil.
func (o *Overrides) Push(entries map[string]Handle) *Overrides {
	copied := make(map[string]Handle, len(entries))
	for name, handle := range entries {
		copied[name] = handle
	}
	next := &Overrides{parent: o, entries: copied}
	next.key = next.buildKey()
	return next
}

// Pop returns the enclosing scope.
func (o *Overrides) Pop() *Overrides {
	if o == nil {
		return nil
	}
	return o.parent
}

// Depth reports how many scopes are stacked.
func (o *Overrides) Depth() int {
	depth := 0
	for scope := o; scope != nil; scope = scope.parent {
		depth++
	}
	return depth
}

// Key is a stable string identifying the effective overlay, innermost last.
// Two chains with equal keys resolve every type identically.
func (o *Overrides) Key() string {
	if o == nil {
		return ""
	}
	return o.key
}

func (o *Overrides) buildKey() string {
	names := make([]string, 0, len(o.entries))
	for name := range o.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+o.entries[name].Name)
	}
	own := "{" + strings.Join(parts, ",") + "}"
	if o.parent == nil {
		return own
	}
	return o.parent.Key() + "/" + own
}
