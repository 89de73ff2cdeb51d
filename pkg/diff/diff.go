// Package diff annotates two typed value trees with added, removed and
// changed marks for side-by-side display.
package diff

import (
	"sort"
	"strconv"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/goliatone/go-semval/pkg/value"
)

// Annotate compares original with updated and marks the differing leaves of
// both trees in place. Struct fields are compared key by key; lists are
// compared as multisets, so reordering or repeating an item already present
// on the other side produces no marks.
func Annotate(original, updated *value.Value) {
	if original == nil || updated == nil {
		return
	}
	if original.IsList() && updated.IsList() {
		annotateList(original.Items(), updated.Items())
		return
	}
	if original.Type != updated.Type {
		original.Diff = value.MarkChanged
		updated.Diff = value.MarkChanged
		return
	}
	if original.IsStruct() && updated.IsStruct() {
		annotateStruct(original.Fields(), updated.Fields())
		return
	}
	if !value.PayloadEqual(original.Value, updated.Value) {
		original.Diff = value.MarkChanged
		updated.Diff = value.MarkChanged
	}
}

func annotateStruct(original, updated value.Struct) {
	for name, left := range original {
		right, ok := updated[name]
		if !ok {
			mark(left, value.MarkRemoved)
			continue
		}
		Annotate(left, right)
	}
	for name, right := range updated {
		if _, ok := original[name]; !ok {
			mark(right, value.MarkAdded)
		}
	}
}

func annotateList(original, updated value.List) {
	left, right := members(original), members(updated)
	for _, item := range original {
		if _, ok := right[item.Key()]; !ok {
			mark(item, value.MarkRemoved)
		}
	}
	for _, item := range updated {
		if _, ok := left[item.Key()]; !ok {
			mark(item, value.MarkAdded)
		}
	}
}

func members(items value.List) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item.Key()] = struct{}{}
	}
	return out
}

func mark(v *value.Value, m value.Mark) {
	if v != nil {
		v.Diff = m
	}
}

// Change is one marked node found by Changes.
type Change struct {
	Path string
	Mark value.Mark
	Type string
}

// Changes lists the marked nodes of an annotated tree in path order. Paths
// use dots for struct fields and [i] for list items.
func Changes(v *value.Value) []Change {
	var out []Change
	collect(v, "", &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collect(v *value.Value, path string, out *[]Change) {
	if v == nil {
		return
	}
	if v.Diff != value.MarkNone {
		*out = append(*out, Change{Path: path, Mark: v.Diff, Type: v.Type})
	}
	for name, field := range v.Fields() {
		next := name
		if path != "" {
			next = path + "." + name
		}
		collect(field, next, out)
	}
	for idx, item := range v.Items() {
		collect(item, path+"["+strconv.Itoa(idx)+"]", out)
	}
}

// Op is the kind of a text segment.
type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Segment is one run of a character-level text diff.
type Segment struct {
	Op   Op
	Text string
}

// TextDiff computes a semantic character diff between two strings, suitable
// for highlighting inside a changed string leaf.
func TextDiff(before, after string) []Segment {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	out := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		default:
			op = OpEqual
		}
		out = append(out, Segment{Op: op, Text: d.Text})
	}
	return out
}
