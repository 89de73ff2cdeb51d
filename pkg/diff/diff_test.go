package diff

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-semval/pkg/value"
)

func decode(t *testing.T, raw string) *value.Value {
	t.Helper()
	var v value.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return &v
}

const clientJSON = `{"type":"Client","value":{
	"hostname":{"type":"RDFString","value":"web-1"},
	"memory":{"type":"ByteSize","value":2048},
	"labels":[{"type":"RDFString","value":"prod"},{"type":"RDFString","value":"eu"}],
	"os":{"type":"OSInfo","value":{"release":{"type":"RDFString","value":"22.04"}}}
}}`

func TestIdenticalTreesCarryNoMarks(t *testing.T) {
	original := decode(t, clientJSON)
	updated := decode(t, clientJSON)
	Annotate(original, updated)

	if changes := Changes(original); len(changes) != 0 {
		t.Fatalf("expected no marks on original, got %#v", changes)
	}
	if changes := Changes(updated); len(changes) != 0 {
		t.Fatalf("expected no marks on updated, got %#v", changes)
	}
}

func TestSingleChangedLeaf(t *testing.T) {
	original := decode(t, `{"type":"Foo","value":{"a":{"type":"RDFString","value":"foo"}}}`)
	updated := decode(t, `{"type":"Foo","value":{"a":{"type":"RDFString","value":"bar"}}}`)
	Annotate(original, updated)

	left, _ := original.Field("a")
	right, _ := updated.Field("a")
	if left.Diff != value.MarkChanged || right.Diff != value.MarkChanged {
		t.Fatalf("expected both leaves changed, got %q and %q", left.Diff, right.Diff)
	}
	if original.Diff != value.MarkNone || updated.Diff != value.MarkNone {
		t.Fatalf("struct roots must stay unmarked")
	}
}

func TestNestedLeafChangeMarksOnlyThatLeaf(t *testing.T) {
	original := decode(t, clientJSON)
	updated := decode(t, clientJSON)
	os, _ := updated.Field("os")
	release, _ := os.Field("release")
	release.Value = "24.04"

	Annotate(original, updated)
	want := []Change{{Path: "os.release", Mark: value.MarkChanged, Type: "RDFString"}}
	if diff := cmp.Diff(want, Changes(original)); diff != "" {
		t.Fatalf("original marks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, Changes(updated)); diff != "" {
		t.Fatalf("updated marks mismatch (-want +got):\n%s", diff)
	}
}

func TestAddedRemovedAndTypeChanges(t *testing.T) {
	original := decode(t, `{"type":"Foo","value":{
		"gone":{"type":"RDFString","value":"x"},
		"kind":{"type":"RDFString","value":"1"}}}`)
	updated := decode(t, `{"type":"Foo","value":{
		"new":{"type":"RDFString","value":"y"},
		"kind":{"type":"RDFInteger","value":1}}}`)
	Annotate(original, updated)

	wantOriginal := []Change{
		{Path: "gone", Mark: value.MarkRemoved, Type: "RDFString"},
		{Path: "kind", Mark: value.MarkChanged, Type: "RDFString"},
	}
	if diff := cmp.Diff(wantOriginal, Changes(original)); diff != "" {
		t.Fatalf("original marks mismatch (-want +got):\n%s", diff)
	}
	wantUpdated := []Change{
		{Path: "kind", Mark: value.MarkChanged, Type: "RDFInteger"},
		{Path: "new", Mark: value.MarkAdded, Type: "RDFString"},
	}
	if diff := cmp.Diff(wantUpdated, Changes(updated)); diff != "" {
		t.Fatalf("updated marks mismatch (-want +got):\n%s", diff)
	}
}

func TestListsCompareAsMultisets(t *testing.T) {
	s := func(v string) *value.Value { return value.New("RDFString", v) }

	original := value.NewList(s("a"), s("b"), s("c"))
	updated := value.NewList(s("c"), s("a"), s("a"), s("d"))
	Annotate(original, updated)

	wantOriginal := []Change{{Path: "[1]", Mark: value.MarkRemoved, Type: "RDFString"}}
	if diff := cmp.Diff(wantOriginal, Changes(original)); diff != "" {
		t.Fatalf("original marks mismatch (-want +got):\n%s", diff)
	}
	wantUpdated := []Change{{Path: "[3]", Mark: value.MarkAdded, Type: "RDFString"}}
	if diff := cmp.Diff(wantUpdated, Changes(updated)); diff != "" {
		t.Fatalf("reorder and duplicates must not be marked (-want +got):\n%s", diff)
	}
}

func TestNumbersCompareByValue(t *testing.T) {
	original := value.New("ByteSize", json.Number("1024"))
	updated := value.New("ByteSize", 1024.0)
	Annotate(original, updated)
	if original.Diff != value.MarkNone || updated.Diff != value.MarkNone {
		t.Fatalf("numerically equal payloads must not be marked")
	}
}

func TestTextDiff(t *testing.T) {
	got := TextDiff("ubuntu 22.04", "ubuntu 24.04")
	var before, after string
	for _, seg := range got {
		switch seg.Op {
		case OpEqual:
			before += seg.Text
			after += seg.Text
		case OpDelete:
			before += seg.Text
		case OpInsert:
			after += seg.Text
		}
	}
	if before != "ubuntu 22.04" || after != "ubuntu 24.04" {
		t.Fatalf("segments do not reconstruct inputs: %#v", got)
	}
	if len(got) < 2 || got[0].Op != OpEqual {
		t.Fatalf("expected a shared prefix segment, got %#v", got)
	}
}
