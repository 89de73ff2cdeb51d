package loader

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-semval/pkg/descriptor"
)

const yamlCatalog = `
items:
  - name: RDFString
    kind: primitive
    default: {type: RDFString, value: ""}
  - name: Foo
    fields:
      - name: a
        type: RDFString
        labels: [ADVANCED]
`

const tomlCatalog = `
[[items]]
name = "RDFInteger"
kind = "primitive"
default = { type = "RDFInteger", value = 0 }

[[items]]
name = "Bar"
kind = "struct"

  [[items.fields]]
  name = "n"
  type = "RDFInteger"
  repeated = true
`

func TestDecodeCatalogFormats(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		format Format
		want   []string
	}{
		{
			name:   "json list",
			data:   `[{"name":"A","kind":"primitive"},{"name":"B","fields":[{"name":"x","type":"A"}]}]`,
			format: FormatJSON,
			want:   []string{"A", "B"},
		},
		{name: "yaml items", data: yamlCatalog, format: FormatYAML, want: []string{"Foo", "RDFString"}},
		{name: "toml items", data: tomlCatalog, format: FormatTOML, want: []string{"Bar", "RDFInteger"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set, err := DecodeCatalog([]byte(tc.data), tc.format)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tc.want, set.Names()); diff != "" {
				t.Fatalf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeCatalogInfersKindAndDefaults(t *testing.T) {
	set, err := DecodeCatalog([]byte(yamlCatalog), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	foo := set["Foo"]
	if foo.Kind != descriptor.KindStruct {
		t.Fatalf("expected inferred struct kind, got %q", foo.Kind)
	}
	if !foo.Fields[0].Advanced() {
		t.Fatalf("expected ADVANCED label on field a")
	}
	def := set["RDFString"].Default
	if def == nil || def.Type != "RDFString" || def.Value != "" {
		t.Fatalf("unexpected default %#v", def)
	}
}

func TestDecodeCatalogRejectsNamelessEntries(t *testing.T) {
	if _, err := DecodeCatalog([]byte(`[{"kind":"primitive"}]`), FormatJSON); err == nil {
		t.Fatalf("expected error for nameless entry")
	}
}

func TestLoadFS(t *testing.T) {
	files := fstest.MapFS{
		"types/catalog.yaml": {Data: []byte(yamlCatalog)},
	}
	set, err := LoadFS(context.Background(), files, "types/catalog.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := set["Foo"]; !ok {
		t.Fatalf("expected Foo in catalog")
	}
}

func TestFormatFromPath(t *testing.T) {
	if FormatFromPath("a.yml") != FormatYAML || FormatFromPath("a.TOML") != FormatTOML || FormatFromPath("a") != FormatJSON {
		t.Fatalf("unexpected format inference")
	}
}
