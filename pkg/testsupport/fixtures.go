package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-semval/internal/descriptor/loader"
	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

// MustLoadCatalog reads a descriptor catalog fixture (JSON, YAML or TOML by
// extension). Testing helpers fail the test on error to keep callers concise.
func MustLoadCatalog(t *testing.T, path string) descriptor.Set {
	t.Helper()

	set, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return set
}

// MustLoadValue loads a tagged value fixture.
func MustLoadValue(t *testing.T, path string) *value.Value {
	t.Helper()

	v, err := LoadValue(path)
	if err != nil {
		t.Fatalf("load value: %v", err)
	}
	return v
}

// LoadValue reads a tagged value fixture, returning an error for callers
// managing setup outside of *testing.T.
func LoadValue(path string) (*value.Value, error) {
	if path == "" {
		return nil, errors.New("testsupport: value path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read value: %w", err)
	}
	out := &value.Value{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("testsupport: unmarshal value: %w", err)
	}
	return out, nil
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// MustReadGoldenString reads a golden file and returns its string content.
func MustReadGoldenString(t *testing.T, path string) string {
	t.Helper()
	return string(MustReadGolden(t, path))
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}
