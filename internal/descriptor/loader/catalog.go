package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-semval/pkg/descriptor"
)

// Format names a catalog encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the catalog encoding from a file extension. Unknown
// extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

type catalogDocument struct {
	Items []descriptor.Descriptor `json:"items"`
}

// DecodeCatalog parses a descriptor catalog. A catalog is either a bare list
// of descriptors or an object with an "items" list. YAML and TOML catalogs are
// normalised to JSON first so tagged default values decode the same way in
// every format.
func DecodeCatalog(data []byte, format Format) (descriptor.Set, error) {
	raw, err := normalizeCatalog(data, format)
	if err != nil {
		return nil, err
	}

	var items []descriptor.Descriptor
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("descriptor loader: decode catalog: %w", err)
		}
	} else {
		var doc catalogDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("descriptor loader: decode catalog: %w", err)
		}
		items = doc.Items
	}

	set := make(descriptor.Set, len(items))
	for idx, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, fmt.Errorf("descriptor loader: catalog entry %d has no name", idx)
		}
		if item.Kind == "" {
			item.Kind = descriptor.KindPrimitive
			if len(item.Fields) > 0 {
				item.Kind = descriptor.KindStruct
			}
		}
		set[name] = item
	}
	return set, nil
}

func normalizeCatalog(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("descriptor loader: decode yaml catalog: %w", err)
		}
		return json.Marshal(doc)
	case FormatTOML:
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("descriptor loader: decode toml catalog: %w", err)
		}
		return json.Marshal(doc)
	case FormatJSON, "":
		return data, nil
	default:
		return nil, fmt.Errorf("descriptor loader: unsupported catalog format %q", format)
	}
}

// LoadFile reads and decodes a catalog from disk.
func LoadFile(ctx context.Context, path string) (descriptor.Set, error) {
	if path == "" {
		return nil, errors.New("descriptor loader: file path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return DecodeCatalog(data, FormatFromPath(path))
}

// LoadFS reads and decodes a catalog from an fs.FS.
func LoadFS(ctx context.Context, files fs.FS, name string) (descriptor.Set, error) {
	if name == "" {
		return nil, errors.New("descriptor loader: fs path is required")
	}
	if files == nil {
		return nil, errors.New("descriptor loader: fs is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(files, name)
	if err != nil {
		return nil, err
	}
	return DecodeCatalog(data, FormatFromPath(name))
}
