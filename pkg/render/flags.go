package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Flag names one bit of a bitmask.
type Flag struct {
	Name string
	Bit  uint64
}

// FlagsView is the decoded state of a bitmask value.
type FlagsView struct {
	Names     []string
	Unknown   uint64
	Malformed bool
}

// FormatFlags decodes raw against flags. Negative, fractional or non-numeric
// input is reported as malformed rather than guessed at. Bits without a name
// are collected in Unknown.
func FormatFlags(raw any, flags []Flag) FlagsView {
	mask, ok := bitmask(raw)
	if !ok {
		return FlagsView{Malformed: true}
	}
	view := FlagsView{Names: []string{}}
	var known uint64
	for _, flag := range flags {
		if flag.Bit == 0 {
			continue
		}
		known |= flag.Bit
		if mask&flag.Bit == flag.Bit {
			view.Names = append(view.Names, flag.Name)
		}
	}
	view.Unknown = mask &^ known
	return view
}

func (v FlagsView) view() map[string]any {
	return map[string]any{
		"names":     v.Names,
		"unknown":   v.Unknown,
		"malformed": v.Malformed,
	}
}

func bitmask(raw any) (uint64, bool) {
	switch typed := raw.(type) {
	case json.Number:
		return parseMask(typed.String())
	case string:
		return parseMask(typed)
	case int:
		return uint64(typed), typed >= 0
	case int64:
		return uint64(typed), typed >= 0
	case uint64:
		return typed, true
	case float64:
		if typed < 0 || typed != math.Trunc(typed) || typed > math.MaxUint64 {
			return 0, false
		}
		return uint64(typed), true
	default:
		return 0, false
	}
}

func parseMask(raw string) (uint64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "-") {
		return 0, false
	}
	mask, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return mask, true
}

// RegisterFlags declares typeName as a bitmask and, unless a handle already
// exists for it, installs the built-in flags handle.
func (r *Renderer) RegisterFlags(typeName string, flags []Flag) error {
	if strings.TrimSpace(typeName) == "" {
		return fmt.Errorf("render: flags type name is required")
	}
	r.mu.Lock()
	r.flags[typeName] = append([]Flag(nil), flags...)
	r.mu.Unlock()

	if _, exists := r.values.Lookup(typeName); exists {
		return nil
	}
	return r.values.Register(typeName, flagsHandle)
}

func (r *Renderer) flagsFor(typeName string) ([]Flag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flags, ok := r.flags[typeName]
	return flags, ok
}
