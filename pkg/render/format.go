package render

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatScalar renders a primitive payload for the renderer's locale. Numbers
// get locale grouping; composite payloads fall back to fmt formatting.
func (r *Renderer) FormatScalar(payload any) string {
	switch typed := payload.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return r.printer.Sprintf("%d", i)
		}
		if f, err := typed.Float64(); err == nil {
			return r.printer.Sprintf("%v", f)
		}
		return typed.String()
	case int, int32, int64, uint, uint32, uint64:
		return r.printer.Sprintf("%d", typed)
	case float32, float64:
		return r.printer.Sprintf("%v", typed)
	default:
		return fmt.Sprint(typed)
	}
}
