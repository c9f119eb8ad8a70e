package alerting

import (
	"maps"
	"slices"
	"strings"
)

// RenderTemplate replaces {key} placeholders with top-level event values.
// Placeholders without a matching key are kept as written, and nested
// paths are not resolved. Keys are applied in sorted order so overlapping
// placeholders render the same way every time.
func RenderTemplate(tmpl string, event map[string]any) string {
	if tmpl == "" || len(event) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(event)*2)
	for _, k := range slices.Sorted(maps.Keys(event)) {
		pairs = append(pairs, "{"+k+"}", stringify(event[k]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
