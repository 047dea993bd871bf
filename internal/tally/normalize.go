package tally

import (
	"strconv"
	"strings"
)

// positiveListKeys is the field-name search order for the positive-tally
// list. Upstream has renamed it between API versions; the first key that
// holds a list wins.
var positiveListKeys = []string{"valoresTotalizadosPositivos", "valoresPositivos"}

// shareKeys is the search order for a contestant's vote-share percentage.
var shareKeys = []string{"votosPorcentaje", "porcentajeVotos"}

// PhotoResolver maps a contestant identity to a display asset reference.
type PhotoResolver interface {
	Resolve(id, name string) string
}

// Normalizer converts one raw per-scope payload into uniform entries.
// Extraction is tolerant: missing lists yield empty results, missing or
// non-numeric fields default to zero. It only reports what the payload
// contains; progress fallback lookups are the reconciler's job.
type Normalizer struct {
	Photos PhotoResolver
}

// Normalize extracts the positive-tally entries and the counting progress
// from payload. Scope columns and the cycle timestamp are stamped onto
// every entry. Items with neither an id nor a name are skipped: every
// published entry must carry a non-empty identity.
func (n *Normalizer) Normalize(payload map[string]any, key ScopeKey, regionLabel, cycleTS string) ([]Entry, float64) {
	progress := ExtractProgress(payload)

	items := extractList(payload)
	if len(items) == 0 {
		return nil, progress
	}

	entries := make([]Entry, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := asString(item["idAgrupacion"])
		name := asString(item["nombreAgrupacion"])
		if name == "" {
			name = asString(item["nombre"])
		}
		identity := id
		if identity == "" {
			identity = name
		}
		if identity == "" {
			continue
		}

		var photo string
		if n.Photos != nil {
			photo = n.Photos.Resolve(id, name)
		}

		entries = append(entries, Entry{
			Level:       key.Level,
			ScopeID:     key.ScopeID,
			RegionLabel: regionLabel,
			Category:    key.Category,
			Identity:    identity,
			DisplayName: name,
			VoteShare:   shareOf(item),
			PhotoRef:    photo,
			CycleTS:     cycleTS,
		})
	}
	return entries, progress
}

// ExtractProgress reads the counting progress from the nested status
// sub-object. Payloads from the status endpoint carry the fields at the
// top level, so the payload itself is the fallback container.
func ExtractProgress(payload map[string]any) float64 {
	if payload == nil {
		return 0
	}
	container := payload
	if nested, ok := payload["estadoRecuento"].(map[string]any); ok {
		container = nested
	}
	if v, ok := asFloat(container["mesasTotalizadasPorcentaje"]); ok {
		return v
	}
	return 0
}

func extractList(payload map[string]any) []any {
	if payload == nil {
		return nil
	}
	for _, key := range positiveListKeys {
		if list, ok := payload[key].([]any); ok {
			return list
		}
	}
	return nil
}

// shareOf mirrors the upstream convention: a zero value in the primary
// field falls through to the variant field.
func shareOf(item map[string]any) float64 {
	for _, key := range shareKeys {
		if v, ok := asFloat(item[key]); ok && v != 0 {
			return v
		}
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}

// asString renders upstream identifiers, which arrive either as strings
// or as JSON numbers.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}
