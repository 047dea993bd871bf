// Package catalog resolves contest categories and subdivision scopes from
// the upstream catalog payloads, which vary between a bare list and an
// object wrapper depending on API version.
package catalog

import "strings"

// provinceLevelID marks province-level entries in the catalog's scope
// hierarchy; lower levels (sections, municipalities) are not polled.
const provinceLevelID = 10

// Category is one contest resolved from the categories endpoint.
type Category struct {
	ID   int
	Name string
}

// District is one subdivision scope resolved from the catalog endpoint.
type District struct {
	ID   string
	Name string
}

// CanonicalName maps upstream category names onto the short labels used in
// the published artifact.
func CanonicalName(name string) string {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "SENADOR"):
		return "SENADORES"
	case strings.Contains(upper, "DIPUTADO"):
		return "DIPUTADOS"
	}
	return name
}

// ResolveCategories extracts the categories matching any of the given
// name fragments (case-insensitive), with canonical labels. The payload is
// either a list or an object carrying the list under "categorias".
func ResolveCategories(payload any, matchers []string) []Category {
	var out []Category
	for _, raw := range itemsOf(payload, "categorias") {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, ok := asInt(item["categoriaId"])
		if !ok {
			continue
		}
		name, _ := item["nombre"].(string)
		if !matchesAny(name, matchers) {
			continue
		}
		out = append(out, Category{ID: id, Name: CanonicalName(name)})
	}
	return out
}

// ResolveDistricts extracts province-level districts from a catalog
// payload, deduplicated by district id, and reports the featured region
// when an entry matches regionID or regionName (case-insensitive).
func ResolveDistricts(payload any, regionID, regionName string) (featured string, districts []District) {
	wantName := strings.ToLower(strings.TrimSpace(regionName))
	seen := map[string]bool{}

	for _, raw := range itemsOf(payload, "ambitos") {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		level, ok := asInt(item["nivelId"])
		if !ok || level != provinceLevelID {
			continue
		}
		name, _ := item["nombre"].(string)
		codes, _ := item["codigoAmbitos"].(map[string]any)
		id, _ := codes["distritoId"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if id == regionID || (wantName != "" && strings.ToLower(strings.TrimSpace(name)) == wantName) {
			featured = id
		}
		districts = append(districts, District{ID: id, Name: name})
	}
	return featured, districts
}

func itemsOf(payload any, wrapperKey string) []any {
	switch t := payload.(type) {
	case []any:
		return t
	case map[string]any:
		if list, ok := t[wrapperKey].([]any); ok {
			return list
		}
	}
	return nil
}

func matchesAny(name string, matchers []string) bool {
	if len(matchers) == 0 {
		return true
	}
	upper := strings.ToUpper(name)
	for _, m := range matchers {
		if strings.Contains(upper, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	}
	return 0, false
}
