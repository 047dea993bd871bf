package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "SENADORES", CanonicalName("Senador Nacional"))
	assert.Equal(t, "DIPUTADOS", CanonicalName("DIPUTADOS NACIONALES"))
	assert.Equal(t, "Concejales", CanonicalName("Concejales"))
}

func TestResolveCategories(t *testing.T) {
	payload := map[string]any{
		"categorias": []any{
			map[string]any{"categoriaId": float64(3), "nombre": "Senador Nacional"},
			map[string]any{"categoriaId": float64(5), "nombre": "Diputado Nacional"},
			map[string]any{"categoriaId": float64(9), "nombre": "Concejales"},
			map[string]any{"nombre": "sin id"},
		},
	}

	cats := ResolveCategories(payload, []string{"SENADOR", "DIPUTADO"})
	require.Len(t, cats, 2)
	assert.Equal(t, Category{ID: 3, Name: "SENADORES"}, cats[0])
	assert.Equal(t, Category{ID: 5, Name: "DIPUTADOS"}, cats[1])
}

func TestResolveCategoriesBareList(t *testing.T) {
	payload := []any{
		map[string]any{"categoriaId": float64(1), "nombre": "Senadores Provinciales"},
	}
	cats := ResolveCategories(payload, nil)
	require.Len(t, cats, 1)
	assert.Equal(t, "SENADORES", cats[0].Name)
}

func districtItem(level float64, name, id string) map[string]any {
	return map[string]any{
		"nivelId":       level,
		"nombre":        name,
		"codigoAmbitos": map[string]any{"distritoId": id},
	}
}

func TestResolveDistricts(t *testing.T) {
	payload := map[string]any{
		"ambitos": []any{
			districtItem(10, "Ciudad Autónoma de Buenos Aires", "01"),
			districtItem(10, "Provincia de Buenos Aires", "02"),
			districtItem(10, "Provincia de Buenos Aires", "02"), // duplicate
			districtItem(20, "Sección Primera", "02"),           // wrong level
			districtItem(10, "Catamarca", "03"),
		},
	}

	featured, districts := ResolveDistricts(payload, "02", "Provincia de Buenos Aires")
	assert.Equal(t, "02", featured)
	require.Len(t, districts, 3)
	assert.Equal(t, District{ID: "01", Name: "Ciudad Autónoma de Buenos Aires"}, districts[0])
	assert.Equal(t, District{ID: "02", Name: "Provincia de Buenos Aires"}, districts[1])
	assert.Equal(t, District{ID: "03", Name: "Catamarca"}, districts[2])
}

func TestResolveDistrictsFeaturedByName(t *testing.T) {
	payload := []any{districtItem(10, "Provincia de Buenos Aires", "99")}
	featured, _ := ResolveDistricts(payload, "02", "provincia de buenos aires")
	assert.Equal(t, "99", featured)
}

func TestResolveDistrictsNoFeatured(t *testing.T) {
	payload := []any{districtItem(10, "Catamarca", "03")}
	featured, districts := ResolveDistricts(payload, "02", "Provincia de Buenos Aires")
	assert.Empty(t, featured)
	require.Len(t, districts, 1)
}
