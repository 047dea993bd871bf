package app

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tallydesk/election-poller/internal/config"
)

func tallyAPIStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogo/getCategorias", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"categoriaId": 3, "nombre": "Senador Nacional"}]`))
	})
	mux.HandleFunc("/catalogo/getCatalogo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ambitos": [
			{"nivelId": 10, "nombre": "Provincia de Buenos Aires", "codigoAmbitos": {"distritoId": "02"}}
		]}`))
	})
	mux.HandleFunc("/resultados/getResultados", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"estadoRecuento": {"mesasTotalizadasPorcentaje": 12.5},
			"valoresTotalizadosPositivos": [
				{"idAgrupacion": "1", "nombreAgrupacion": "Lista A", "votosPorcentaje": 41.3},
				{"idAgrupacion": "2", "nombreAgrupacion": "Lista B", "votosPorcentaje": 30.1}
			]
		}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.Token = "tok"
	cfg.Interval = time.Second
	cfg.OutputPath = filepath.Join(dir, "resultados.csv")
	cfg.LogsDir = filepath.Join(dir, "logs")
	cfg.StatePath = filepath.Join(dir, "state.db")
	return cfg
}

func TestNewWithoutCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Token = ""
	_, err := New(cfg, zap.NewNop())
	require.ErrorIs(t, err, config.ErrNoCredentials)
}

func TestRunOncePublishesSnapshot(t *testing.T) {
	srv := tallyAPIStub(t)
	cfg := testConfig(t, srv.URL)

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	require.NoError(t, a.Run(context.Background(), true))

	f, err := os.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// Header + 2 contenders × 2 scopes (national + region).
	require.Len(t, records, 5)
	assert.Equal(t, "scope_level", records[0][0])
	assert.Equal(t, "NATIONAL", records[1][0])
	assert.Equal(t, "41.30", records[1][7])
	assert.Equal(t, "12.50", records[1][8])

	cycle := a.LastCycle()
	assert.Equal(t, 2, cycle.ScopesOK)
	assert.Equal(t, 2, cycle.ScopesTotal)
	assert.Equal(t, 4, cycle.Rows)
	assert.True(t, cycle.Published)

	// Categories and run logs got written.
	catLog, err := os.ReadFile(filepath.Join(cfg.LogsDir, "categorias.log"))
	require.NoError(t, err)
	assert.Contains(t, string(catLog), "SENADORES")
	_, err = os.Stat(filepath.Join(cfg.LogsDir, "run.log"))
	require.NoError(t, err)
}

func TestRunStatePersistsAcrossInstances(t *testing.T) {
	srv := tallyAPIStub(t)
	cfg := testConfig(t, srv.URL)

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), true))
	a.Shutdown(context.Background())

	b, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Shutdown(context.Background())
	require.NoError(t, b.restoreState(context.Background()))
	assert.Equal(t, 2, b.state.Len())
}

func TestRunNoCategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogo/getCategorias", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	err = a.Run(context.Background(), true)
	require.ErrorIs(t, err, ErrNoCategories)
}
