package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeState struct {
	running      bool
	cycle        CycleStatus
	snapshotPath string
}

func (f *fakeState) IsRunning() bool        { return f.running }
func (f *fakeState) LastCycle() CycleStatus { return f.cycle }
func (f *fakeState) SnapshotPath() string   { return f.snapshotPath }

func newTestServer(state *fakeState) *Server {
	return NewServer(":0", state, zap.NewNop())
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&fakeState{running: true})
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("expected ok=true, got %v", body["ok"])
	}
	if body["running"] != true {
		t.Errorf("expected running=true, got %v", body["running"])
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(&fakeState{
		running: true,
		cycle: CycleStatus{
			CycleID:     "c-1",
			Timestamp:   "2026-08-23T10:00:00Z",
			ScopesOK:    5,
			ScopesTotal: 6,
			Warnings:    []string{"scope NATIONAL|AR|SENADORES: fetch failed"},
			Rows:        42,
			Published:   true,
			FinishedAt:  time.Now(),
		},
	})
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cycle_id"] != "c-1" {
		t.Errorf("expected cycle_id=c-1, got %v", body["cycle_id"])
	}
	if body["scopes_ok"] != float64(5) {
		t.Errorf("expected scopes_ok=5, got %v", body["scopes_ok"])
	}
	if body["published"] != true {
		t.Errorf("expected published=true, got %v", body["published"])
	}
}

func TestHandleStatusEmptyWarnings(t *testing.T) {
	s := newTestServer(&fakeState{})
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["warnings"].([]any); !ok {
		t.Errorf("expected warnings to be a list, got %T", body["warnings"])
	}
}

func TestHandleSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := os.WriteFile(path, []byte("scope_level,scope_id\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(&fakeState{snapshotPath: path})
	rec := httptest.NewRecorder()
	s.handleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Errorf("unexpected content type %q", got)
	}
	if rec.Body.String() != "scope_level,scope_id\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestHandleSnapshotMissing(t *testing.T) {
	s := newTestServer(&fakeState{snapshotPath: filepath.Join(t.TempDir(), "nope.csv")})
	rec := httptest.NewRecorder()
	s.handleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot.csv", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
