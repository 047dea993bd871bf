package diag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	assert.NotEmpty(t, r.CycleID())

	r.Warnf("fetch %s: %v", "NATIONAL|AR|SENADORES", "http 503")
	r.Warn("a", "b")
	r.ScopeOK()
	r.ScopeOK()

	assert.Equal(t, 2, r.ScopesOK())
	assert.Len(t, r.Warnings(), 3)
	assert.Contains(t, r.Warnings()[0], "http 503")
}

func TestLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l := NewLog(path)

	r := NewRecorder()
	r.ScopeOK()
	r.Warn("scope X: kept previous rows")
	require.NoError(t, l.Append("2026-08-23T00:00:00Z", r))

	r2 := NewRecorder()
	require.NoError(t, l.Append("2026-08-23T00:00:30Z", r2))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "[2026-08-23T00:00:00Z] cycle="+r.CycleID()+" scopes_ok=1 warnings=1")
	assert.Contains(t, content, "- scope X: kept previous rows")
	assert.Contains(t, content, "scopes_ok=0 warnings=0")
	// Two blocks appended, each terminated by a blank line.
	assert.Equal(t, 2, strings.Count(content, "\n\n"))
}

func TestLogAppendDisabled(t *testing.T) {
	assert.NoError(t, NewLog("").Append("ts", NewRecorder()))
}

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	ts := Timestamp(time.Date(2026, 8, 23, 21, 4, 5, 987654321, loc))
	assert.Equal(t, "2026-08-24T00:04:05Z", ts)
}
