// Package diag records per-cycle diagnostics: warnings collected while
// scopes reconcile, plus an append-only run log summarizing every cycle.
package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder accumulates the warnings and counters of one polling cycle.
// Scope reconciliations run concurrently, so it is safe for parallel use.
type Recorder struct {
	mu       sync.Mutex
	cycleID  string
	warnings []string
	scopesOK int
}

func NewRecorder() *Recorder {
	return &Recorder{cycleID: uuid.NewString()}
}

func (r *Recorder) CycleID() string { return r.cycleID }

// Warnf records one warning line.
func (r *Recorder) Warnf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Warn records pre-formatted warning lines.
func (r *Recorder) Warn(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, lines...)
}

// ScopeOK counts one successfully reconciled scope. Fallback scopes do not
// count.
func (r *Recorder) ScopeOK() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopesOK++
}

func (r *Recorder) ScopesOK() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scopesOK
}

func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Log appends cycle summaries to a run log file. Failing to write the log
// never fails the cycle.
type Log struct {
	mu   sync.Mutex
	path string
}

func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one block for the cycle: a summary line followed by one
// line per warning.
func (l *Log) Append(ts string, r *Recorder) error {
	if l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	warnings := r.Warnings()
	if _, err := fmt.Fprintf(f, "[%s] cycle=%s scopes_ok=%d warnings=%d\n",
		ts, r.CycleID(), r.ScopesOK(), len(warnings)); err != nil {
		return err
	}
	for _, w := range warnings {
		if _, err := fmt.Fprintf(f, "- %s\n", w); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(f)
	return err
}

// Timestamp renders t as the artifact timestamp format: ISO-8601, second
// precision, UTC with a Z suffix.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
