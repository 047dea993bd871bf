// Package snapshot encodes and atomically publishes the consolidated CSV
// artifact that dashboards and broadcasters consume.
package snapshot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tallydesk/election-poller/internal/tally"
)

// Header is the fixed column order of the published artifact.
func Header() []string {
	return []string{
		"scope_level",
		"scope_id",
		"region_label",
		"category",
		"rank",
		"identity",
		"display_name",
		"vote_share",
		"progress",
		"photo",
		"cycle_ts",
	}
}

// Encode renders entries as CSV, header included. Shares and progress are
// truncated to two decimals, never rounded.
func Encode(entries []tally.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header()); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			string(e.Level),
			e.ScopeID,
			e.RegionLabel,
			e.Category,
			strconv.Itoa(e.Rank),
			e.Identity,
			e.DisplayName,
			tally.Truncate2(e.VoteShare),
			tally.Truncate2(e.Progress),
			e.PhotoRef,
			e.CycleTS,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Writer atomically replaces the published snapshot file.
type Writer struct {
	path string
	log  *zap.Logger
}

func NewWriter(path string, log *zap.Logger) *Writer {
	return &Writer{path: path, log: log}
}

// Path returns the snapshot destination.
func (w *Writer) Path() string { return w.path }

// Publish writes entries to a temporary file and renames it over the
// destination. When the rename fails (the file can be locked by a reader
// on some platforms), the artifact lands under a fallback name; as a last
// resort it is written in place, non-atomically. Publish never leaves the
// previous snapshot half-overwritten.
func (w *Writer) Publish(entries []tally.Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}

	if err := os.Rename(tmp, w.path); err != nil {
		fallback := fallbackPath(w.path)
		if fbErr := os.Rename(tmp, fallback); fbErr == nil {
			w.log.Warn("snapshot replace failed, wrote fallback artifact",
				zap.String("fallback", fallback), zap.Error(err))
			return nil
		}
		if dErr := os.WriteFile(w.path, data, 0o644); dErr != nil {
			return fmt.Errorf("replace snapshot: %w", dErr)
		}
		w.log.Warn("snapshot replaced non-atomically", zap.Error(err))
	}
	return nil
}

func fallbackPath(path string) string {
	return strings.TrimSuffix(path, ".csv") + ".fallback.csv"
}
