// Package app wires configuration, auth, the upstream client, and the
// cycle coordinator into the long-running poller.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tallydesk/election-poller/internal/api"
	"github.com/tallydesk/election-poller/internal/auth"
	"github.com/tallydesk/election-poller/internal/catalog"
	"github.com/tallydesk/election-poller/internal/config"
	"github.com/tallydesk/election-poller/internal/cycle"
	"github.com/tallydesk/election-poller/internal/diag"
	"github.com/tallydesk/election-poller/internal/notify"
	"github.com/tallydesk/election-poller/internal/photos"
	"github.com/tallydesk/election-poller/internal/snapshot"
	"github.com/tallydesk/election-poller/internal/store"
	"github.com/tallydesk/election-poller/internal/tally"
	"github.com/tallydesk/election-poller/internal/upstream"
)

// ErrToken reports that no usable credential could be obtained at startup.
var ErrToken = errors.New("app: token bootstrap failed")

// ErrNoCategories reports that no contest category matched the configured
// matchers, leaving nothing to poll.
var ErrNoCategories = errors.New("app: no matching contest categories")

type App struct {
	cfg      config.Config
	log      *zap.Logger
	tokens   auth.TokenSource
	upstream *upstream.Client
	photos   *photos.Map
	state    *tally.StateTable
	guard    *tally.ProgressGuard
	recon    *tally.Reconciler
	writer   *snapshot.Writer
	runLog   *diag.Log
	store    *store.Store
	notifier *notify.Notifier

	mu        sync.Mutex
	running   bool
	lastCycle api.CycleStatus
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	var tokens auth.TokenSource
	switch {
	case cfg.Token != "":
		tokens = auth.Static(cfg.Token)
	case cfg.Username != "" && cfg.Password != "":
		tokens = auth.NewClient(cfg.BaseURL, cfg.Username, cfg.Password, cfg.RequestTimeout, log)
	default:
		return nil, config.ErrNoCredentials
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		tokens:   tokens,
		upstream: upstream.New(cfg.BaseURL, tokens, cfg.RequestTimeout, log),
		state:    tally.NewStateTable(),
		guard:    tally.NewProgressGuard(),
		writer:   snapshot.NewWriter(cfg.OutputPath, log),
		runLog:   diag.NewLog(filepath.Join(cfg.LogsDir, "run.log")),
		notifier: notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID),
	}

	if cfg.Photos.MapPath != "" || cfg.Photos.BasePath != "" {
		a.photos = photos.New(cfg.Photos.MapPath, cfg.Photos.BasePath, cfg.Photos.DefaultFile, log)
	}
	var resolver tally.PhotoResolver
	if a.photos != nil {
		resolver = a.photos
	}
	a.recon = tally.NewReconciler(
		&tally.Normalizer{Photos: resolver},
		a.guard, a.state,
		tally.Mode(cfg.Ranking.Mode), cfg.Ranking.TopK,
	)

	if cfg.StatePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
			return nil, fmt.Errorf("app: state dir: %w", err)
		}
		st, err := store.Open(cfg.StatePath)
		if err != nil {
			return nil, err
		}
		a.store = st
	}

	return a, nil
}

// Run polls until ctx is canceled, or for a single cycle when once is set.
func (a *App) Run(ctx context.Context, once bool) error {
	if err := a.restoreState(ctx); err != nil {
		a.log.Warn("state restore failed, starting from empty state", zap.Error(err))
	}

	if _, err := a.tokens.Token(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrToken, err)
	}

	categories, err := a.resolveCategories(ctx)
	if err != nil {
		return err
	}
	a.writeCategoriesLog(categories)

	if a.photos != nil {
		go func() {
			if err := a.photos.Watch(ctx); err != nil {
				a.log.Warn("photo map watch stopped", zap.Error(err))
			}
		}()
	}

	coord := cycle.New(cycle.Params{
		Fetcher:     a.upstream,
		Publisher:   a.writer,
		Reconciler:  a.recon,
		State:       a.state,
		RunLog:      a.runLog,
		Log:         a.log,
		Categories:  categories,
		RegionID:    a.cfg.Region.ID,
		RegionName:  a.cfg.Region.Name,
		NationalID:  a.cfg.NationalID,
		Concurrency: a.cfg.Concurrency,
	})

	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.Name
	}
	a.log.Info("poller starting",
		zap.Strings("categories", names),
		zap.Duration("interval", a.cfg.Interval),
		zap.String("output", a.cfg.OutputPath))
	if err := a.notifier.NotifyStartup(ctx, names, a.cfg.Interval); err != nil {
		a.log.Warn("startup notification failed", zap.Error(err))
	}

	a.setRunning(true)
	defer a.setRunning(false)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := a.runOnce(ctx, coord); err != nil {
			return err
		}
		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) runOnce(ctx context.Context, coord *cycle.Coordinator) error {
	stats, err := coord.RunCycle(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.lastCycle = api.CycleStatus{
		CycleID:     stats.CycleID,
		Timestamp:   stats.Timestamp,
		ScopesOK:    stats.ScopesOK,
		ScopesTotal: stats.ScopesTotal,
		Warnings:    stats.Warnings,
		Rows:        stats.Rows,
		Published:   stats.Published,
		FinishedAt:  time.Now(),
	}
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Save(ctx, a.state.Snapshot()); err != nil {
			a.log.Warn("state persist failed", zap.Error(err))
		}
	}

	switch {
	case stats.ScopesTotal > 0 && stats.ScopesOK == 0:
		if err := a.notifier.NotifyCycleFailed(ctx, stats.CycleID, len(stats.Warnings)); err != nil {
			a.log.Warn("cycle notification failed", zap.Error(err))
		}
	case stats.ScopesOK < stats.ScopesTotal:
		if err := a.notifier.NotifyCycleDegraded(ctx, stats.CycleID, stats.ScopesOK, stats.ScopesTotal); err != nil {
			a.log.Warn("cycle notification failed", zap.Error(err))
		}
	}
	return nil
}

func (a *App) restoreState(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	persisted, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	for key, st := range persisted {
		a.state.Put(key, st)
		a.guard.Seed(key, st.Progress)
	}
	if len(persisted) > 0 {
		a.log.Info("restored scope state", zap.Int("scopes", len(persisted)))
	}
	return nil
}

func (a *App) resolveCategories(ctx context.Context) ([]catalog.Category, error) {
	payload, err := a.upstream.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCategories, err)
	}
	categories := catalog.ResolveCategories(payload, a.cfg.CategoryMatchers)
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: matchers %v", ErrNoCategories, a.cfg.CategoryMatchers)
	}
	return categories, nil
}

// writeCategoriesLog records the resolved contest categories of this run.
// Best-effort; failure to write it never stops the poller.
func (a *App) writeCategoriesLog(categories []catalog.Category) {
	if a.cfg.LogsDir == "" {
		return
	}
	if err := os.MkdirAll(a.cfg.LogsDir, 0o755); err != nil {
		a.log.Warn("categories log", zap.Error(err))
		return
	}
	path := filepath.Join(a.cfg.LogsDir, "categorias.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		a.log.Warn("categories log", zap.Error(err))
		return
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", diag.Timestamp(time.Now()))
	for _, cat := range categories {
		fmt.Fprintf(&b, "%d\t%s\n", cat.ID, cat.Name)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		a.log.Warn("categories log", zap.Error(err))
	}
}

func (a *App) setRunning(v bool) {
	a.mu.Lock()
	a.running = v
	a.mu.Unlock()
}

// Shutdown releases resources held by the app.
func (a *App) Shutdown(context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("state store close failed", zap.Error(err))
		}
	}
}

// IsRunning reports whether the poll loop is active.
func (a *App) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// LastCycle returns the most recent cycle summary.
func (a *App) LastCycle() api.CycleStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastCycle
}

// SnapshotPath returns the published artifact location.
func (a *App) SnapshotPath() string { return a.writer.Path() }
