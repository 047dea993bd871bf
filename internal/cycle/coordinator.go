// Package cycle drives one polling cycle end to end: resolve the scopes
// to poll, reconcile them concurrently, commit the survivors to the state
// table, and publish the consolidated artifact. The coordinator is the
// only writer of scope state; reconciliation itself only reads it.
package cycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tallydesk/election-poller/internal/catalog"
	"github.com/tallydesk/election-poller/internal/diag"
	"github.com/tallydesk/election-poller/internal/tally"
)

// Fetcher is the upstream surface a cycle needs.
type Fetcher interface {
	Results(ctx context.Context, categoryID int, scopeID string) (map[string]any, error)
	CountingStatus(ctx context.Context, categoryID int, scopeID string) (map[string]any, error)
	Catalog(ctx context.Context, categoryID int) (any, error)
}

// Publisher replaces the published artifact with the given rows.
type Publisher interface {
	Publish(entries []tally.Entry) error
}

// Stats summarizes one finished cycle.
type Stats struct {
	CycleID     string
	Timestamp   string
	ScopesOK    int
	ScopesTotal int
	Warnings    []string
	Rows        int
	Published   bool
}

// scopeSpec is one scope to poll, in its deterministic cycle position.
type scopeSpec struct {
	key        tally.ScopeKey
	categoryID int
	scopeID    string // request parameter; empty for the national tally
	label      string
}

type Params struct {
	Fetcher     Fetcher
	Publisher   Publisher
	Reconciler  *tally.Reconciler
	State       *tally.StateTable
	RunLog      *diag.Log
	Log         *zap.Logger
	Categories  []catalog.Category
	RegionID    string
	RegionName  string
	NationalID  string
	Concurrency int
}

type Coordinator struct {
	fetcher     Fetcher
	publisher   Publisher
	recon       *tally.Reconciler
	state       *tally.StateTable
	runLog      *diag.Log
	log         *zap.Logger
	categories  []catalog.Category
	regionID    string
	regionName  string
	nationalID  string
	concurrency int
	now         func() time.Time

	mu         sync.Mutex
	scopeCache map[string][]scopeSpec
}

func New(p Params) *Coordinator {
	concurrency := p.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		fetcher:     p.Fetcher,
		publisher:   p.Publisher,
		recon:       p.Reconciler,
		state:       p.State,
		runLog:      p.RunLog,
		log:         p.Log,
		categories:  p.Categories,
		regionID:    p.RegionID,
		regionName:  p.RegionName,
		nationalID:  p.NationalID,
		concurrency: concurrency,
		now:         time.Now,
		scopeCache:  make(map[string][]scopeSpec),
	}
}

// RunCycle executes one full poll. Scope failures degrade to fallback rows
// and never abort the cycle; only context cancellation does, and then
// before any state is committed or anything is published.
func (c *Coordinator) RunCycle(ctx context.Context) (Stats, error) {
	rec := diag.NewRecorder()
	ts := diag.Timestamp(c.now())

	var scopes []scopeSpec
	for _, cat := range c.categories {
		scopes = append(scopes, c.scopesFor(ctx, cat, rec)...)
	}

	results := make([]tally.Result, len(scopes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, sc := range scopes {
		g.Go(func() error {
			fetch := func(ctx context.Context) (map[string]any, error) {
				return c.fetcher.Results(ctx, sc.categoryID, sc.scopeID)
			}
			status := func(ctx context.Context) (map[string]any, error) {
				return c.fetcher.CountingStatus(ctx, sc.categoryID, sc.scopeID)
			}
			results[i] = c.recon.Reconcile(gctx, sc.key, sc.label, ts, fetch, status)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Stats{CycleID: rec.CycleID(), Timestamp: ts, ScopesTotal: len(scopes)}, err
	}

	var rows []tally.Entry
	for _, res := range results {
		rec.Warn(res.Warnings...)
		if !res.Fallback && len(res.Entries) > 0 {
			rec.Warn(tally.Validate(res.Key, res.Entries)...)
			c.state.Put(res.Key, tally.ScopeState{Entries: res.Entries, Progress: res.Progress})
			rec.ScopeOK()
		}
		rows = append(rows, res.Entries...)
	}

	published := false
	switch {
	case len(rows) == 0:
		rec.Warn("no rows to publish, keeping previous artifact")
	default:
		if err := c.publisher.Publish(rows); err != nil {
			rec.Warnf("publish: %v", err)
		} else {
			published = true
		}
	}

	if err := c.runLog.Append(ts, rec); err != nil {
		c.log.Warn("run log append failed", zap.Error(err))
	}

	stats := Stats{
		CycleID:     rec.CycleID(),
		Timestamp:   ts,
		ScopesOK:    rec.ScopesOK(),
		ScopesTotal: len(scopes),
		Warnings:    rec.Warnings(),
		Rows:        len(rows),
		Published:   published,
	}
	c.log.Info("cycle complete",
		zap.String("cycle_id", stats.CycleID),
		zap.Int("scopes_ok", stats.ScopesOK),
		zap.Int("scopes_total", stats.ScopesTotal),
		zap.Int("rows", stats.Rows),
		zap.Int("warnings", len(stats.Warnings)),
		zap.Bool("published", stats.Published))
	return stats, nil
}

// scopesFor resolves the scope list for one category: the national tally,
// the featured region, then the remaining districts in id order. A catalog
// failure reuses the last resolved list so a flaky catalog endpoint cannot
// shrink the artifact.
func (c *Coordinator) scopesFor(ctx context.Context, cat catalog.Category, rec *diag.Recorder) []scopeSpec {
	payload, err := c.fetcher.Catalog(ctx, cat.ID)
	if err != nil {
		rec.Warnf("catalog %s: %v", cat.Name, err)
		if cached := c.cachedScopes(cat.Name); cached != nil {
			return cached
		}
		return c.baselineScopes(cat)
	}

	featured, districts := catalog.ResolveDistricts(payload, c.regionID, c.regionName)
	regionID := c.regionID
	if featured != "" {
		regionID = featured
	}

	scopes := []scopeSpec{
		{
			key:        tally.ScopeKey{Level: tally.LevelNational, ScopeID: c.nationalID, Category: cat.Name},
			categoryID: cat.ID,
		},
		{
			key:        tally.ScopeKey{Level: tally.LevelRegion, ScopeID: regionID, Category: cat.Name},
			categoryID: cat.ID,
			scopeID:    regionID,
			label:      c.regionName,
		},
	}

	sort.Slice(districts, func(i, j int) bool { return districts[i].ID < districts[j].ID })
	for _, d := range districts {
		if d.ID == regionID {
			continue
		}
		scopes = append(scopes, scopeSpec{
			key:        tally.ScopeKey{Level: tally.LevelSubdivision, ScopeID: d.ID, Category: cat.Name},
			categoryID: cat.ID,
			scopeID:    d.ID,
			label:      d.Name,
		})
	}

	c.mu.Lock()
	c.scopeCache[cat.Name] = scopes
	c.mu.Unlock()
	return scopes
}

func (c *Coordinator) cachedScopes(category string) []scopeSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scopeCache[category]
}

// baselineScopes covers a catalog failure on the very first cycle: the
// national tally and the configured region need no catalog data.
func (c *Coordinator) baselineScopes(cat catalog.Category) []scopeSpec {
	return []scopeSpec{
		{
			key:        tally.ScopeKey{Level: tally.LevelNational, ScopeID: c.nationalID, Category: cat.Name},
			categoryID: cat.ID,
		},
		{
			key:        tally.ScopeKey{Level: tally.LevelRegion, ScopeID: c.regionID, Category: cat.Name},
			categoryID: cat.ID,
			scopeID:    c.regionID,
			label:      c.regionName,
		},
	}
}
