package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"closingdoors/internal/feed"
	"closingdoors/internal/logging"
	"closingdoors/internal/metrics"
	"closingdoors/internal/model"
	"closingdoors/internal/store"
)

// Config holds the poll loop timings.
type Config struct {
	UpdateInterval time.Duration // sleep after a successful cycle
	FailureBackoff time.Duration // sleep after a failed cycle
	FeedTimeout    time.Duration // per-feed fetch deadline
}

// Poller is the write path: a long-lived loop that each cycle fetches all
// feeds concurrently, normalizes them, and persists one snapshot per feed
// plus the aggregate metadata record. It never terminates on error.
type Poller struct {
	decoder   feed.Decoder
	snapshots store.SnapshotStore
	metadata  store.MetadataStore
	feeds     []feed.ID
	cfg       Config
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

func New(decoder feed.Decoder, snapshots store.SnapshotStore, metadata store.MetadataStore, feeds []feed.ID, cfg Config, m *metrics.Collector, logger *slog.Logger) *Poller {
	return &Poller{
		decoder:   decoder,
		snapshots: snapshots,
		metadata:  metadata,
		feeds:     feeds,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Run loops until the context is cancelled. On any cycle failure it logs,
// clears the previous-generation map so staleness comparisons restart
// cleanly, and retries after the backoff interval.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("starting feed update loop", "feeds", len(p.feeds))

	lastGenerated := map[feed.ID]int64{}
	for {
		updated, stale, err := p.RunCycle(ctx, lastGenerated)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.LogError(p.logger, "failed to update feeds", err)
			if p.metrics != nil {
				p.metrics.CycleFailures.Inc()
			}
			lastGenerated = map[feed.ID]int64{}
			if !p.sleep(ctx, p.cfg.FailureBackoff) {
				return
			}
			continue
		}
		lastGenerated = updated
		p.logger.Info("finished updating feeds", "stale_feeds", stale)
		if !p.sleep(ctx, p.cfg.UpdateInterval) {
			return
		}
	}
}

type feedResult struct {
	id   feed.ID
	snap *model.FeedSnapshot
	err  error
}

// RunCycle fetches and persists every feed once. It takes the previous
// cycle's generation timestamps and returns the updated map plus the number
// of feeds whose generation timestamp did not advance (observability only).
// Any fetch error or timeout fails the whole cycle: no snapshot of a failed
// cycle is committed.
func (p *Poller) RunCycle(ctx context.Context, lastGenerated map[feed.ID]int64) (map[feed.ID]int64, int, error) {
	start := p.now()

	results := make([]feedResult, len(p.feeds))
	var wg sync.WaitGroup
	for i, id := range p.feeds {
		wg.Add(1)
		go func(i int, id feed.ID) {
			defer wg.Done()
			results[i] = p.fetchFeed(ctx, id)
		}(i, id)
	}
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			return nil, 0, fmt.Errorf("feed %s: %w", res.id, res.err)
		}
	}

	stale := 0
	updated := make(map[feed.ID]int64, len(p.feeds))
	allRoutes := map[string]bool{}
	var minFeedUpdatedAt int64

	for _, res := range results {
		snap := res.snap
		if last, ok := lastGenerated[res.id]; ok && last == snap.FeedUpdatedAt {
			stale++
		}
		if err := p.snapshots.PutSnapshot(ctx, res.id.Key(), snap); err != nil {
			if p.metrics != nil {
				p.metrics.SnapshotWriteErrs.Inc()
			}
			return nil, 0, fmt.Errorf("write snapshot %s: %w", res.id, err)
		}
		if p.metrics != nil {
			p.metrics.SnapshotWrites.Inc()
		}
		for _, r := range snap.ActiveRoutes {
			allRoutes[r] = true
		}
		if minFeedUpdatedAt == 0 || snap.FeedUpdatedAt < minFeedUpdatedAt {
			minFeedUpdatedAt = snap.FeedUpdatedAt
		}
		updated[res.id] = snap.FeedUpdatedAt
	}

	routes := make([]string, 0, len(allRoutes))
	for r := range allRoutes {
		routes = append(routes, r)
	}
	sort.Strings(routes)

	meta := &model.SystemMetadata{
		Data:             routes,
		UpdatedAt:        p.now().Unix(),
		MinFeedUpdatedAt: minFeedUpdatedAt,
	}
	if err := p.metadata.PutMetadata(ctx, meta); err != nil {
		return nil, 0, fmt.Errorf("write metadata: %w", err)
	}

	if p.metrics != nil {
		p.metrics.CyclesTotal.Inc()
		p.metrics.StaleFeeds.Set(float64(stale))
		p.metrics.LastCycleUnix.Set(float64(p.now().Unix()))
		p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
	return updated, stale, nil
}

func (p *Poller) fetchFeed(ctx context.Context, id feed.ID) feedResult {
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FeedTimeout)
	defer cancel()

	start := time.Now()
	data, err := p.decoder.Decode(fctx, id)
	if p.metrics != nil {
		p.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return feedResult{id: id, err: err}
	}

	dict := feed.Normalize(data.Trips, data.GeneratedAt)
	return feedResult{id: id, snap: &model.FeedSnapshot{
		ID:            string(id),
		Data:          dict,
		ActiveRoutes:  feed.ActiveRoutes(dict),
		UpdatedAt:     p.now().Unix(),
		FeedUpdatedAt: data.GeneratedAt.Unix(),
	}}
}

// sleep waits for d or until the context is cancelled; it reports whether
// the caller should keep running.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
