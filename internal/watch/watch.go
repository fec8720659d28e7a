/*
Package watch runs the poll loop: list new videos per channel, pre-filter on
titles, acquire transcripts, extract structured records, resolve companies,
log high-growth mentions and dispatch notifications.

One cycle processes every configured channel sequentially. The visited set is
the loop's only progress marker: an item enters it when fully processed, or
when the title pre-filter decides the video is not about any known company.
An item that fails mid-pipeline stays out and is retried on the next cycle.
*/
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"growthwatch/internal/feed"
	"growthwatch/internal/refdata"
	"growthwatch/internal/resolve"
	"growthwatch/internal/state"
	"growthwatch/internal/types"
)

// TranscriptSource yields the full transcript text of a video.
type TranscriptSource interface {
	Acquire(ctx context.Context, videoURL string) (string, error)
}

// Extractor turns a transcript into structured per-company records.
type Extractor interface {
	Extract(ctx context.Context, transcript string) ([]types.ExtractedRecord, error)
}

// Notifier delivers one finding. Implementations handle their own dedup and
// never return errors; delivery is best-effort.
type Notifier interface {
	Dispatch(ctx context.Context, item types.Item, records []types.ExtractedRecord, companies []refdata.Record)
}

// GrowthLogger persists a record's qualifying growth mentions.
type GrowthLogger interface {
	Log(record types.ExtractedRecord, resolved []refdata.Record, videoURL, title string) error
}

// Watcher owns one poll loop over a set of channels.
type Watcher struct {
	channels       []string
	maxVideos      int
	interval       time.Duration
	titleThreshold int

	lister      feed.Lister
	resolver    *resolve.Resolver
	transcripts TranscriptSource
	extractor   Extractor
	ledger      GrowthLogger
	notifier    Notifier
	visited     *state.Set
}

// Config collects the watcher's collaborators and tuning knobs.
type Config struct {
	Channels       []string
	MaxVideos      int
	Interval       time.Duration
	TitleThreshold int

	Lister      feed.Lister
	Resolver    *resolve.Resolver
	Transcripts TranscriptSource
	Extractor   Extractor
	Ledger      GrowthLogger
	Notifier    Notifier
	Visited     *state.Set
}

// New assembles a watcher.
func New(cfg Config) *Watcher {
	if cfg.MaxVideos < 1 {
		cfg.MaxVideos = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 600 * time.Second
	}
	return &Watcher{
		channels:       cfg.Channels,
		maxVideos:      cfg.MaxVideos,
		interval:       cfg.Interval,
		titleThreshold: cfg.TitleThreshold,
		lister:         cfg.Lister,
		resolver:       cfg.Resolver,
		transcripts:    cfg.Transcripts,
		extractor:      cfg.Extractor,
		ledger:         cfg.Ledger,
		notifier:       cfg.Notifier,
		visited:        cfg.Visited,
	}
}

// Run cycles forever until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("watcher started",
		slog.Int("channels", len(w.channels)),
		slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Cycle(ctx)

		select {
		case <-ctx.Done():
			slog.Info("watcher stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle processes every channel once and persists the visited set. Per-item
// failures are logged and skipped; they never abort the cycle.
func (w *Watcher) Cycle(ctx context.Context) {
	start := time.Now()
	processed := 0

	for _, channelID := range w.channels {
		if ctx.Err() != nil {
			break
		}

		items, err := w.lister.LatestItems(ctx, channelID, w.maxVideos)
		if err != nil {
			slog.Error("failed to list channel videos",
				slog.String("channel", channelID), slog.Any("error", err))
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			if w.visited.Contains(item.URL) {
				continue
			}
			if err := w.processItem(ctx, item); err != nil {
				// The item stays out of the visited set and will be
				// offered again next cycle.
				slog.Error("failed to process video",
					slog.String("video", item.URL),
					slog.String("title", item.Title),
					slog.Any("error", err))
				continue
			}
			processed++
		}
	}

	if err := w.visited.Save(); err != nil {
		slog.Error("failed to persist visited set", slog.Any("error", err))
	}

	slog.Info("cycle complete",
		slog.Int("processed", processed),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
}

// processItem runs the full pipeline for one new video. On success the item
// is marked visited; the caller persists the set at the end of the cycle.
func (w *Watcher) processItem(ctx context.Context, item types.Item) error {
	titleMatches := w.resolver.ResolveTitle(item.Title, w.titleThreshold)
	if len(titleMatches) == 0 {
		// Not about any known company. Mark visited so the title is never
		// re-scored.
		slog.Debug("no known companies in title, skipping",
			slog.String("title", item.Title))
		w.visited.Add(item.URL)
		return nil
	}

	slog.Info("processing video",
		slog.String("title", item.Title),
		slog.Int("title_matches", len(titleMatches)))

	transcriptText, err := w.transcripts.Acquire(ctx, item.URL)
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}

	records, err := w.extractor.Extract(ctx, transcriptText)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.CompanyName)
	}
	companies := w.resolver.ResolveAll(names)

	for _, rec := range records {
		resolved := w.resolver.ResolveAll([]string{rec.CompanyName})
		if err := w.ledger.Log(rec, resolved, item.URL, item.Title); err != nil {
			// A ledger write failure loses the row but not the video; the
			// notification still goes out and the item counts as processed.
			slog.Error("failed to append ledger row",
				slog.String("company", rec.CompanyName),
				slog.String("video", item.URL),
				slog.Any("error", err))
		}
	}

	if len(records) > 0 {
		w.notifier.Dispatch(ctx, item, records, companies)
	}

	w.visited.Add(item.URL)
	return nil
}
