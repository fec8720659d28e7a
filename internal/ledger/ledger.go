/*
Package ledger appends high-magnitude growth mentions to a durable tabular
file. Rows are append-only and never mutated after write; the poll loop's
visited set, not the ledger, is what prevents duplicate rows in steady state.
*/
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"growthwatch/internal/refdata"
	"growthwatch/internal/types"
)

// DefaultGrowthThreshold is the magnitude above which a growth mention is
// worth a ledger row.
const DefaultGrowthThreshold = 30.0

// header is the fixed column set of the growth ledger file.
var header = []string{
	"Company Name",
	"ISIN",
	"Metrics With >30% Growth",
	"Growth Details",
	"Timestamped Links",
	"Video URL",
	"Title",
}

// Entry is one ledger row: all qualifying growth mentions for a
// (video, company) pair, aggregated.
type Entry struct {
	CompanyName string
	ISIN        string
	Metrics     string
	Details     string
	Links       string
	VideoURL    string
	Title       string
}

// Logger filters and persists growth mentions.
type Logger struct {
	path      string
	threshold float64
}

// New creates a logger writing to path. threshold <= 0 selects the default.
func New(path string, threshold float64) *Logger {
	if threshold <= 0 {
		threshold = DefaultGrowthThreshold
	}
	return &Logger{path: path, threshold: threshold}
}

// Log appends one row aggregating the record's above-threshold growth
// mentions. When no mention clears the threshold it is a no-op with no side
// effect. The row's company identity is the first resolved company when
// available, falling back to the name embedded in the extracted record.
func (l *Logger) Log(record types.ExtractedRecord, resolved []refdata.Record, videoURL, title string) error {
	entry, ok := l.BuildEntry(record, resolved, videoURL, title)
	if !ok {
		return nil
	}
	return l.Append(entry)
}

// BuildEntry assembles the ledger row for a record, reporting ok=false when
// no growth mention clears the threshold.
func (l *Logger) BuildEntry(record types.ExtractedRecord, resolved []refdata.Record, videoURL, title string) (Entry, bool) {
	var metrics, details, links []string
	for _, mention := range record.GrowthMentions {
		if mention.GrowthValue <= l.threshold {
			continue
		}
		metrics = append(metrics, mentionLabel(mention))
		details = append(details, cleanContext(mention.Context))
		links = append(links, timestampedLink(videoURL, mention.TimestampSeconds))
	}
	if len(metrics) == 0 {
		return Entry{}, false
	}

	entry := Entry{
		CompanyName: record.CompanyName,
		Metrics:     strings.Join(metrics, "; "),
		Details:     strings.Join(details, " | "),
		Links:       strings.Join(links, "\n"),
		VideoURL:    videoURL,
		Title:       title,
	}
	if len(resolved) > 0 {
		entry.CompanyName = resolved[0].CompanyName
		entry.ISIN = resolved[0].ISIN
	}
	return entry, true
}

// Append writes the entry as a new row, creating the ledger with its header
// when the file does not exist yet. The existing rows are re-read and the
// file rewritten wholesale; the poll loop is single-threaded so there are no
// concurrent writers to race with.
func (l *Logger) Append(entry Entry) error {
	rows, err := l.readRows()
	if err != nil {
		return err
	}

	rows = append(rows, []string{
		entry.CompanyName,
		entry.ISIN,
		entry.Metrics,
		entry.Details,
		entry.Links,
		entry.VideoURL,
		entry.Title,
	})

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("write ledger %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write ledger rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// Rows returns the current data rows (header excluded), mainly for tests and
// the digest formatter.
func (l *Logger) Rows() ([][]string, error) {
	return l.readRows()
}

func (l *Logger) readRows() ([][]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}
	if len(all) <= 1 {
		return nil, nil
	}
	return all[1:], nil
}

func mentionLabel(m types.GrowthMention) string {
	label := fmt.Sprintf("%s: %+g%%", m.Metric, m.GrowthValue)
	if m.Type != "" {
		label += " " + m.Type
	}
	return label
}

// cleanContext collapses newlines so quotes stay on one row.
func cleanContext(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// timestampedLink deep-links into the video at the mention's estimated
// offset when one is available, else returns the bare video URL.
func timestampedLink(videoURL string, seconds *float64) string {
	if seconds == nil || *seconds < 0 {
		return videoURL
	}
	sep := "?"
	if strings.Contains(videoURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%ds", videoURL, sep, int(*seconds))
}
