/*
Package refdata loads the company reference dataset and builds the normalized
in-memory index used for entity resolution.
*/
package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Record is one canonical company identity from the reference dataset.
// Records are immutable once loaded and live for the process lifetime.
type Record struct {
	CompanyName string
	ISIN        string
	Exchange    string
	Sector      string
	Industry    string
}

// Index maps normalized company-name keys to reference records. Exactly one
// record per distinct normalized key; on duplicate keys the last-loaded
// record wins (a known data-quality limitation of the source dataset).
type Index struct {
	records map[string]Record
	keys    []string
}

// NormalizeKey derives the matching anchor for a company name: lower-cased,
// whitespace-collapsed, with trailing punctuation stripped.
func NormalizeKey(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,;:")
	return strings.TrimSpace(s)
}

// Build constructs an index from reference records. Records whose name
// normalizes to the empty string are dropped.
func Build(records []Record) *Index {
	idx := &Index{records: make(map[string]Record, len(records))}
	for _, rec := range records {
		key := NormalizeKey(rec.CompanyName)
		if key == "" {
			continue
		}
		if _, seen := idx.records[key]; !seen {
			idx.keys = append(idx.keys, key)
		}
		idx.records[key] = rec
	}
	sort.Strings(idx.keys)
	return idx
}

// Keys returns all distinct normalized keys in a stable order, for scoring.
func (idx *Index) Keys() []string {
	return idx.keys
}

// Get returns the record for a normalized key.
func (idx *Index) Get(key string) (Record, bool) {
	rec, ok := idx.records[key]
	return rec, ok
}

// Len reports the number of indexed companies.
func (idx *Index) Len() int {
	return len(idx.records)
}

const nameColumn = "Company Name"

// optional columns; absent columns leave the field empty.
var optionalColumns = map[string]func(*Record, string){
	"ISIN":     func(r *Record, v string) { r.ISIN = v },
	"Exchange": func(r *Record, v string) { r.Exchange = v },
	"Sector":   func(r *Record, v string) { r.Sector = v },
	"Industry": func(r *Record, v string) { r.Industry = v },
}

// LoadCSV reads the reference dataset from a tabular file. A missing file or
// a missing "Company Name" column is a startup-time fatal condition: it is
// logged and an empty index is returned, degrading the system to
// "no resolution possible" instead of crashing.
func LoadCSV(path string) *Index {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("reference dataset unavailable, resolution disabled", slog.String("path", path), slog.Any("error", err))
		return Build(nil)
	}
	defer f.Close()

	records, err := parseCSV(f)
	if err != nil {
		slog.Error("reference dataset unreadable, resolution disabled", slog.String("path", path), slog.Any("error", err))
		return Build(nil)
	}

	idx := Build(records)
	slog.Info("reference dataset loaded", slog.String("path", path), slog.Int("companies", idx.Len()))
	return idx
}

func parseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	nameIdx := -1
	setters := make(map[int]func(*Record, string))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if strings.EqualFold(col, nameColumn) {
			nameIdx = i
			continue
		}
		for name, set := range optionalColumns {
			if strings.EqualFold(col, name) {
				setters[i] = set
			}
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("required column %q not found", nameColumn)
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if nameIdx >= len(row) {
			continue
		}
		rec := Record{CompanyName: strings.TrimSpace(row[nameIdx])}
		if rec.CompanyName == "" {
			continue
		}
		for i, set := range setters {
			if i < len(row) {
				set(&rec, strings.TrimSpace(row[i]))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
