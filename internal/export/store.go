// Package export persists extracted records. A Store is the durable record
// collection; an Exporter decides how a run's records reach it.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"skypescrape/internal/message"
)

// Column headers of the tabular formats.
const (
	ColumnSender      = "Nom"
	ColumnContent     = "Message"
	ColumnTime        = "Heure"
	ColumnExtractedAt = "Date d'extraction"
)

// ErrMissingColumn is returned when a stored file lacks a required column.
var ErrMissingColumn = errors.New("export: missing required column")

// Format names a store encoding.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported store formats.
var Formats = []Format{FormatXLSX, FormatCSV, FormatSQLite}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q (valid: %v)", s, Formats)
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatSQLite {
		return "db"
	}
	return string(f)
}

// Store is an ordered, durable collection of records.
type Store interface {
	// Load returns the stored records in order. A store that does not exist
	// yet loads as empty without error.
	Load(ctx context.Context) ([]message.Record, error)
	// Save replaces the stored collection with records. A failed Save leaves
	// the previous collection intact.
	Save(ctx context.Context, records []message.Record) error
	Path() string
}

// FieldLimiter is implemented by stores that cap the length of a text cell.
// Exporters cut records to the cap before deduplication, so a record reloaded
// from the store keeps the identity it was exported with.
type FieldLimiter interface {
	MaxFieldLen() int
}

// fitRecords cuts sender, content and time to the store's field cap, counted
// in runes. Stores without a cap get records back unchanged.
func fitRecords(s Store, records []message.Record) []message.Record {
	fl, ok := s.(FieldLimiter)
	if !ok || fl.MaxFieldLen() <= 0 {
		return records
	}
	limit := fl.MaxFieldLen()
	out := make([]message.Record, len(records))
	for i, r := range records {
		r.Sender = truncateRunes(r.Sender, limit)
		r.Content = truncateRunes(r.Content, limit)
		r.Timestamp = truncateRunes(r.Timestamp, limit)
		out[i] = r
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// StoreOptions tune the tabular encodings.
type StoreOptions struct {
	// IncludeExtractedAt adds the extraction time column on save.
	IncludeExtractedAt bool
}

// OpenStore returns the store for format at path.
func OpenStore(format Format, path string, opts StoreOptions) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("export: empty store path")
	}
	switch format {
	case FormatXLSX:
		return &XLSXStore{path: path, opts: opts}, nil
	case FormatCSV:
		return &CSVStore{path: path, opts: opts}, nil
	case FormatSQLite:
		return &SQLiteStore{path: path}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

func header(opts StoreOptions) []string {
	h := []string{ColumnSender, ColumnContent, ColumnTime}
	if opts.IncludeExtractedAt {
		h = append(h, ColumnExtractedAt)
	}
	return h
}

func row(r message.Record, opts StoreOptions) []string {
	out := []string{r.Sender, r.Content, r.Timestamp}
	if opts.IncludeExtractedAt {
		out = append(out, r.FormatExtractedAt())
	}
	return out
}

// decodeRows maps tabular rows (header first) onto records by column name,
// so files written by other tools with extra or reordered columns still load.
func decodeRows(rows [][]string) ([]message.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idx := map[string]int{}
	for i, name := range rows[0] {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, required := range []string{ColumnSender, ColumnContent, ColumnTime} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, required)
		}
	}

	cell := func(r []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(r) {
			return ""
		}
		return r[i]
	}

	records := make([]message.Record, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if len(r) == 0 {
			continue
		}
		records = append(records, message.Record{
			Sender:      cell(r, ColumnSender),
			Content:     cell(r, ColumnContent),
			Timestamp:   cell(r, ColumnTime),
			ExtractedAt: message.ParseExtractedAt(cell(r, ColumnExtractedAt)),
		})
	}
	return records, nil
}

// writeAtomic writes path through a temp file in the same directory and
// renames it into place.
func writeAtomic(path string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
