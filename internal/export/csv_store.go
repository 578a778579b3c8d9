package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"skypescrape/internal/message"
)

// CSVStore keeps records in a UTF-8 CSV file with a header row.
type CSVStore struct {
	path string
	opts StoreOptions
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Load(ctx context.Context) ([]message.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	records, err := decodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *CSVStore) Save(ctx context.Context, records []message.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(s.path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(header(s.opts)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, rec := range records {
			if err := w.Write(row(rec, s.opts)); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
		w.Flush()
		return w.Error()
	})
}
