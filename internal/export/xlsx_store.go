package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"skypescrape/internal/message"

	"github.com/xuri/excelize/v2"
)

// xlsxSheet is the sheet records are written to. Loading reads the first
// sheet whatever its name.
const xlsxSheet = "Sheet1"

// XLSXStore keeps records in an Excel workbook, one record per row.
type XLSXStore struct {
	path string
	opts StoreOptions
}

func (s *XLSXStore) Path() string { return s.path }

// MaxFieldLen is the Excel cell limit. Longer strings would be cut silently on
// save.
func (s *XLSXStore) MaxFieldLen() int { return excelize.TotalCellChars }

func (s *XLSXStore) Load(ctx context.Context) ([]message.Record, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheets[0], s.path, err)
	}
	records, err := decodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *XLSXStore) Save(ctx context.Context, records []message.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}
	if err := sw.SetRow("A1", cells(header(s.opts))); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		if err := checkCellLen(rec, i+2); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(row(rec, s.opts))); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	return writeAtomic(s.path, func(out *os.File) error {
		if err := f.Write(out); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		return nil
	})
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func checkCellLen(rec message.Record, rowNum int) error {
	for _, v := range []string{rec.Sender, rec.Content, rec.Timestamp} {
		if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
			return fmt.Errorf("row %d: %d characters exceed the %d per cell limit", rowNum, n, excelize.TotalCellChars)
		}
	}
	return nil
}
