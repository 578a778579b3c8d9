package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skypescrape/internal/message"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []message.Record {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	return []message.Record{
		{Sender: "Alice", Content: "Bonjour", Timestamp: "14:32", ExtractedAt: at},
		{Sender: "Bob", Content: "Salut, ça va ?", Timestamp: "14:33", ExtractedAt: at},
		{Sender: "Alice", Content: `Un "devis", en pièce jointe`, Timestamp: "14:35", ExtractedAt: at.Add(time.Second)},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "xlsx", want: FormatXLSX},
		{in: " CSV ", want: FormatCSV},
		{in: "sqlite", want: FormatSQLite},
		{in: "json", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
	require.Equal(t, "db", FormatSQLite.Ext())
	require.Equal(t, "xlsx", FormatXLSX.Ext())
}

func TestOpenStore_RejectsEmptyPath(t *testing.T) {
	_, err := OpenStore(FormatCSV, "  ", StoreOptions{})
	require.Error(t, err)

	_, err = OpenStore(Format("yaml"), "out.yaml", StoreOptions{})
	require.Error(t, err)
}

func TestStores_RoundTrip(t *testing.T) {
	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "messages."+format.Ext())
			store, err := OpenStore(format, path, StoreOptions{IncludeExtractedAt: true})
			require.NoError(t, err)
			require.Equal(t, path, store.Path())

			got, err := store.Load(ctx)
			require.NoError(t, err, "missing store loads as empty")
			require.Empty(t, got)

			want := sampleRecords()
			require.NoError(t, store.Save(ctx, want))

			got, err = store.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}

			// Save replaces rather than appends.
			require.NoError(t, store.Save(ctx, want[:1]))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
		})
	}
}

func TestStores_WithoutExtractedAtColumn(t *testing.T) {
	for _, format := range []Format{FormatXLSX, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "messages."+format.Ext())
			store, err := OpenStore(format, path, StoreOptions{})
			require.NoError(t, err)

			require.NoError(t, store.Save(ctx, sampleRecords()))
			got, err := store.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)
			for i, r := range got {
				require.True(t, r.ExtractedAt.IsZero())
				require.Equal(t, sampleRecords()[i].Identity(), r.Identity())
			}
		})
	}
}

func TestCSVStore_HeaderByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.csv")
	content := "\ufeffHeure,Extra,Nom,Message\n14:32,x,Alice,Bonjour\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := OpenStore(FormatCSV, path, StoreOptions{})
	require.NoError(t, err)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []message.Record{{Sender: "Alice", Content: "Bonjour", Timestamp: "14:32"}}, got)
}

func TestCSVStore_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nom,Message\nAlice,Bonjour\n"), 0o644))

	store, err := OpenStore(FormatCSV, path, StoreOptions{})
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestWriteAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := writeAtomic(path, func(f *os.File) error {
		_, _ = f.WriteString("partial")
		return os.ErrClosed
	})
	require.ErrorIs(t, err, os.ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file removed")
}

func TestXLSXStore_RejectsOverlongCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.xlsx")
	store, err := OpenStore(FormatXLSX, path, StoreOptions{})
	require.NoError(t, err)

	long := message.Record{Sender: "Alice", Content: strings.Repeat("a", excelize.TotalCellChars+1), Timestamp: "10:00"}
	err = store.Save(context.Background(), []message.Record{long})
	require.ErrorContains(t, err, "per cell limit")
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "nothing is written")

	fl, ok := store.(FieldLimiter)
	require.True(t, ok)
	require.Equal(t, excelize.TotalCellChars, fl.MaxFieldLen())
}
