package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"skypescrape/internal/message"

	"go.uber.org/zap"
)

// Policy selects how a run's records reach storage.
type Policy string

const (
	// PolicyMerge appends unseen records to one fixed-path store.
	PolicyMerge Policy = "merge"
	// PolicyFresh writes every run to a new timestamped file.
	PolicyFresh Policy = "fresh"
)

// ParsePolicy validates a policy name. The empty string selects PolicyMerge.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyMerge, nil
	case PolicyMerge, PolicyFresh:
		return p, nil
	default:
		return "", fmt.Errorf("unknown export policy %q (valid: merge, fresh)", s)
	}
}

// FreshTimeLayout is the timestamp suffix of fresh export files.
const FreshTimeLayout = "20060102_150405"

// Result describes one export.
type Result struct {
	Policy   Policy
	Path     string
	Existing int // records already in the store
	Added    int // run records appended
	Skipped  int // run records dropped as invalid or already stored
	Total    int // records in the store after the export
	Written  bool
}

// Exporter persists the records of one run.
type Exporter interface {
	Export(ctx context.Context, records []message.Record) (*Result, error)
}

// MergeExporter folds run records into a persistent store so repeated runs
// accumulate without duplicates. Stored records keep their order and values;
// new records follow in run order.
type MergeExporter struct {
	store  Store
	logger *zap.Logger
}

func NewMergeExporter(store Store, logger *zap.Logger) *MergeExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeExporter{store: store, logger: logger}
}

func (e *MergeExporter) Export(ctx context.Context, records []message.Record) (*Result, error) {
	res := &Result{Policy: PolicyMerge, Path: e.store.Path()}
	logger := e.logger.With(zap.String("path", res.Path))

	existing, err := e.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", res.Path, err)
	}
	res.Existing = len(existing)

	seen := message.SeenSetFrom(existing)
	merged := make([]message.Record, len(existing), len(existing)+len(records))
	copy(merged, existing)
	for _, r := range fitRecords(e.store, records) {
		if !r.Valid() || !seen.IsNew(r) {
			res.Skipped++
			continue
		}
		merged = append(merged, r)
		res.Added++
	}
	res.Total = len(merged)

	// Leave an existing store byte-for-byte untouched when nothing is new.
	if res.Added == 0 && res.Existing > 0 {
		logger.Info("store already up to date",
			zap.Int("existing", res.Existing),
			zap.Int("skipped", res.Skipped))
		return res, nil
	}

	if err := e.store.Save(ctx, merged); err != nil {
		return res, fmt.Errorf("save %s: %w", res.Path, err)
	}
	res.Written = true
	logger.Info("store updated",
		zap.Int("existing", res.Existing),
		zap.Int("added", res.Added),
		zap.Int("skipped", res.Skipped),
		zap.Int("total", res.Total))
	return res, nil
}

// FreshExporter writes each run's records to a new file named after the
// time of the export. Earlier files are never read.
type FreshExporter struct {
	format Format
	dir    string
	prefix string
	opts   StoreOptions
	now    func() time.Time
	logger *zap.Logger
}

func NewFreshExporter(format Format, dir, prefix string, opts StoreOptions, now func() time.Time, logger *zap.Logger) *FreshExporter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &FreshExporter{format: format, dir: dir, prefix: prefix, opts: opts, now: now, logger: logger}
}

// PathAt returns the file a fresh export started at t writes to.
func (e *FreshExporter) PathAt(t time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", e.prefix, t.Format(FreshTimeLayout), e.format.Ext())
	return filepath.Join(e.dir, name)
}

func (e *FreshExporter) Export(ctx context.Context, records []message.Record) (*Result, error) {
	path := e.PathAt(e.now())
	res := &Result{Policy: PolicyFresh, Path: path}

	store, err := OpenStore(e.format, path, e.opts)
	if err != nil {
		return res, err
	}

	out := make([]message.Record, 0, len(records))
	for _, r := range fitRecords(store, records) {
		if !r.Valid() {
			res.Skipped++
			continue
		}
		out = append(out, r)
	}
	res.Added = len(out)
	res.Total = len(out)

	if err := store.Save(ctx, out); err != nil {
		return res, fmt.Errorf("save %s: %w", path, err)
	}
	res.Written = true
	e.logger.Info("fresh export written", zap.String("path", path), zap.Int("records", res.Total))
	return res, nil
}

// DefaultPrefix is the file name prefix of fresh exports.
const DefaultPrefix = "skype_messages"

// Options select and configure an Exporter.
type Options struct {
	Policy Policy
	Format Format
	// Path is the merge store location.
	Path string
	// Dir and Prefix place fresh exports.
	Dir                string
	Prefix             string
	IncludeExtractedAt bool
	Now                func() time.Time
	Logger             *zap.Logger
}

// New returns the exporter for opts.Policy.
func New(opts Options) (Exporter, error) {
	format := opts.Format
	if format == "" {
		format = FormatXLSX
	}
	storeOpts := StoreOptions{IncludeExtractedAt: opts.IncludeExtractedAt}

	switch opts.Policy {
	case PolicyMerge, "":
		store, err := OpenStore(format, opts.Path, storeOpts)
		if err != nil {
			return nil, err
		}
		return NewMergeExporter(store, opts.Logger), nil
	case PolicyFresh:
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		return NewFreshExporter(format, dir, opts.Prefix, storeOpts, opts.Now, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown export policy %q", opts.Policy)
	}
}
