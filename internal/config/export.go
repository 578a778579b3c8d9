package config

import (
	"fmt"
	"time"

	"skypescrape/internal/export"

	"go.uber.org/zap"
)

// ExportConfig configures record persistence.
type ExportConfig struct {
	Policy string `yaml:"policy"` // merge, fresh
	Format string `yaml:"format"` // xlsx, csv, sqlite

	// Merge store location
	Path string `yaml:"path"`

	// Fresh export placement: <dir>/<prefix>_YYYYMMDD_HHMMSS.<ext>
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`

	// Write the extraction time column in tabular formats
	IncludeExtractedAt bool `yaml:"include_extracted_at"`
}

// ExportOptions translates the export section into exporter options.
func (c *Config) ExportOptions(now func() time.Time, logger *zap.Logger) (export.Options, error) {
	policy, err := export.ParsePolicy(c.Export.Policy)
	if err != nil {
		return export.Options{}, fmt.Errorf("export.policy: %w", err)
	}
	format, err := export.ParseFormat(c.Export.Format)
	if err != nil {
		return export.Options{}, fmt.Errorf("export.format: %w", err)
	}
	return export.Options{
		Policy:             policy,
		Format:             format,
		Path:               c.Export.Path,
		Dir:                c.Export.Dir,
		Prefix:             c.Export.Prefix,
		IncludeExtractedAt: c.Export.IncludeExtractedAt,
		Now:                now,
		Logger:             logger,
	}, nil
}
