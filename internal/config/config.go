package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"skypescrape/internal/browser"
	"skypescrape/internal/export"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "skypescrape.yaml"

// Config holds all skypescrape configuration.
type Config struct {
	// Chat client location and markup
	Client ClientConfig `yaml:"client"`

	// Parser settings
	Parser ParserConfig `yaml:"parser"`

	// Conversation walk
	Extraction ExtractionConfig `yaml:"extraction"`

	// Browser session
	Browser browser.Config `yaml:"browser"`

	// Record persistence
	Export ExportConfig `yaml:"export"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ParserConfig configures label parsing.
type ParserConfig struct {
	Locale    string `yaml:"locale"` // fr, en
	Delimiter string `yaml:"delimiter"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			URL:          "https://web.skype.com",
			LoginLocator: "[name='loginfmt']",
			LoginTimeout: "30s",
			Selectors: SelectorsConfig{
				ConversationList: "[role='listitem']",
				MessageRegion:    "xpath://div[@role='region']",
				Message:          "xpath://div[@role='region']",
				BackButton:       "[title='Retour']",
				LabelAttribute:   "aria-label",
			},
		},

		Parser: ParserConfig{
			Locale:    "fr",
			Delimiter: ", ",
		},

		Extraction: ExtractionConfig{
			Limit:           10,
			WaitTimeout:     "30s",
			ScrollPause:     "2s",
			MaxScrollRounds: 0,
		},

		Browser: browser.DefaultConfig(),

		Export: ExportConfig{
			Policy: string(export.PolicyMerge),
			Format: string(export.FormatXLSX),
			Path:   "skypeMessages.xlsx",
			Dir:    "exports",
			Prefix: export.DefaultPrefix,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "skype_extractor.log",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Attach to an already running browser
	if url := os.Getenv("SKYPESCRAPE_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if v := os.Getenv("SKYPESCRAPE_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = headless
		}
	}

	if path := os.Getenv("SKYPESCRAPE_EXPORT_PATH"); path != "" {
		c.Export.Path = path
	}
	if level := os.Getenv("SKYPESCRAPE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Client.URL) == "" {
		errs = append(errs, errors.New("client.url is required"))
	}
	if _, err := c.Selectors(); err != nil {
		errs = append(errs, err)
	}
	if c.Extraction.Limit < 0 {
		errs = append(errs, fmt.Errorf("extraction.limit must not be negative, got %d", c.Extraction.Limit))
	}
	if c.Extraction.MaxScrollRounds < 0 {
		errs = append(errs, fmt.Errorf("extraction.max_scroll_rounds must not be negative, got %d", c.Extraction.MaxScrollRounds))
	}

	if _, err := export.ParsePolicy(c.Export.Policy); err != nil {
		errs = append(errs, err)
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, err)
	}
	if p, _ := export.ParsePolicy(c.Export.Policy); p == export.PolicyMerge && strings.TrimSpace(c.Export.Path) == "" {
		errs = append(errs, errors.New("export.path is required for the merge policy"))
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if strings.EqualFold(c.Logging.Level, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errs = append(errs, fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels))
	}

	return errors.Join(errs...)
}
