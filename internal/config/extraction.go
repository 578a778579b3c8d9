package config

import "time"

// ExtractionConfig configures the conversation walk.
type ExtractionConfig struct {
	// Number of conversations opened per run
	Limit int `yaml:"limit"`

	// Wait for each element (list, region, back button)
	WaitTimeout string `yaml:"wait_timeout"`

	// Pause between history scroll rounds
	ScrollPause string `yaml:"scroll_pause"`

	// 0 = scroll until the message count stops growing
	MaxScrollRounds int `yaml:"max_scroll_rounds"`
}

// GetWaitTimeout returns the element wait timeout as a duration.
func (c *Config) GetWaitTimeout() time.Duration {
	d, err := time.ParseDuration(c.Extraction.WaitTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetScrollPause returns the scroll pause as a duration.
func (c *Config) GetScrollPause() time.Duration {
	d, err := time.ParseDuration(c.Extraction.ScrollPause)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}
