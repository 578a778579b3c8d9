package config

import (
	"fmt"
	"time"

	"skypescrape/internal/browser"
	"skypescrape/internal/extract"
	"skypescrape/internal/message"
)

// ClientConfig locates the chat client and the elements the walker uses.
type ClientConfig struct {
	URL string `yaml:"url"`

	// LoginLocator is awaited after navigation, before the user is asked to
	// log in by hand.
	LoginLocator string `yaml:"login_locator"`
	LoginTimeout string `yaml:"login_timeout"`

	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig holds locator strings. A value prefixed with "xpath:" is an
// XPath expression, anything else is a CSS selector.
type SelectorsConfig struct {
	ConversationList string `yaml:"conversation_list"`
	MessageRegion    string `yaml:"message_region"`
	Message          string `yaml:"message"`
	BackButton       string `yaml:"back_button"`
	LabelAttribute   string `yaml:"label_attribute"`
}

// GetLoginTimeout returns the login wait as a duration.
func (c *Config) GetLoginTimeout() time.Duration {
	d, err := time.ParseDuration(c.Client.LoginTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoginLocator parses the login field locator.
func (c *Config) LoginLocator() (browser.Locator, error) {
	loc, err := browser.ParseLocator(c.Client.LoginLocator)
	if err != nil {
		return browser.Locator{}, fmt.Errorf("client.login_locator: %w", err)
	}
	return loc, nil
}

// Selectors parses the configured locators into walker selectors.
func (c *Config) Selectors() (extract.Selectors, error) {
	s := c.Client.Selectors
	out := extract.Selectors{LabelAttribute: s.LabelAttribute}

	for _, f := range []struct {
		name  string
		value string
		dst   *browser.Locator
	}{
		{"conversation_list", s.ConversationList, &out.ConversationList},
		{"message_region", s.MessageRegion, &out.MessageRegion},
		{"message", s.Message, &out.Message},
		{"back_button", s.BackButton, &out.BackButton},
	} {
		loc, err := browser.ParseLocator(f.value)
		if err != nil {
			return extract.Selectors{}, fmt.Errorf("client.selectors.%s: %w", f.name, err)
		}
		*f.dst = loc
	}
	return out, nil
}

// MessageParser returns the label parser for the configured locale.
func (c *Config) MessageParser() message.Parser {
	p := message.NewParser(c.Parser.Locale)
	if c.Parser.Delimiter != "" {
		p.Delimiter = c.Parser.Delimiter
	}
	return p
}
