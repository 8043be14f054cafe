package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds converter configuration.
type Config struct {
	InputFile   string
	OutputFile  string
	BaseURL     string
	Delay       time.Duration
	Timeout     time.Duration // zero disables the request timeout
	UserAgent   string
	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns the fixed defaults for a Mythic Tools export and the
// public Scryfall API.
func DefaultConfig() *Config {
	return &Config{
		InputFile:   "list_export.csv",
		OutputFile:  "moxfield_collection.csv",
		BaseURL:     "https://api.scryfall.com",
		Delay:       100 * time.Millisecond,
		Timeout:     0,
		UserAgent:   "mythic-to-moxfield/1.0",
		Verbose:     false,
		MetricsAddr: "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.InputFile == c.OutputFile {
		return fmt.Errorf("output file cannot be the input file")
	}

	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
