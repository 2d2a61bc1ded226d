package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCDN(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateReplay(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		return errors.New("paths.export_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateCDN() error {
	if !strings.Contains(c.CDN.URLTemplate, "{id}") {
		return fmt.Errorf("cdn.url_template %q must contain the {id} placeholder", c.CDN.URLTemplate)
	}
	parsed, err := url.Parse(strings.ReplaceAll(c.CDN.URLTemplate, "{id}", "0"))
	if err != nil {
		return fmt.Errorf("cdn.url_template: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("cdn.url_template must use http or https, got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.Workers < 1 {
		return fmt.Errorf("resolver.workers must be at least 1, got %d", c.Resolver.Workers)
	}
	return nil
}

func (c *Config) validateReplay() error {
	switch c.Replay.RosterPolicy {
	case RosterStrict, RosterIgnoreExtra, RosterFreezeMissing:
		return nil
	default:
		return fmt.Errorf("replay.roster_policy: unsupported value %q (want %s, %s, or %s)",
			c.Replay.RosterPolicy, RosterStrict, RosterIgnoreExtra, RosterFreezeMissing)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
