package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverlay lists the environment variables that fill values a config file
// left empty.
type envOverlay struct {
	APIToken       string `env:"SODA_API_TOKEN"`
	CDNURLTemplate string `env:"SODA_CDN_URL_TEMPLATE"`
	ExportDir      string `env:"SODA_EXPORT_DIR"`
	LogLevel       string `env:"SODA_LOG_LEVEL"`
}

func (c *Config) applyEnv() error {
	var overlay envOverlay
	if err := env.Parse(&overlay); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIToken) == "" {
		c.Paths.APIToken = strings.TrimSpace(overlay.APIToken)
	}
	if value := strings.TrimSpace(overlay.CDNURLTemplate); value != "" && c.CDN.URLTemplate == defaultCDNURLTemplate {
		c.CDN.URLTemplate = value
	}
	if value := strings.TrimSpace(overlay.ExportDir); value != "" && c.Paths.ExportDir == defaultExportDir {
		c.Paths.ExportDir = value
	}
	if value := strings.TrimSpace(overlay.LogLevel); value != "" && c.Logging.Level == defaultLogLevel {
		c.Logging.Level = value
	}
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCDN()
	c.normalizeResolver()
	c.normalizeReplay()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.MaxRequestMiB <= 0 {
		c.Paths.MaxRequestMiB = defaultMaxRequestMiB
	}
	return nil
}

func (c *Config) normalizeCDN() {
	c.CDN.URLTemplate = strings.TrimSpace(c.CDN.URLTemplate)
	if c.CDN.URLTemplate == "" {
		c.CDN.URLTemplate = defaultCDNURLTemplate
	}
	if c.CDN.TimeoutSeconds <= 0 {
		c.CDN.TimeoutSeconds = defaultCDNTimeout
	}
	c.CDN.UserAgent = strings.TrimSpace(c.CDN.UserAgent)
	if c.CDN.UserAgent == "" {
		c.CDN.UserAgent = defaultCDNUserAgent
	}
	if c.CDN.MaxAssetMiB <= 0 {
		c.CDN.MaxAssetMiB = defaultMaxAssetMiB
	}
}

func (c *Config) normalizeResolver() {
	if c.Resolver.Workers == 0 {
		c.Resolver.Workers = defaultResolverWorkers
	}
}

func (c *Config) normalizeReplay() {
	c.Replay.CaptureFile = filepath.Base(strings.TrimSpace(c.Replay.CaptureFile))
	if c.Replay.CaptureFile == "" || c.Replay.CaptureFile == "." || c.Replay.CaptureFile == string(filepath.Separator) {
		c.Replay.CaptureFile = defaultCaptureFile
	}
	c.Replay.RosterPolicy = strings.ToLower(strings.TrimSpace(c.Replay.RosterPolicy))
	if c.Replay.RosterPolicy == "" {
		c.Replay.RosterPolicy = defaultRosterPolicy
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
