package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"sodareplay/internal/api"
	"sodareplay/internal/assetref"
	"sodareplay/internal/assetstore"
	"sodareplay/internal/cdn"
	"sodareplay/internal/config"
	"sodareplay/internal/ledger"
	"sodareplay/internal/logging"
	"sodareplay/internal/manifest"
	"sodareplay/internal/runaccess"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if value := strings.TrimSpace(*c.apiFlag); value != "" {
			return value
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Paths.APIBind
}

func (c *commandContext) apiClient() *api.Client {
	addr := c.apiAddress()
	if addr == "" {
		return nil
	}
	var token string
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		token = cfg.Paths.APIToken
	}
	return api.NewClient(addr, api.WithToken(token))
}

// cliLogger writes to stderr so command output on stdout stays parseable.
func (c *commandContext) cliLogger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// localResolver builds a resolver that records its runs in store.
func localResolver(cfg *config.Config, store *ledger.Store, logger *slog.Logger) *manifest.Resolver {
	return manifest.NewResolver(
		assetref.NewLayout(cfg.Paths.ExportDir),
		cdn.NewFromConfig(cfg),
		logger,
		manifest.WithWorkers(cfg.Resolver.Workers),
		manifest.WithStore(assetstore.New(assetstore.NewFileCache(), logger)),
		manifest.WithObserver(manifest.LogObserver(logger)),
		manifest.WithObserver(store.Observer(ledger.SourceCLI, logger)),
	)
}

func (c *commandContext) openRuns(cmd *cobra.Command) (runaccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return runaccess.Session{}, err
	}
	return runaccess.OpenWithFallback(cmd.Context(), c.apiClient(), func() (*api.RunService, func() error, error) {
		store, err := ledger.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		return api.NewRunService(store, localResolver(cfg, store, c.cliLogger())), store.Close, nil
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
