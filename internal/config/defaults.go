package config

const (
	defaultConfigPath       = "~/.config/sodareplay/config.toml"
	defaultExportDir        = "~/.local/share/sodareplay/exports"
	defaultStateDir         = "~/.local/share/sodareplay/state"
	defaultLogDir           = "~/.local/share/sodareplay/logs"
	defaultAPIBind          = "127.0.0.1:8080"
	defaultMaxRequestMiB    = 64
	defaultCDNURLTemplate   = "https://assetdelivery.roblox.com/v1/asset/?id={id}"
	defaultCDNTimeout       = 10
	defaultCDNUserAgent     = "sodareplay/dev"
	defaultMaxAssetMiB      = 256
	defaultResolverWorkers  = 4
	defaultCaptureFile      = "recorded_data.soda"
	defaultRosterPolicy     = RosterStrict
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Roster policies decide how frames whose player count differs from the
// seeded roster are reconciled.
const (
	RosterStrict        = "strict"
	RosterIgnoreExtra   = "ignore_extra"
	RosterFreezeMissing = "freeze_missing"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ExportDir:     defaultExportDir,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
			MaxRequestMiB: defaultMaxRequestMiB,
		},
		CDN: CDN{
			URLTemplate:    defaultCDNURLTemplate,
			TimeoutSeconds: defaultCDNTimeout,
			UserAgent:      defaultCDNUserAgent,
			MaxAssetMiB:    defaultMaxAssetMiB,
		},
		Resolver: Resolver{
			Workers: defaultResolverWorkers,
		},
		Replay: Replay{
			CaptureFile:  defaultCaptureFile,
			RosterPolicy: defaultRosterPolicy,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
