package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Discord   DiscordConfig   `koanf:"discord"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Audit     AuditConfig     `koanf:"audit"`
}

type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	MaxBodyBytes int64  `koanf:"max_body_bytes"`
}

type DiscordConfig struct {
	PublicKey string `koanf:"public_key"`
	AppID     string `koanf:"app_id"`
	BotToken  string `koanf:"bot_token"`
	APIBase   string `koanf:"api_base"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type TelemetryConfig struct {
	Tracing     bool   `koanf:"tracing"`
	ServiceName string `koanf:"service_name"`
}

type AuditConfig struct {
	Enabled         bool `koanf:"enabled"`
	BufferSize      int  `koanf:"buffer_size"`
	BatchSize       int  `koanf:"batch_size"`
	FlushIntervalMS int  `koanf:"flush_interval_ms"`
}

// bareEnv maps the unprefixed variables the service has always honoured.
var bareEnv = map[string]string{
	"DISCORD_PUBLIC_KEY": "discord.public_key",
	"DISCORD_APP_ID":     "discord.app_id",
	"DISCORD_BOT_TOKEN":  "discord.bot_token",
	"PORT":               "server.port",
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding existing variables.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.host":             "0.0.0.0",
		"server.port":             3000,
		"server.max_body_bytes":   1 << 20,
		"discord.api_base":        "https://discord.com/api/v10",
		"log.level":               "info",
		"log.format":              "json",
		"telemetry.tracing":       false,
		"telemetry.service_name":  "crabbot",
		"audit.enabled":           true,
		"audit.buffer_size":       4096,
		"audit.batch_size":        100,
		"audit.flush_interval_ms": 500,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// DISCORD_PUBLIC_KEY -> discord.public_key, PORT -> server.port
	_ = k.Load(env.Provider("", ".", func(s string) string {
		return bareEnv[s]
	}), nil)

	// Prefixed variables override everything, keeping the first underscore
	// after the section as a nesting separator:
	// CRABBOT_SERVER_MAX_BODY_BYTES -> server.max_body_bytes
	_ = k.Load(env.Provider("CRABBOT_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "CRABBOT_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
