// Package config loads run configuration through viper: a config file,
// environment variables and CLI flags layered together.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the run options a cobra command line can populate, mirroring
// the RunConfig fields the run coordinator accepts.
type Config struct {
	GraphPath    string
	Scheduler    string
	NumWorkers   int
	DryRun       bool
	Verbose      bool
	ProfilerPath string
	CacheDir     string
	CacheEnabled bool
	PollInterval time.Duration
	CommonParams map[string]any
}

// Defaults populates viper with the option defaults before flags or a config
// file override them.
func Defaults(v *viper.Viper) {
	v.SetDefault("scheduler", "worker-pool")
	v.SetDefault("num-workers", 4)
	v.SetDefault("dry-run", false)
	v.SetDefault("verbose", false)
	v.SetDefault("cache-enabled", true)
	v.SetDefault("cache-dir", ".dagrunner-cache")
	v.SetDefault("poll-interval", 500*time.Millisecond)
}

// BindFlags binds the named flags of a cobra command's flag set into v, following the
// viper.BindPFlag pattern used to wire cobra flags into viper keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, name := range []string{
		"graph", "scheduler", "num-workers", "dry-run", "verbose",
		"profiler-path", "cache-dir", "cache-enabled", "poll-interval", "config",
	} {
		if flag := flags.Lookup(name); flag != nil {
			if err := v.BindPFlag(name, flag); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads an optional config file (if configPath is non-empty) and
// environment variables prefixed DAGRUNNER_, then materialises a Config.
func Load(v *viper.Viper, configPath string) (Config, error) {
	v.SetEnvPrefix("dagrunner")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		GraphPath:    v.GetString("graph"),
		Scheduler:    v.GetString("scheduler"),
		NumWorkers:   v.GetInt("num-workers"),
		DryRun:       v.GetBool("dry-run"),
		Verbose:      v.GetBool("verbose"),
		ProfilerPath: v.GetString("profiler-path"),
		CacheDir:     v.GetString("cache-dir"),
		CacheEnabled: v.GetBool("cache-enabled"),
		PollInterval: v.GetDuration("poll-interval"),
	}
	if params := v.GetStringMap("common-params"); len(params) > 0 {
		cfg.CommonParams = params
	}
	return cfg, nil
}
