package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultCloneRoot = "./repos"
	DefaultDBFile    = "octobot.db"
)

// Load reads the TOML config file at path and returns a populated Config.
// Environment variables override file values using OCTOBOT_<SECTION>_<KEY>
// (dots replaced with underscores).
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("octobot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds viper with out-of-the-box values before reading the
// file, so a minimal config only needs to set what it wants to override.
func setDefaults(v *viper.Viper) {
	v.SetDefault("webhook.max_body_bytes", 5*1024*1024)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", DefaultDBFile)

	v.SetDefault("backport.clone_root", DefaultCloneRoot)
	v.SetDefault("backport.pool_size", 5)
	v.SetDefault("backport.acquire_timeout_seconds", 60)
	v.SetDefault("backport.queue_depth", 64)
	v.SetDefault("backport.queue_idle_grace_seconds", 300)

	v.SetDefault("issue_tracker.progress_states", []string{"In Progress"})
	v.SetDefault("issue_tracker.review_states", []string{"In Review"})
	v.SetDefault("issue_tracker.resolved_states", []string{"Resolved", "Done"})
	v.SetDefault("issue_tracker.fixed_resolution", "Fixed")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
}

// expandPaths resolves a leading "~/" in configured paths against the
// invoking user's home directory.
func expandPaths(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Backport.CloneRoot = expandHome(cfg.Backport.CloneRoot, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// validate rejects configs missing the fields every component depends on
// unconditionally.
func validate(cfg *Config) error {
	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	if len(cfg.Hosting.Hosts) == 0 {
		return fmt.Errorf("hosting.hosts must configure at least one host")
	}
	for _, h := range cfg.Hosting.Hosts {
		if h.Host == "" || h.Token == "" {
			return fmt.Errorf("hosting.hosts entries require both host and token")
		}
	}
	return nil
}
