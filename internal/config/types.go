package config

// Config is the root configuration structure for octobot. Serialised to /
// loaded from a TOML file whose path is the CLI's single positional argument.
type Config struct {
	Webhook      WebhookConfig      `mapstructure:"webhook"       toml:"webhook"`
	Hosting      HostingConfig      `mapstructure:"hosting"       toml:"hosting"`
	Chat         ChatConfig         `mapstructure:"chat"          toml:"chat"`
	IssueTracker IssueTrackerConfig `mapstructure:"issue_tracker" toml:"issue_tracker"`
	Backport     BackportConfig     `mapstructure:"backport"      toml:"backport"`
	Database     DatabaseConfig     `mapstructure:"database"      toml:"database"`
	Server       ServerConfig       `mapstructure:"server"        toml:"server"`
}

// WebhookConfig controls the Signed Ingress.
type WebhookConfig struct {
	// Secret is the shared HMAC-SHA1 secret configured on the hosting
	// platform's webhook. Required.
	Secret string `mapstructure:"secret" toml:"secret"`
	// MaxBodyBytes caps the webhook request body; oversize requests get 413.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" toml:"max_body_bytes"`
}

// HostingConfig holds one credential per hosting-platform host Octobot
// observes.
type HostingConfig struct {
	Hosts []HostConfig `mapstructure:"hosts" toml:"hosts"`
}

// HostConfig is one hosting-platform host's credentials. Token authenticates
// both the REST client and git pushes/cherry-picks via the Git Runner's
// credential helper.
type HostConfig struct {
	Host  string `mapstructure:"host"  toml:"host"`
	Token string `mapstructure:"token" toml:"token"` // #nosec G101 -- config field, not a hardcoded credential
}

// ForHost returns the credentials configured for host, or false if none are
// configured.
func (c HostingConfig) ForHost(host string) (HostConfig, bool) {
	for _, h := range c.Hosts {
		if h.Host == host {
			return h, true
		}
	}
	return HostConfig{}, false
}

// ChatConfig controls the Notifier's outbound webhook.
type ChatConfig struct {
	// WebhookURL is the chat platform's incoming-webhook endpoint.
	WebhookURL string `mapstructure:"webhook_url" toml:"webhook_url"`
	// DirectMessageURLTemplate, when set, derives a per-user DM endpoint from
	// a chat handle (e.g. "https://chat.example.com/dm/%s"); when empty,
	// direct messages go to WebhookURL with the handle named in the text.
	DirectMessageURLTemplate string `mapstructure:"direct_message_url_template" toml:"direct_message_url_template"`
}

// IssueTrackerConfig controls the Issue-Tracker Coordinator.
type IssueTrackerConfig struct {
	Enabled         bool     `mapstructure:"enabled"           toml:"enabled"`
	BaseURL         string   `mapstructure:"base_url"          toml:"base_url"`
	Username        string   `mapstructure:"username"          toml:"username"`
	Token           string   `mapstructure:"token"             toml:"token"` // #nosec G101 -- config field, not a hardcoded credential
	ProgressStates  []string `mapstructure:"progress_states"   toml:"progress_states"`
	ReviewStates    []string `mapstructure:"review_states"     toml:"review_states"`
	ResolvedStates  []string `mapstructure:"resolved_states"   toml:"resolved_states"`
	FixedResolution string   `mapstructure:"fixed_resolution"  toml:"fixed_resolution"`
	FixVersionField string   `mapstructure:"fix_version_field" toml:"fix_version_field"`
}

// BackportConfig controls the Clone Pool and Backport Engine defaults.
type BackportConfig struct {
	// CloneRoot is the parent of the "<host>/<owner>/<repo>/<index>" layout.
	CloneRoot string `mapstructure:"clone_root" toml:"clone_root"`
	// PoolSize is the number of clone slots per RepoKey.
	PoolSize int `mapstructure:"pool_size" toml:"pool_size"`
	// AcquireTimeoutSeconds bounds the acquire() backoff loop.
	AcquireTimeoutSeconds int `mapstructure:"acquire_timeout_seconds" toml:"acquire_timeout_seconds"`
	// QueueDepth bounds the per-repo work queue.
	QueueDepth int `mapstructure:"queue_depth" toml:"queue_depth"`
	// QueueIdleGraceSeconds is how long an idle per-repo worker waits before
	// exiting; the next enqueue respawns it.
	QueueIdleGraceSeconds int `mapstructure:"queue_idle_grace_seconds" toml:"queue_idle_grace_seconds"`
}

// DatabaseConfig controls the snapshot store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" toml:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path" toml:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn" toml:"dsn"`
}

// ServerConfig controls the HTTP ingress listener.
type ServerConfig struct {
	// Port the webhook HTTP server listens on.
	Port int `mapstructure:"port" toml:"port"`
	// LogLevel is "debug"|"info"|"warn"|"error".
	LogLevel string `mapstructure:"log_level" toml:"log_level"`
}
