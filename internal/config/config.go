// Package config loads and validates the teleops configuration.
//
// Config lives in a JSON5 file (comments and trailing commas allowed).
// Secrets (bot token, TOTP secret, torrent credentials) can be supplied or
// overridden via environment variables so the config file can be committed
// without them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/titanous/json5"
)

// Defaults applied by Load when the file omits a field.
const (
	DefaultRateLimitWindow = 1 * time.Second
	DefaultGrantTTL        = 15 * time.Minute
	DefaultCacheTTL        = 60 * time.Second
	DefaultPollInterval    = 30 * time.Second
	DefaultAuditCapacity   = 256
	DefaultRemoteTimeout   = 10 * time.Second
)

// Config is the root configuration object.
type Config struct {
	// Telegram bot token. Env: TELEOPS_BOT_TOKEN.
	BotToken string `json:"botToken"`

	// Chat IDs allowed to issue commands. Empty means nobody is authorized.
	AllowedChatIDs []int64 `json:"allowedChatIds"`

	// Minimum interval between accepted commands per (chat, command).
	RateLimitWindowMS int64 `json:"rateLimitWindowMs"`

	// Shared secret for TOTP elevation codes. Env: TELEOPS_TOTP_SECRET.
	// Base32, no padding.
	TOTPSecret string `json:"totpSecret"`

	// How long an elevation grant stays valid.
	GrantTTLMS int64 `json:"grantTtlMs"`

	// TTL for suggestion caches (container/torrent names).
	CacheTTLMS int64 `json:"cacheTtlMs"`

	// Torrent completion poll interval.
	PollIntervalMS int64 `json:"pollIntervalMs"`

	// Audit ring buffer capacity.
	AuditCapacity int `json:"auditCapacity"`

	// Digest trigger schedules (5-field cron expressions) and their zone.
	Digests  DigestConfig `json:"digests"`
	Timezone string       `json:"timezone"` // e.g. "Europe/Madrid"; empty = local

	// External collaborators.
	Qbt    QbtConfig    `json:"qbittorrent"`
	Docker DockerConfig `json:"docker"`

	// Per-call timeout for collaborator requests.
	RemoteTimeoutMS int64 `json:"remoteTimeoutMs"`

	// Paths whose disk usage /health reports.
	WatchPaths []string `json:"watchPaths"`

	// Path of the JSON state file (subscriptions, mutes). Empty disables
	// persistence across restarts.
	StateFile string `json:"stateFile"`
}

// DigestConfig holds the cron expressions for the fixed-time digests.
type DigestConfig struct {
	GameOffersCron string `json:"gameOffersCron"` // default "0 20 * * *"
	HackerNewsCron string `json:"hackerNewsCron"` // default "0 8 * * *"
}

// QbtConfig points at the qBittorrent WebUI.
type QbtConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"` // env: TELEOPS_QBT_USER
	Pass string `json:"pass"` // env: TELEOPS_QBT_PASS
}

// DockerConfig points at the Docker Engine API.
type DockerConfig struct {
	Socket string `json:"socket"` // default /var/run/docker.sock
}

// RateLimitWindow returns the configured rate-limit window as a Duration.
func (c *Config) RateLimitWindow() time.Duration {
	return msOrDefault(c.RateLimitWindowMS, DefaultRateLimitWindow)
}

// GrantTTL returns the elevation grant lifetime.
func (c *Config) GrantTTL() time.Duration {
	return msOrDefault(c.GrantTTLMS, DefaultGrantTTL)
}

// CacheTTL returns the suggestion cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return msOrDefault(c.CacheTTLMS, DefaultCacheTTL)
}

// PollInterval returns the completion poller interval.
func (c *Config) PollInterval() time.Duration {
	return msOrDefault(c.PollIntervalMS, DefaultPollInterval)
}

// RemoteTimeout returns the per-call collaborator timeout.
func (c *Config) RemoteTimeout() time.Duration {
	return msOrDefault(c.RemoteTimeoutMS, DefaultRemoteTimeout)
}

// Location resolves the configured time zone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Allowed reports whether chatID is on the allow-list.
func (c *Config) Allowed(chatID int64) bool {
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func msOrDefault(ms int64, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// DefaultPath returns the default config file location (~/.teleops/config.json5).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json5"
	}
	return filepath.Join(home, ".teleops", "config.json5")
}

// Load reads, parses and validates the config file at path.
// A missing file yields a default config (env vars can still supply the
// token and secret, which is enough to run).
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults + env only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEOPS_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("TELEOPS_TOTP_SECRET"); v != "" {
		cfg.TOTPSecret = v
	}
	if v := os.Getenv("TELEOPS_QBT_USER"); v != "" {
		cfg.Qbt.User = v
	}
	if v := os.Getenv("TELEOPS_QBT_PASS"); v != "" {
		cfg.Qbt.Pass = v
	}
	if v := os.Getenv("TELEOPS_ALLOWED_CHAT_IDS"); v != "" {
		cfg.AllowedChatIDs = parseChatIDs(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Digests.GameOffersCron == "" {
		cfg.Digests.GameOffersCron = "0 20 * * *"
	}
	if cfg.Digests.HackerNewsCron == "" {
		cfg.Digests.HackerNewsCron = "0 8 * * *"
	}
	if cfg.AuditCapacity <= 0 {
		cfg.AuditCapacity = DefaultAuditCapacity
	}
	if cfg.Qbt.Host == "" {
		cfg.Qbt.Host = "qbittorrent"
	}
	if cfg.Qbt.Port == 0 {
		cfg.Qbt.Port = 8080
	}
	if cfg.Docker.Socket == "" {
		cfg.Docker.Socket = "/var/run/docker.sock"
	}
	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"/"}
	}
}

func validate(cfg *Config) error {
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
	}
	g := gronx.New()
	for _, expr := range []string{cfg.Digests.GameOffersCron, cfg.Digests.HackerNewsCron} {
		if len(strings.Fields(expr)) != 5 || !g.IsValid(expr) {
			return fmt.Errorf("invalid digest cron expression %q", expr)
		}
	}
	return nil
}

// parseChatIDs parses a comma-separated chat ID list, skipping junk entries.
func parseChatIDs(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
