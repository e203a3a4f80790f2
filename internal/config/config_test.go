package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON5WithComments(t *testing.T) {
	path := writeConfig(t, `{
		// who may talk to the bot
		allowedChatIds: [100, 200],
		rateLimitWindowMs: 2000,
		timezone: "Europe/Madrid",
		qbittorrent: { host: "nas", port: 9090 },
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg.AllowedChatIDs, []int64{100, 200}) {
		t.Errorf("AllowedChatIDs = %v", cfg.AllowedChatIDs)
	}
	if cfg.RateLimitWindow() != 2*time.Second {
		t.Errorf("RateLimitWindow = %v, want 2s", cfg.RateLimitWindow())
	}
	if cfg.Location().String() != "Europe/Madrid" {
		t.Errorf("Location = %v", cfg.Location())
	}
	if cfg.Qbt.Host != "nas" || cfg.Qbt.Port != 9090 {
		t.Errorf("Qbt = %+v", cfg.Qbt)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RateLimitWindow() != DefaultRateLimitWindow {
		t.Errorf("RateLimitWindow = %v", cfg.RateLimitWindow())
	}
	if cfg.GrantTTL() != DefaultGrantTTL {
		t.Errorf("GrantTTL = %v", cfg.GrantTTL())
	}
	if cfg.CacheTTL() != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL())
	}
	if cfg.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.AuditCapacity != DefaultAuditCapacity {
		t.Errorf("AuditCapacity = %d", cfg.AuditCapacity)
	}
	if cfg.Digests.GameOffersCron != "0 20 * * *" {
		t.Errorf("GameOffersCron = %q", cfg.Digests.GameOffersCron)
	}
	if cfg.Digests.HackerNewsCron != "0 8 * * *" {
		t.Errorf("HackerNewsCron = %q", cfg.Digests.HackerNewsCron)
	}
	if cfg.Docker.Socket != "/var/run/docker.sock" {
		t.Errorf("Docker.Socket = %q", cfg.Docker.Socket)
	}
	if !reflect.DeepEqual(cfg.WatchPaths, []string{"/"}) {
		t.Errorf("WatchPaths = %v", cfg.WatchPaths)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("TELEOPS_BOT_TOKEN", "tok-123")
	t.Setenv("TELEOPS_ALLOWED_CHAT_IDS", "1, 2,junk, 3")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotToken != "tok-123" {
		t.Errorf("BotToken = %q", cfg.BotToken)
	}
	if !reflect.DeepEqual(cfg.AllowedChatIDs, []int64{1, 2, 3}) {
		t.Errorf("AllowedChatIDs = %v", cfg.AllowedChatIDs)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TELEOPS_TOTP_SECRET", "ENVSECRET")
	path := writeConfig(t, `{totpSecret: "filesecret"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TOTPSecret != "ENVSECRET" {
		t.Errorf("TOTPSecret = %q, want env value", cfg.TOTPSecret)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad timezone": `{timezone: "Mars/Olympus"}`,
		"bad cron":     `{digests: {gameOffersCron: "99 99 * * *"}}`,
		"short cron":   `{digests: {hackerNewsCron: "* * *"}}`,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: Load accepted %s", name, content)
		}
	}
}

func TestAllowed(t *testing.T) {
	cfg := &Config{AllowedChatIDs: []int64{7}}
	if !cfg.Allowed(7) {
		t.Error("allowed chat rejected")
	}
	if cfg.Allowed(8) {
		t.Error("unknown chat accepted")
	}
	if (&Config{}).Allowed(7) {
		t.Error("empty allow-list accepted a chat")
	}
}
