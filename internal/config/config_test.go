package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"telegram": {
			"botUsername": "@test_bot",
			"botToken": "123456:ABCDEF",
			"inboundUrl": "https://example.org/updates",
			"webhook": {"port": 8081}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotUsername != "@test_bot" {
		t.Errorf("botUsername = %q", cfg.Telegram.BotUsername)
	}
	if cfg.Telegram.Webhook.Port != 8081 {
		t.Errorf("port = %d", cfg.Telegram.Webhook.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Telegram.BaseURL == "" {
		t.Error("baseUrl default should survive a partial config")
	}
	if cfg.Dedup.RetentionSeconds != DefaultRetentionSeconds {
		t.Errorf("retention = %d", cfg.Dedup.RetentionSeconds)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  botUsername: "@yaml_bot"
  botToken: "123456:ABCDEF"
  webhook:
    port: 8082
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotUsername != "@yaml_bot" {
		t.Errorf("botUsername = %q", cfg.Telegram.BotUsername)
	}
	if cfg.Telegram.Webhook.Port != 8082 {
		t.Errorf("port = %d", cfg.Telegram.Webhook.Port)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "999:SECRET")

	path := writeConfig(t, "config.json", `{
		"telegram": {
			"botToken": "${TEST_BOT_TOKEN}",
			"botUsername": "${TEST_BOT_NAME:-@fallback_bot}"
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "999:SECRET" {
		t.Errorf("botToken = %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.BotUsername != "@fallback_bot" {
		t.Errorf("botUsername = %q, want the default", cfg.Telegram.BotUsername)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TGBRIDGE_TEST_VAR", "value")

	tests := []struct {
		in, want string
	}{
		{"${TGBRIDGE_TEST_VAR}", "value"},
		{"${TGBRIDGE_TEST_UNSET:-fallback}", "fallback"},
		{"${TGBRIDGE_TEST_VAR:-fallback}", "value"},
		{"${TGBRIDGE_TEST_UNSET}", "${TGBRIDGE_TEST_UNSET}"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"telegram": {"webhook": {"path": "no-leading-slash"}}
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "webhook.path") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.Telegram.BaseURL = ""
	cfg.Dedup.RetentionSeconds = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"baseUrl", "retentionSeconds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Defaults()
	cfg.Telegram.BotUsername = "@round_bot"
	cfg.Telegram.BotToken = "1:TOK"

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Telegram.BotUsername != "@round_bot" {
		t.Errorf("botUsername = %q", loaded.Telegram.BotUsername)
	}
}

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Webhook.Port = 7070

	got, err := GetByPath(cfg, "telegram.webhook.port")
	if err != nil {
		t.Fatal(err)
	}
	if got != float64(7070) {
		t.Errorf("port = %v (%T)", got, got)
	}

	if _, err := GetByPath(cfg, "telegram.nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetByPath(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "telegram.webhook.port", "7071"); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Webhook.Port != 7071 {
		t.Errorf("port = %d; string values should coerce", cfg.Telegram.Webhook.Port)
	}

	if err := SetByPath(cfg, "metrics.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if !cfg.Metrics.Enabled {
		t.Error("enabled should coerce to bool")
	}
}

func TestSanitize(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.BotToken = "123456789:ABCDEFGHIJK"

	masked := Sanitize(cfg)
	if masked.Telegram.BotToken == cfg.Telegram.BotToken {
		t.Error("token should be masked")
	}
	if !strings.HasPrefix(masked.Telegram.BotToken, "1234") {
		t.Errorf("masked token = %q", masked.Telegram.BotToken)
	}
	if strings.Contains(masked.Telegram.BotToken, "ABCDEFG") {
		t.Errorf("masked token leaks the secret: %q", masked.Telegram.BotToken)
	}
	// Original untouched.
	if cfg.Telegram.BotToken != "123456789:ABCDEFGHIJK" {
		t.Error("sanitize must not mutate the original")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("ExpandPath = %q", got)
	}
}
