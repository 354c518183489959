package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
)

func TestDecodeSettingsTOML(t *testing.T) {
	data := []byte(`
timeout = "45s"
follow_redirects = false
streaming = true
proxy = "http://proxy.local:8080"

[[global_headers]]
key = "X-Env"
value = "staging"

[[global_headers]]
key = "X-Off"
value = "ignored"
disabled = true

[history]
path = "/tmp/pl-history.db"
max_entries = 50

[auth]
enabled = true
app_id = "app123"
secret_key = "s3cret"
`)
	settings, err := decodeSettings(data, SettingsFormatTOML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	opts := settings.RequestOptions()
	if opts.Timeout != 45*time.Second {
		t.Fatalf("unexpected timeout %s", opts.Timeout)
	}
	if opts.FollowRedirects {
		t.Fatalf("follow_redirects not applied")
	}
	if opts.ProxyURL != "http://proxy.local:8080" {
		t.Fatalf("unexpected proxy %q", opts.ProxyURL)
	}

	headers := settings.GlobalHeaderList()
	if len(headers) != 2 || headers[0].Key != "X-Env" || headers[1].Enabled {
		t.Fatalf("unexpected headers %#v", headers)
	}

	auth := settings.AuthConfig()
	if !auth.Active() || auth.AppID != "app123" {
		t.Fatalf("unexpected auth %#v", auth)
	}
	if settings.History.MaxEntries != 50 {
		t.Fatalf("unexpected history settings %#v", settings.History)
	}
}

func TestDecodeSettingsJSON(t *testing.T) {
	data := []byte(`{"timeout":"10s","insecure":true,"history":{"max_entries":10}}`)
	settings, err := decodeSettings(data, SettingsFormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings.RequestOptions().Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout")
	}
	if !settings.Insecure {
		t.Fatalf("insecure flag not applied")
	}
	if settings.History.MaxEntries != 10 {
		t.Fatalf("unexpected history settings %#v", settings.History)
	}
	// defaults survive for fields the file does not set
	if !settings.FollowRedirects {
		t.Fatalf("defaults should remain for unset fields")
	}
}

func TestDecodeSettingsBadTimeoutFallsBack(t *testing.T) {
	settings := DefaultSettings()
	settings.Timeout = "not-a-duration"
	if settings.RequestOptions().Timeout != 30*time.Second {
		t.Fatalf("bad timeout should fall back to the default")
	}
}

func TestSaveAndReloadSettings(t *testing.T) {
	dir := t.TempDir()
	handle := SettingsHandle{
		Path:   filepath.Join(dir, "settings.toml"),
		Format: SettingsFormatTOML,
	}

	settings := DefaultSettings()
	settings.Timeout = "12s"
	settings.Streaming = true
	settings.GlobalHeaders = []HeaderSetting{{Key: "X-Env", Value: "ci"}}

	if err := SaveSettings(settings, handle); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(handle.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	restored, err := decodeSettings(data, SettingsFormatTOML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if restored.Timeout != "12s" || !restored.Streaming {
		t.Fatalf("round trip lost fields: %#v", restored)
	}
	if len(restored.GlobalHeaders) != 1 || restored.GlobalHeaders[0].Key != "X-Env" {
		t.Fatalf("headers lost: %#v", restored.GlobalHeaders)
	}
}

func TestSettingsErrorsCarrySettingsCode(t *testing.T) {
	if _, err := decodeSettings(nil, SettingsFormat("ini")); !errdef.IsCode(err, errdef.CodeSettings) {
		t.Fatalf("unsupported format should carry the settings code: %v", err)
	}

	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	handle := SettingsHandle{
		Path:   filepath.Join(blocker, "sub", "settings.toml"),
		Format: SettingsFormatTOML,
	}
	if err := SaveSettings(DefaultSettings(), handle); !errdef.IsCode(err, errdef.CodeSettings) {
		t.Fatalf("save failure should carry the settings code: %v", err)
	}
}

func TestDecodeSettingsToleratesUnknownFields(t *testing.T) {
	data := []byte("timeout = \"5s\"\nfuture_knob = true\n")
	settings, err := decodeSettings(data, SettingsFormatTOML)
	if err != nil {
		t.Fatalf("unknown fields must not fail decoding: %v", err)
	}
	if settings.Timeout != "5s" {
		t.Fatalf("unexpected timeout %q", settings.Timeout)
	}
}
