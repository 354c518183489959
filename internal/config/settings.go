package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/httpclient"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
)

const (
	SettingsFormatTOML SettingsFormat = "toml"
	SettingsFormatJSON SettingsFormat = "json"
)

type SettingsFormat string

type SettingsHandle struct {
	Path   string
	Format SettingsFormat
}

type HeaderSetting struct {
	Key      string `json:"key"      toml:"key"`
	Value    string `json:"value"    toml:"value"`
	Disabled bool   `json:"disabled" toml:"disabled"`
}

type HistorySettings struct {
	Path       string `json:"path"        toml:"path"`
	MaxEntries int    `json:"max_entries" toml:"max_entries"`
}

type AuthSettings struct {
	Enabled       bool   `json:"enabled"        toml:"enabled"`
	AppID         string `json:"app_id"         toml:"app_id"`
	SecretKey     string `json:"secret_key"     toml:"secret_key"`
	CredentialKey string `json:"credential_key" toml:"credential_key"`
}

type TelemetrySettings struct {
	Endpoint    string `json:"endpoint"     toml:"endpoint"`
	Insecure    bool   `json:"insecure"     toml:"insecure"`
	ServiceName string `json:"service_name" toml:"service_name"`
}

type Settings struct {
	Timeout         string            `json:"timeout"          toml:"timeout"`
	FollowRedirects bool              `json:"follow_redirects" toml:"follow_redirects"`
	Insecure        bool              `json:"insecure"         toml:"insecure"`
	Proxy           string            `json:"proxy"            toml:"proxy"`
	Streaming       bool              `json:"streaming"        toml:"streaming"`
	GlobalHeaders   []HeaderSetting   `json:"global_headers"   toml:"global_headers"`
	History         HistorySettings   `json:"history"          toml:"history"`
	Auth            AuthSettings      `json:"auth"             toml:"auth"`
	Telemetry       TelemetrySettings `json:"telemetry"        toml:"telemetry"`
}

func DefaultSettings() Settings {
	return Settings{
		Timeout:         "30s",
		FollowRedirects: true,
		History: HistorySettings{
			Path:       filepath.Join(Dir(), "history.db"),
			MaxEntries: 200,
		},
	}
}

func Dir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "postmanlite")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".postmanlite"
	}
	return filepath.Join(home, ".postmanlite")
}

// RequestOptions translates the settings into executor options. A timeout
// that fails to parse falls back to the default rather than erroring.
func (s Settings) RequestOptions() httpclient.Options {
	timeout := 30 * time.Second
	if s.Timeout != "" {
		if parsed, err := time.ParseDuration(s.Timeout); err == nil {
			timeout = parsed
		}
	}
	return httpclient.Options{
		Timeout:            timeout,
		FollowRedirects:    s.FollowRedirects,
		InsecureSkipVerify: s.Insecure,
		ProxyURL:           s.Proxy,
	}
}

func (s Settings) GlobalHeaderList() reqspec.KeyValueList {
	list := make(reqspec.KeyValueList, 0, len(s.GlobalHeaders))
	for _, header := range s.GlobalHeaders {
		entry := reqspec.NewEntry(header.Key, header.Value)
		entry.Enabled = !header.Disabled
		list = append(list, entry)
	}
	return list
}

func (s Settings) AuthConfig() reqspec.AuthConfig {
	return reqspec.AuthConfig{
		Enabled:       s.Auth.Enabled,
		AppID:         s.Auth.AppID,
		SecretKey:     s.Auth.SecretKey,
		CredentialKey: s.Auth.CredentialKey,
	}
}

// LoadSettings tries TOML first, then JSON, then returns defaults if
// neither exists. Parse errors fail immediately but missing files just skip
// to the next format. Unknown fields are tolerated so older builds can read
// files written by newer ones.
func LoadSettings() (Settings, SettingsHandle, error) {
	dir := Dir()
	candidates := []SettingsHandle{
		{Path: filepath.Join(dir, "settings.toml"), Format: SettingsFormatTOML},
		{Path: filepath.Join(dir, "settings.json"), Format: SettingsFormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				errdef.Wrap(errdef.CodeSettings, err, "read settings %q", candidate.Path),
			)
			continue
		}

		settings, err := decodeSettings(data, candidate.Format)
		if err != nil {
			return Settings{}, SettingsHandle{}, errdef.Wrap(
				errdef.CodeSettings,
				err,
				"parse settings %q",
				candidate.Path,
			)
		}
		return settings, candidate, nil
	}

	if accumulated != nil {
		return Settings{}, SettingsHandle{}, accumulated
	}

	return DefaultSettings(), SettingsHandle{
		Path:   candidates[0].Path,
		Format: SettingsFormatTOML,
	}, nil
}

func decodeSettings(data []byte, format SettingsFormat) (Settings, error) {
	settings := DefaultSettings()
	switch format {
	case SettingsFormatTOML:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	case SettingsFormatJSON:
		if err := json.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, errdef.New(errdef.CodeSettings, "unsupported settings format %q", format)
	}
	return settings, nil
}

func SaveSettings(settings Settings, handle SettingsHandle) error {
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = SettingsFormatTOML
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeSettings, err, "ensure settings directory")
	}

	var (
		data []byte
		err  error
	)

	switch format {
	case SettingsFormatTOML:
		data, err = toml.Marshal(settings)
	case SettingsFormatJSON:
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(settings); err == nil {
			data = buffer.Bytes()
		}
	default:
		return errdef.New(errdef.CodeSettings, "unsupported settings format %q", format)
	}
	if err != nil {
		return errdef.Wrap(errdef.CodeSettings, err, "encode settings")
	}

	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeSettings, err, "write settings %q", path)
	}
	return nil
}

// write to temp file then rename so readers never see partial/corrupt data.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".postmanlite-settings-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Chmod(perm); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
