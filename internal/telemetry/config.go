package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	envEndpoint    = "POSTMANLITE_OTEL_ENDPOINT"
	envInsecure    = "POSTMANLITE_OTEL_INSECURE"
	envService     = "POSTMANLITE_OTEL_SERVICE"
	envHeaders     = "POSTMANLITE_OTEL_HEADERS"
	envDialTimeout = "POSTMANLITE_OTEL_DIAL_TIMEOUT"

	defaultServiceName = "postmanlite"
)

type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	Headers     map[string]string
	DialTimeout time.Duration
}

// Enabled reports whether tracing should be wired at all. An empty
// endpoint means telemetry stays a noop.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads telemetry settings from the environment. getenv is
// injectable for tests; pass os.Getenv in production.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:    strings.TrimSpace(getenv(envEndpoint)),
		ServiceName: defaultServiceName,
	}

	if service := strings.TrimSpace(getenv(envService)); service != "" {
		cfg.ServiceName = service
	}

	if raw := strings.TrimSpace(getenv(envInsecure)); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Insecure = parsed
		}
	}

	if raw := strings.TrimSpace(getenv(envDialTimeout)); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.DialTimeout = parsed
		}
	}

	if headers, err := ParseHeaders(getenv(envHeaders)); err == nil {
		cfg.Headers = headers
	}

	return cfg
}

// ParseHeaders parses "key=value, key2=value2" into a header map.
// Whitespace around keys and values is trimmed; empty values are kept.
func ParseHeaders(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid header pair %q", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return headers, nil
}
