package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("GEOSEEK_SERVER", "http://localhost:3000"),
		Output:    "text",
		Verbose:   false,
	}
}

// WebsocketURL returns the realtime endpoint for the configured server
func (c *Config) WebsocketURL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.ServerURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
