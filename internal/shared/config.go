package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Library     LibraryConfig     `toml:"library"`
	Auth        AuthConfig        `toml:"auth"`
	Player      PlayerConfig      `toml:"player"`
	Narration   NarrationConfig   `toml:"narration"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Download    DownloadConfig    `toml:"download"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google GoogleConfig `toml:"google"`
}

// GoogleConfig contains the OAuth client and the static API key used for public links.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIKey       string `toml:"api_key"`
}

// LibraryConfig locates the stories on Drive.
type LibraryConfig struct {
	RootFolderName string `toml:"root_folder_name"`
	RootFolderID   string `toml:"root_folder_id"`
	TitleIndex     string `toml:"title_index"`
}

// AuthConfig controls the credential lifecycle.
type AuthConfig struct {
	TokenTTLMinutes      int `toml:"token_ttl_minutes"`
	CheckIntervalMinutes int `toml:"check_interval_minutes"`
	SilentTimeoutSeconds int `toml:"silent_timeout_seconds"`
}

// PlayerConfig controls the audio playback surface.
type PlayerConfig struct {
	Command               string  `toml:"command"`
	FFProbe               string  `toml:"ffprobe"`
	DefaultRate           float64 `toml:"default_rate"`
	AutoAdvance           bool    `toml:"auto_advance"`
	PrefetchWindowSeconds int     `toml:"prefetch_window_seconds"`
	SaveIntervalSeconds   int     `toml:"save_interval_seconds"`
}

// NarrationConfig controls the text-to-speech engine used by the reader.
type NarrationConfig struct {
	Command string  `toml:"command"`
	Rate    float64 `toml:"rate"`
	Voice   string  `toml:"voice"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the loopback HTTP server settings for the OAuth callback.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DownloadConfig controls offline story downloads.
type DownloadConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.Database.Path = ExpandHome(config.Database.Path)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.Database.Path = ExpandHome(config.Database.Path)
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading "~/" with the current user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// TokenTTL is the assumed lifetime of an access token counted from its issue time.
func (c AuthConfig) TokenTTL() time.Duration {
	return minutesOr(c.TokenTTLMinutes, 45)
}

// CheckInterval is the period of the background expiry check.
func (c AuthConfig) CheckInterval() time.Duration {
	return minutesOr(c.CheckIntervalMinutes, 5)
}

// SilentTimeout bounds a non-interactive renewal.
func (c AuthConfig) SilentTimeout() time.Duration {
	if c.SilentTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.SilentTimeoutSeconds) * time.Second
}

// PrefetchWindow is the remaining play time at which the next item is prefetched.
func (c PlayerConfig) PrefetchWindow() time.Duration {
	if c.PrefetchWindowSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PrefetchWindowSeconds) * time.Second
}

// SaveInterval is the period of the position snapshot while playing; capped at 5 seconds.
func (c PlayerConfig) SaveInterval() time.Duration {
	if c.SaveIntervalSeconds <= 0 || c.SaveIntervalSeconds > 5 {
		return 5 * time.Second
	}
	return time.Duration(c.SaveIntervalSeconds) * time.Second
}

// CallbackAddr is the listen address of the OAuth loopback server.
func (c ServerConfig) CallbackAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func minutesOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Minute
}
