package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	App         AppConfig         `toml:"app"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Paths       PathsConfig       `toml:"paths"`

	// sources records where overridable settings came from ("config", "env", "token store")
	sources map[string]string
}

// AppConfig contains process-wide settings.
type AppConfig struct {
	LogLevel string `toml:"log_level"`
	DevMode  bool   `toml:"dev_mode"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Discogs DiscogsConfig `toml:"discogs"`
	Tidal   TidalConfig   `toml:"tidal"`
}

// DiscogsConfig contains the Discogs personal access token and the User-Agent Discogs requires.
type DiscogsConfig struct {
	Token     string `toml:"token"`
	UserAgent string `toml:"user_agent"`
}

// TidalConfig contains Tidal OAuth2 client credentials.
type TidalConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	CountryCode  string `toml:"country_code"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SyncConfig contains matching and reconciliation tuning.
type SyncConfig struct {
	PlaylistName     string  `toml:"playlist_name"`
	BaseName         string  `toml:"base_name"`
	MaxTracks        int     `toml:"max_tracks"`
	SearchTimeout    int     `toml:"search_timeout"` // seconds, per target-service call
	SearchRetryCount int     `toml:"search_retry_count"`
	Workers          int     `toml:"workers"`
	RateLimit        float64 `toml:"rate_limit"` // target-service requests per second
	ReportDir        string  `toml:"report_dir"`
}

// Timeout returns SearchTimeout as a [time.Duration].
func (s SyncConfig) Timeout() time.Duration {
	return time.Duration(s.SearchTimeout) * time.Second
}

// PathsConfig contains on-disk locations.
type PathsConfig struct {
	TokensDir string `toml:"tokens_dir"`
	LogFile   string `toml:"log_file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}
	config.markSources("config")

	return config, nil
}

// LoadOrDefault loads the config at path when it exists and falls back to [DefaultConfig] otherwise,
// then applies environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.sources = map[string]string{}
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

// Validate checks value ranges and returns a single [ErrConfiguration] listing every problem.
func (c *Config) Validate() error {
	var problems []string

	if c.Sync.MaxTracks < 0 {
		problems = append(problems, "sync.max_tracks must be >= 0")
	}
	if c.Sync.SearchTimeout <= 0 {
		problems = append(problems, "sync.search_timeout must be > 0")
	}
	if c.Sync.SearchRetryCount < 0 {
		problems = append(problems, "sync.search_retry_count must be >= 0")
	}
	if c.Sync.Workers < 1 || c.Sync.Workers > 16 {
		problems = append(problems, "sync.workers must be between 1 and 16")
	}
	if c.Sync.RateLimit <= 0 {
		problems = append(problems, "sync.rate_limit must be > 0")
	}
	if strings.TrimSpace(c.Sync.PlaylistName) == "" {
		problems = append(problems, "sync.playlist_name must not be empty")
	}
	if strings.TrimSpace(c.Sync.BaseName) == "" {
		problems = append(problems, "sync.base_name must not be empty")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, ", "))
	}
	return nil
}

// RequireDiscogs fails with [ErrMissingCredentials] when no Discogs token is available.
func (c *Config) RequireDiscogs() error {
	if strings.TrimSpace(c.Credentials.Discogs.Token) == "" {
		return fmt.Errorf("%w: DISCOGS_TOKEN is required (set it in .env, config.toml or run discogs-auth)", ErrMissingCredentials)
	}
	return nil
}

// RequireTidal fails with [ErrMissingCredentials] when the Tidal client id is not configured.
func (c *Config) RequireTidal() error {
	if strings.TrimSpace(c.Credentials.Tidal.ClientID) == "" {
		return fmt.Errorf("%w: credentials.tidal.client_id is required", ErrMissingCredentials)
	}
	return nil
}

// ResolveDiscogsToken fills in the Discogs token from the token store when neither the config file nor the
// environment provided one.
func (c *Config) ResolveDiscogsToken(store *TokenStore) error {
	if c.Credentials.Discogs.Token != "" || store == nil {
		return nil
	}

	token, err := store.LoadDiscogsToken()
	if errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	c.Credentials.Discogs.Token = token
	c.setSource("discogs_token", "token store")
	return nil
}

// Source reports where the named setting was loaded from, or "default".
func (c *Config) Source(key string) string {
	if src, ok := c.sources[key]; ok {
		return src
	}
	return "default"
}

func (c *Config) setSource(key, src string) {
	if c.sources == nil {
		c.sources = map[string]string{}
	}
	c.sources[key] = src
}

func (c *Config) markSources(src string) {
	if c.Credentials.Discogs.Token != "" {
		c.setSource("discogs_token", src)
	}
	if c.Credentials.Tidal.ClientID != "" {
		c.setSource("tidal_client_id", src)
	}
}
