// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Default values applied by DefaultConfig.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxRedirects   = 10
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 6.0) AppleWebKit/537.1 (KHTML, like Gecko) Chrome/21.0.1180.89 Safari/537.1"
	DefaultPollInterval   = 2 * time.Second
	DefaultPollMaxDelay   = 30 * time.Second
)

// ServiceConfig locates the remote conversion service.
type ServiceConfig struct {
	// URL is the base URL of the conversion web service
	// (e.g. "https://convert.example.com/"). Empty means unconfigured.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// StrictReadiness reports any non-200 probe response as an error
	// instead of treating it as reachable.
	StrictReadiness bool `json:"strict_readiness" yaml:"strict_readiness" mapstructure:"strict_readiness"`

	// Token is an optional bearer token sent with every request. Usually
	// loaded from .secrets/service-token rather than the config file.
	Token string `json:"-" yaml:"-" mapstructure:"token"`
}

// HTTPConfig holds the transport policy shared by every request.
type HTTPConfig struct {
	// ConnectTimeout bounds connection establishment (default 10s).
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// MaxRedirects is the number of redirects followed (default 10).
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects" mapstructure:"max_redirects"`

	// UserAgent is the fixed User-Agent header.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig controls the capability cache.
type CacheConfig struct {
	// FormatsTTL is how long the supported-format list is kept. Zero keeps it
	// until explicitly invalidated.
	FormatsTTL time.Duration `json:"formats_ttl" yaml:"formats_ttl" mapstructure:"formats_ttl"`
}

// StorageConfig holds the local host storage locations.
type StorageConfig struct {
	// Dir is the base directory for stored sources and artifacts.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// ScratchDir holds per-operation staging directories. Defaults to a
	// directory under the system temp dir.
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir" mapstructure:"scratch_dir"`

	// Database is the SQLite job database path. Empty means jobs.db
	// inside Dir.
	Database string `json:"database" yaml:"database" mapstructure:"database"`
}

// PollConfig paces the caller-side poll loop.
type PollConfig struct {
	// Interval is the delay before the second poll; it doubles afterwards.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxInterval caps the delay between polls.
	MaxInterval time.Duration `json:"max_interval" yaml:"max_interval" mapstructure:"max_interval"`

	// MaxAttempts stops polling after this many calls. Zero means no limit.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// LocalServiceConfig describes a conversion service run in a local
// container by "docconv service start".
type LocalServiceConfig struct {
	// Image is the service image. Required for service start.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Name is the container name (default docconv-service).
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Port is the host port published on 127.0.0.1 (default 3000).
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// ContainerPort is the port the service listens on inside the
	// container (default 3000).
	ContainerPort int `json:"container_port" yaml:"container_port" mapstructure:"container_port"`
}

// Config groups all settings for the conversion client.
type Config struct {
	Service ServiceConfig `json:"service" yaml:"service" mapstructure:"service"`
	HTTP    HTTPConfig    `json:"http" yaml:"http" mapstructure:"http"`
	Cache   CacheConfig   `json:"cache" yaml:"cache" mapstructure:"cache"`
	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Poll    PollConfig    `json:"poll" yaml:"poll" mapstructure:"poll"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`

	Local LocalServiceConfig `json:"local" yaml:"local" mapstructure:"local"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			ConnectTimeout: DefaultConnectTimeout,
			MaxRedirects:   DefaultMaxRedirects,
			UserAgent:      DefaultUserAgent,
		},
		Cache: CacheConfig{
			FormatsTTL: time.Hour,
		},
		Storage: StorageConfig{
			Dir: "data",
		},
		Poll: PollConfig{
			Interval:    DefaultPollInterval,
			MaxInterval: DefaultPollMaxDelay,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Local: LocalServiceConfig{
			Name:          "docconv-service",
			Port:          3000,
			ContainerPort: 3000,
		},
	}
}
