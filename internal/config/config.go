package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the mbedecode service configuration
type Config struct {
	filename string

	Server   ServerConfig   `yaml:"server"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains the HTTP / websocket listener settings
type ServerConfig struct {
	Address        string   `yaml:"address"`
	Name           string   `yaml:"name"`
	MDNS           bool     `yaml:"mdns"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DecoderConfig selects the decoder driver and its device settings
type DecoderConfig struct {
	Driver          string `yaml:"driver"`
	UnvoicedQuality int    `yaml:"unvoiced_quality"`
	MaxSessions     int    `yaml:"max_sessions"`
	MaxQueuedFrames int    `yaml:"max_queued_frames"`
}

// DatabaseConfig contains the session journal settings
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Debug   bool   `yaml:"debug"`
	// Sessions older than this many hours are pruned; 0 keeps everything
	RetentionHours int `yaml:"retention_hours"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// NewConfig creates a new configuration instance
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,
		// Set reasonable defaults
		Server: ServerConfig{
			Address:        ":8930",
			Name:           "mbedecode",
			AllowedOrigins: []string{"*"},
		},
		Decoder: DecoderConfig{
			Driver:          "mbelib",
			UnvoicedQuality: 3,
			MaxSessions:     64,
		},
		Database: DatabaseConfig{
			Enabled:        false,
			Path:           "data/sessions.db",
			RetentionHours: 24 * 7,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from the specified file
func (c *Config) Load() error {
	file, err := os.Open(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %v", c.filename, err)
	}
	defer file.Close()

	return c.parseYAML(file)
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	return c.parseYAML(strings.NewReader(data))
}

func (c *Config) parseYAML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", c.filename, err)
	}

	return nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address cannot be empty"))
	}
	if c.Decoder.Driver == "" {
		errs = append(errs, errors.New("decoder.driver cannot be empty"))
	}
	if c.Decoder.UnvoicedQuality < 1 || c.Decoder.UnvoicedQuality > 64 {
		errs = append(errs, fmt.Errorf("decoder.unvoiced_quality must be between 1 and 64, got %d", c.Decoder.UnvoicedQuality))
	}
	if c.Decoder.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("decoder.max_sessions must be at least 1, got %d", c.Decoder.MaxSessions))
	}
	if c.Decoder.MaxQueuedFrames < 0 {
		errs = append(errs, fmt.Errorf("decoder.max_queued_frames cannot be negative, got %d", c.Decoder.MaxQueuedFrames))
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path cannot be empty when the database is enabled"))
	}
	if c.Database.RetentionHours < 0 {
		errs = append(errs, fmt.Errorf("database.retention_hours cannot be negative, got %d", c.Database.RetentionHours))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must be absolute, got %q", c.Metrics.Path))
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Errorf("server.allowed_origins entry %q must be \"*\" or an http(s) origin", origin))
		}
	}

	return errors.Join(errs...)
}

// DriverConfig renders the decoder section as the flat map a driver is
// built from
func (c *Config) DriverConfig() map[string]string {
	cfg := map[string]string{
		"unvoiced_quality": strconv.Itoa(c.Decoder.UnvoicedQuality),
		"debug":            strconv.FormatBool(c.Log.Debug),
	}
	if c.Decoder.MaxQueuedFrames > 0 {
		cfg["max_queued_frames"] = strconv.Itoa(c.Decoder.MaxQueuedFrames)
	}
	return cfg
}

// Getter methods
func (c *Config) GetFilename() string          { return c.filename }
func (c *Config) GetAddress() string           { return c.Server.Address }
func (c *Config) GetName() string              { return c.Server.Name }
func (c *Config) GetMDNS() bool                { return c.Server.MDNS }
func (c *Config) GetAllowedOrigins() []string  { return c.Server.AllowedOrigins }
func (c *Config) GetDriver() string            { return c.Decoder.Driver }
func (c *Config) GetUnvoicedQuality() int      { return c.Decoder.UnvoicedQuality }
func (c *Config) GetMaxSessions() int          { return c.Decoder.MaxSessions }
func (c *Config) GetDatabaseEnabled() bool     { return c.Database.Enabled }
func (c *Config) GetDatabasePath() string      { return c.Database.Path }
func (c *Config) GetDatabaseDebug() bool       { return c.Database.Debug }
func (c *Config) GetRetentionHours() int       { return c.Database.RetentionHours }
func (c *Config) GetMetricsEnabled() bool      { return c.Metrics.Enabled }
func (c *Config) GetMetricsPath() string       { return c.Metrics.Path }
func (c *Config) GetLogDebug() bool            { return c.Log.Debug }
func (c *Config) GetLogFile() string           { return c.Log.File }
