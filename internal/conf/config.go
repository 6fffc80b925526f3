// Package conf loads and provides access to application settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// RotationType defines the log rotation strategy.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Log rotation type
	MaxSize     int64        // Max log size in bytes for size rotation
	RotationDay time.Weekday // Day of the week for weekly rotation
}

// WebServerSettings configures the HTTP API server.
type WebServerSettings struct {
	Enabled bool      // true to enable web server
	Host    string    // host address to bind to
	Port    string    // port to listen on
	Debug   bool      // true to enable debug logging of requests
	Log     LogConfig // web server log settings
}

// SQLiteSettings configures the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to the database file
}

// MySQLSettings configures the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SecuritySettings configures sessions, CSRF and rate limiting.
type SecuritySettings struct {
	SessionSecret   string   // secret used to sign session cookies
	SessionDuration int      // session lifetime in hours
	SecureCookies   bool     // true to mark session cookies Secure
	BcryptCost      int      // work factor for password hashing
	AllowedOrigins  []string // CORS allowed origins
	RateLimit       struct {
		Enabled bool    // true to rate limit login attempts
		RPS     float64 // sustained requests per second per client IP
		Burst   int     // burst size per client IP
	}
}

// ImageStoreSettings configures presigned image upload/download URLs.
type ImageStoreSettings struct {
	Enabled       bool   // true to enable image storage endpoints
	Bucket        string // S3 bucket name
	Region        string // AWS region
	Endpoint      string // optional custom S3 endpoint (e.g. MinIO)
	AccessKey     string // optional static access key, default credential chain when empty
	SecretKey     string // optional static secret key
	URLExpiration int    // presigned URL lifetime in seconds
	MaxUploadSize int64  // maximum upload size in bytes
}

// NotificationSettings configures outbound notifications.
type NotificationSettings struct {
	Enabled bool     // true to enable notification dispatch
	Debug   bool     // true to enable debug logging
	URLs    []string // shoutrrr service URLs (smtp://, discord://, ...)
}

// SearchSettings tunes the advanced search service.
type SearchSettings struct {
	CacheTTL       int // result cache TTL in seconds
	HistorySize    int // per-user search history entries to retain
	MaxResults     int // hard cap on results per query
	DefaultPerPage int // default page size
}

// ImportSettings tunes the CSV import pipeline.
type ImportSettings struct {
	MaxRows     int  // reject files with more data rows than this
	MaxFileSize int  // maximum upload size in bytes
	Notify      bool // true to send a notification when an import finishes
}

// Settings contains all runtime configuration for the application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this Fancy Planties node
		Log  LogConfig // main logging configuration
	}

	WebServer    WebServerSettings
	Database     DatabaseSettings
	Security     SecuritySettings
	ImageStore   ImageStoreSettings
	Notification NotificationSettings
	Search       SearchSettings
	Import       ImportSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings
// instance and stores it as the package singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment variables override file values, e.g. PLANTIES_DATABASE_MYSQL_PASSWORD
	viper.SetEnvPrefix("planties")
	viper.AutomaticEnv()

	// Set default values for each configuration parameter,
	// defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, yamlData, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("Created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in order of precedence.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	// Current working directory first
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, wd)
	}

	// Then the OS user config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		if len(paths) == 0 {
			return nil, fmt.Errorf("error resolving user config dir: %w", err)
		}
		return paths, nil
	}
	paths = append(paths, filepath.Join(configDir, "fancy-planties"))

	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the settings singleton, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SetTestSettings replaces the settings singleton. Intended for tests only.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}

// GetBasePath resolves a possibly-relative directory path against the working
// directory and ensures it exists.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.Printf("Failed to create directory %s: %v", path, err)
	}
	return path
}
