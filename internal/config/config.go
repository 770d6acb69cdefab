package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rural-health-aid/")

	v.SetEnvPrefix("RURAL_HEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The provider key keeps the name used by the deployment scripts.
	if err := v.BindEnv("inference.api_key", "RURAL_HEALTH_INFERENCE_API_KEY", "NEBIUS_API_KEY"); err != nil {
		return fmt.Errorf("binding inference api key: %w", err)
	}

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "55s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.driver", domain.StorageMemory)
	v.SetDefault("storage.sqlite_path", "./data/rural-health.db")
	v.SetDefault("storage.seed_data", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "rural_health")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle", "30m")
	v.SetDefault("database.migrations_path", "./migrations")

	// Inference defaults
	v.SetDefault("inference.base_url", "https://api.studio.nebius.com/v1/")
	v.SetDefault("inference.model", "google/gemma-3-27b-it")
	v.SetDefault("inference.timeout", "30s")
	v.SetDefault("inference.max_tokens", 1024)
	v.SetDefault("inference.temperature", 0.3)
	v.SetDefault("inference.top_p", 0.9)
	v.SetDefault("inference.top_k", 50)
	v.SetDefault("inference.json_mode", false)
	v.SetDefault("inference.rate_limit", 2.0)
	v.SetDefault("inference.breaker.max_requests", 1)
	v.SetDefault("inference.breaker.interval", "60s")
	v.SetDefault("inference.breaker.timeout", "30s")
	v.SetDefault("inference.breaker.min_requests", 3)
	v.SetDefault("inference.breaker.failure_ratio", 0.6)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.memory_size", 256)
	v.SetDefault("cache.memory_ttl", "15m")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Upload defaults
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.public_path", "/uploads")
	v.SetDefault("upload.max_file_size", 10485760)
	v.SetDefault("upload.max_dimension", 1024)
	v.SetDefault("upload.max_pixels", 50000000)
	v.SetDefault("upload.jpeg_quality", 85)
	v.SetDefault("upload.store", domain.ImageStoreLocal)
	v.SetDefault("upload.s3_prefix", "diagnosis-images/")
	v.SetDefault("upload.s3_region", "ap-south-1")

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.referral_topic", "diagnosis.referred")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetInferenceConfig returns the inference client configuration
func (m *Manager) GetInferenceConfig() *domain.InferenceConfig {
	return &m.config.Inference
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Driver {
	case domain.StorageMemory:
	case domain.StorageSQLite:
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite storage driver")
		}
	case domain.StoragePostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", config.Storage.Driver)
	}

	if _, err := url.ParseRequestURI(config.Inference.BaseURL); err != nil {
		return fmt.Errorf("invalid inference base URL %q: %w", config.Inference.BaseURL, err)
	}
	if config.Inference.Model == "" {
		return fmt.Errorf("inference model is required")
	}
	if config.Inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}
	if config.Inference.MaxTokens <= 0 {
		return fmt.Errorf("inference max_tokens must be positive")
	}

	if config.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload max_file_size must be positive")
	}
	if config.Upload.MaxPixels <= 0 {
		return fmt.Errorf("upload max_pixels must be positive")
	}
	if config.Upload.JPEGQuality < 1 || config.Upload.JPEGQuality > 100 {
		return fmt.Errorf("upload jpeg_quality must be between 1 and 100")
	}
	switch config.Upload.Store {
	case domain.ImageStoreLocal:
	case domain.ImageStoreS3:
		if config.Upload.S3Bucket == "" {
			return fmt.Errorf("upload s3_bucket is required for the s3 image store")
		}
	default:
		return fmt.Errorf("unknown image store: %s", config.Upload.Store)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" && config.Cache.MemorySize <= 0 {
		return fmt.Errorf("cache enabled but neither redis_url nor memory_size is set")
	}

	if config.Events.Enabled && len(config.Events.Brokers) == 0 {
		return fmt.Errorf("events enabled but no brokers configured")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database URL used by the migration runner
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
