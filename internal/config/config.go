package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Languages LanguagesConfig `mapstructure:"languages"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host" validate:"required"`
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
}

// BackendConfig describes the remote transcription/translation service.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	HealthTimeout  time.Duration `mapstructure:"health_timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"min=0"`
	RetryWait      time.Duration `mapstructure:"retry_wait" validate:"gt=0"`
	// RetryClientErrors keeps retrying 4xx responses. The mobile app always did.
	RetryClientErrors bool `mapstructure:"retry_client_errors"`
	// RequireOnline refuses new recordings while the last probe said offline.
	RequireOnline bool `mapstructure:"require_online"`
}

type LanguagesConfig struct {
	Supported []string `mapstructure:"supported" validate:"min=1,dive,required"`
	Default   string   `mapstructure:"default" validate:"required"`
}

type StorageConfig struct {
	Driver        string         `mapstructure:"driver" validate:"oneof=memory sqlite mysql postgres redis mongo"`
	EncryptionKey string         `mapstructure:"encryption_key"`
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	MySQL         MySQLConfig    `mapstructure:"mysql"`
	Database      DatabaseConfig `mapstructure:"database"`
	Redis         RedisConfig    `mapstructure:"redis"`
	Mongo         MongoConfig    `mapstructure:"mongo"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type AudioConfig struct {
	RecordingsDir  string `mapstructure:"recordings_dir" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	PairingCodeHash string        `mapstructure:"pairing_code_hash"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// Enabled reports whether bearer auth guards the API.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format" validate:"oneof=json console"`
	File   string        `mapstructure:"file"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile makes viper report a missing file as a plain fs error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	found := false
	for _, lang := range c.Languages.Supported {
		if lang == c.Languages.Default {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid configuration: default language %q is not in supported languages", c.Languages.Default)
	}

	if c.Storage.EncryptionKey != "" && len(c.Storage.EncryptionKey) != 32 {
		return fmt.Errorf("invalid configuration: storage.encryption_key must be 32 bytes, got %d", len(c.Storage.EncryptionKey))
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "200s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "190s")

	// Backend
	v.SetDefault("backend.base_url", "https://iliyadindar.site")
	v.SetDefault("backend.request_timeout", "180s")
	v.SetDefault("backend.health_timeout", "5s")
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("backend.retry_wait", "1s")
	v.SetDefault("backend.retry_client_errors", true)
	v.SetDefault("backend.require_online", false)

	// Languages
	v.SetDefault("languages.supported", []string{"English", "Turkish", "Persian", "Arabic"})
	v.SetDefault("languages.default", "English")

	// Storage
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "./data/tnt.db")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.user", "tnt")
	v.SetDefault("storage.database.database", "tnt")
	v.SetDefault("storage.database.ssl_mode", "disable")
	v.SetDefault("storage.database.max_conns", 5)
	v.SetDefault("storage.database.min_conns", 1)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "tnt:")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "tnt")
	v.SetDefault("storage.mongo.collection", "kv")

	// Audio
	v.SetDefault("audio.recordings_dir", "./data/recordings")
	v.SetDefault("audio.max_upload_bytes", 50<<20)

	// Auth
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "720h") // 30 days

	// Security
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests_per_minute", 20)
	v.SetDefault("security.rate_limit.burst", 5)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_age", "168h")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// Backend
	v.BindEnv("backend.base_url", "TNT_BACKEND_URL")
	v.BindEnv("backend.api_key", "TNT_API_KEY")

	// Storage
	v.BindEnv("storage.driver", "TNT_STORAGE_DRIVER")
	v.BindEnv("storage.encryption_key", "TNT_STORAGE_KEY")
	v.BindEnv("storage.mysql.dsn", "MYSQL_DSN")
	v.BindEnv("storage.database.password", "POSTGRES_PASSWORD")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.mongo.uri", "MONGO_URI")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.pairing_code_hash", "TNT_PAIRING_CODE_HASH")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
}
