package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server содержит настройки HTTP-сервера.
type Server struct {
	Address        string        `mapstructure:"address"`
	Debug          bool          `mapstructure:"debug"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DB содержит параметры подключения к БД журнала рендеринга.
type DB struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

// Storage описывает, откуда загружаются шаблоны.
type Storage struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"basepath"`
	S3       S3     `mapstructure:"s3"`
	Redis    Redis  `mapstructure:"redis"`
}

// S3 содержит настройки для S3-совместимого хранилища.
type S3 struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Redis содержит настройки хранилища шаблонов в Redis.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Cache настраивает кэш скомпилированных шаблонов.
type Cache struct {
	MaxSize     int           `mapstructure:"max_size"`
	TTL         time.Duration `mapstructure:"ttl"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

// Report содержит настройки конвейера рендеринга.
type Report struct {
	SingleTemplate     string            `mapstructure:"single_template"`
	CollectionTemplate string            `mapstructure:"collection_template"`
	Parameters         map[string]string `mapstructure:"parameters"`
}

// Logging содержит настройки логирования.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config объединяет все разделы конфигурации.
type Config struct {
	Server  Server  `mapstructure:"server"`
	DB      DB      `mapstructure:"database"`
	Storage Storage `mapstructure:"storage"`
	Cache   Cache   `mapstructure:"cache"`
	Report  Report  `mapstructure:"report"`
	Logging Logging `mapstructure:"logging"`
}

// Load читает конфигурацию из файла и окружения с помощью viper.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile читает конфигурацию из указанного файла. Пустой путь
// означает поиск config.yaml в стандартных директориях.
func LoadFile(path string) (Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/report-service")
	}

	// Настройка для environment variables
	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()
	bindEnvironmentVariables()

	// Чтение файла конфигурации (опционально)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.debug", false)
	viper.SetDefault("server.request_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "file:renders.db?cache=shared")

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.basepath", "./templates")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "report-templates")
	viper.SetDefault("storage.s3.prefix", "")
	viper.SetDefault("storage.s3.endpoint", "")
	viper.SetDefault("storage.s3.access_key", "")
	viper.SetDefault("storage.s3.secret_key", "")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.password", "")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.prefix", "templates:")

	// Cache defaults
	viper.SetDefault("cache.max_size", 64)
	viper.SetDefault("cache.ttl", 0)
	viper.SetDefault("cache.load_timeout", 30*time.Second)

	// Report defaults
	viper.SetDefault("report.single_template", "report.hcl")
	viper.SetDefault("report.collection_template", "report-collection.hcl")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// bindEnvironmentVariables привязывает переменные окружения к конфигурации
func bindEnvironmentVariables() {
	// Server
	viper.BindEnv("server.address", "APP_SERVER_ADDRESS")
	viper.BindEnv("server.debug", "APP_SERVER_DEBUG")
	viper.BindEnv("server.request_timeout", "APP_SERVER_REQUEST_TIMEOUT")

	// Database
	viper.BindEnv("database.enabled", "APP_DATABASE_ENABLED")
	viper.BindEnv("database.driver", "APP_DATABASE_DRIVER")
	viper.BindEnv("database.dsn", "APP_DATABASE_DSN")

	// Storage
	viper.BindEnv("storage.type", "APP_STORAGE_TYPE")
	viper.BindEnv("storage.basepath", "APP_STORAGE_BASEPATH")
	viper.BindEnv("storage.s3.region", "APP_STORAGE_S3_REGION")
	viper.BindEnv("storage.s3.bucket", "APP_STORAGE_S3_BUCKET")
	viper.BindEnv("storage.s3.prefix", "APP_STORAGE_S3_PREFIX")
	viper.BindEnv("storage.s3.endpoint", "APP_STORAGE_S3_ENDPOINT")
	viper.BindEnv("storage.s3.access_key", "APP_STORAGE_S3_ACCESS_KEY")
	viper.BindEnv("storage.s3.secret_key", "APP_STORAGE_S3_SECRET_KEY")
	viper.BindEnv("storage.redis.addr", "APP_STORAGE_REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "APP_STORAGE_REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "APP_STORAGE_REDIS_DB")
	viper.BindEnv("storage.redis.prefix", "APP_STORAGE_REDIS_PREFIX")

	// Cache
	viper.BindEnv("cache.max_size", "APP_CACHE_MAX_SIZE")
	viper.BindEnv("cache.ttl", "APP_CACHE_TTL")
	viper.BindEnv("cache.load_timeout", "APP_CACHE_LOAD_TIMEOUT")

	// Report
	viper.BindEnv("report.single_template", "APP_REPORT_SINGLE_TEMPLATE")
	viper.BindEnv("report.collection_template", "APP_REPORT_COLLECTION_TEMPLATE")

	// Logging
	viper.BindEnv("logging.level", "APP_LOGGING_LEVEL")
	viper.BindEnv("logging.format", "APP_LOGGING_FORMAT")
}

// validateConfig проверяет корректность конфигурации
func validateConfig(cfg Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if cfg.Server.RequestTimeout < 0 {
		return fmt.Errorf("server request timeout cannot be negative")
	}

	if cfg.DB.Enabled {
		if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
			return fmt.Errorf("database driver must be 'postgres' or 'sqlite', got: %s", cfg.DB.Driver)
		}
		if cfg.DB.DSN == "" {
			return fmt.Errorf("database DSN cannot be empty")
		}
	}

	switch cfg.Storage.Type {
	case "local":
		if cfg.Storage.BasePath == "" {
			return fmt.Errorf("storage basepath cannot be empty for local storage")
		}
	case "s3":
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region cannot be empty")
		}
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("storage type must be 'local', 's3' or 'redis', got: %s", cfg.Storage.Type)
	}

	if cfg.Cache.MaxSize < 0 {
		return fmt.Errorf("cache max_size cannot be negative")
	}

	if cfg.Report.SingleTemplate == "" || cfg.Report.CollectionTemplate == "" {
		return fmt.Errorf("report templates cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	isValidLevel := false
	for _, level := range validLogLevels {
		if strings.ToLower(cfg.Logging.Level) == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid logging level: %s. Valid levels: %v", cfg.Logging.Level, validLogLevels)
	}

	return nil
}

// IsDevelopment возвращает true, если приложение запущено в режиме разработки
func (c Config) IsDevelopment() bool {
	return c.Server.Debug
}

// String возвращает строковое представление конфигурации (без чувствительных данных)
func (c Config) String() string {
	storage := c.Storage
	if storage.S3.SecretKey != "" {
		storage.S3.SecretKey = "[HIDDEN]"
	}
	if storage.Redis.Password != "" {
		storage.Redis.Password = "[HIDDEN]"
	}
	return fmt.Sprintf("Config{Server: %+v, DB: {Enabled: %t, Driver: %s, DSN: [HIDDEN]}, Storage: %+v, Cache: %+v, Report: %+v, Logging: %+v}",
		c.Server, c.DB.Enabled, c.DB.Driver, storage, c.Cache, c.Report, c.Logging)
}
