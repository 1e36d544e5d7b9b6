package storage

import (
	"context"
	"errors"
	"time"
)

const (
	// Типы хранилищ
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"
	StorageTypeRedis = "redis"

	// Таймаут одной операции чтения шаблона
	DefaultOperationTimeout = 10 * time.Second

	// Настройки retry
	DefaultMaxRetries = 3
	DefaultRetryDelay = 200 * time.Millisecond

	maxKeyLength = 1024
)

// ErrNotFound возвращается, когда шаблон с указанным ключом отсутствует в хранилище.
var ErrNotFound = errors.New("template not found")

// Storage интерфейс хранилища шаблонов. Хранилище доступно только для чтения
// и всегда возвращает актуальное содержимое шаблона.
type Storage interface {
	// Load возвращает содержимое шаблона или ошибку, оборачивающую ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// ValidateKey проверяет корректность ключа для конкретного хранилища.
	ValidateKey(key string) error
}

// StorageConfig общая конфигурация хранилища
type StorageConfig struct {
	Type          string        `json:"type"`
	MaxRetries    int           `json:"max_retries"`
	RetryDelay    time.Duration `json:"retry_delay"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	EnableLogging bool          `json:"enable_logging"`
}

// S3Config конфигурация S3 хранилища
type S3Config struct {
	StorageConfig
	Region         string `json:"region"`
	Bucket         string `json:"bucket"`
	Prefix         string `json:"prefix,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
	ForcePathStyle bool   `json:"force_path_style"`
}

// LocalConfig конфигурация локального хранилища
type LocalConfig struct {
	StorageConfig
	BasePath string `json:"base_path"`
}

// RedisConfig конфигурация хранилища шаблонов в Redis
type RedisConfig struct {
	StorageConfig
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}
