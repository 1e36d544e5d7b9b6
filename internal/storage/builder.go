package storage

import (
	"fmt"
	"path/filepath"

	"report_renderer/internal/config"

	"github.com/sirupsen/logrus"
)

// StorageFactory фабрика для создания хранилищ
type StorageFactory interface {
	CreateStorage(cfg interface{}) (Storage, error)
	SupportedTypes() []string
}

// StorageBuilder строитель для конфигурации хранилища
type StorageBuilder struct {
	config config.Config
	logger *logrus.Logger
}

// NewStorageBuilder создает новый строитель хранилища
func NewStorageBuilder(cfg config.Config, logger *logrus.Logger) *StorageBuilder {
	return &StorageBuilder{
		config: cfg,
		logger: logger,
	}
}

// Build создает хранилище на основе конфигурации
func (b *StorageBuilder) Build() (Storage, error) {
	factory := NewDefaultStorageFactory(b.logger)

	var (
		storage Storage
		err     error
	)
	switch b.config.Storage.Type {
	case StorageTypeS3:
		storage, err = factory.CreateStorage(b.buildS3Config())
		if err != nil {
			return nil, fmt.Errorf("ошибка создания S3 хранилища: %w", err)
		}
	case StorageTypeLocal:
		localConfig, cfgErr := b.buildLocalConfig()
		if cfgErr != nil {
			return nil, cfgErr
		}
		storage, err = factory.CreateStorage(localConfig)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания локального хранилища: %w", err)
		}
	case StorageTypeRedis:
		storage, err = factory.CreateStorage(b.buildRedisConfig())
		if err != nil {
			return nil, fmt.Errorf("ошибка создания Redis хранилища: %w", err)
		}
	default:
		return nil, fmt.Errorf("неподдерживаемый тип хранилища: %s", b.config.Storage.Type)
	}

	return b.wrapWithMiddleware(storage), nil
}

func defaultStorageConfig(storageType string) StorageConfig {
	return StorageConfig{
		Type:          storageType,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		ReadTimeout:   DefaultOperationTimeout,
		EnableLogging: true,
	}
}

// buildS3Config создает конфигурацию S3
func (b *StorageBuilder) buildS3Config() S3Config {
	return S3Config{
		StorageConfig:  defaultStorageConfig(StorageTypeS3),
		Region:         b.config.Storage.S3.Region,
		Bucket:         b.config.Storage.S3.Bucket,
		Prefix:         b.config.Storage.S3.Prefix,
		Endpoint:       b.config.Storage.S3.Endpoint,
		AccessKey:      b.config.Storage.S3.AccessKey,
		SecretKey:      b.config.Storage.S3.SecretKey,
		ForcePathStyle: true,
	}
}

// buildLocalConfig создает конфигурацию локального хранилища
func (b *StorageBuilder) buildLocalConfig() (LocalConfig, error) {
	basePath, err := filepath.Abs(b.config.Storage.BasePath)
	if err != nil {
		return LocalConfig{}, fmt.Errorf("ошибка определения пути к шаблонам: %w", err)
	}
	return LocalConfig{
		StorageConfig: defaultStorageConfig(StorageTypeLocal),
		BasePath:      basePath,
	}, nil
}

// buildRedisConfig создает конфигурацию Redis хранилища
func (b *StorageBuilder) buildRedisConfig() RedisConfig {
	return RedisConfig{
		StorageConfig: defaultStorageConfig(StorageTypeRedis),
		Addr:          b.config.Storage.Redis.Addr,
		Password:      b.config.Storage.Redis.Password,
		DB:            b.config.Storage.Redis.DB,
		Prefix:        b.config.Storage.Redis.Prefix,
	}
}

// wrapWithMiddleware оборачивает хранилище в middleware
func (b *StorageBuilder) wrapWithMiddleware(storage Storage) Storage {
	if b.logger != nil {
		storage = NewLoggingMiddleware(storage, b.logger)
	}

	storage = NewRetryMiddleware(storage, DefaultMaxRetries, DefaultRetryDelay, b.logger)

	// Валидация ключа выполняется до любых обращений к хранилищу
	storage = NewValidationMiddleware(storage, b.logger)

	return storage
}

// DefaultStorageFactory реализация фабрики хранилищ
type DefaultStorageFactory struct {
	logger *logrus.Logger
}

// NewDefaultStorageFactory создает новую фабрику хранилищ
func NewDefaultStorageFactory(logger *logrus.Logger) StorageFactory {
	return &DefaultStorageFactory{logger: logger}
}

// CreateStorage создает хранилище по конфигурации
func (f *DefaultStorageFactory) CreateStorage(cfg interface{}) (Storage, error) {
	switch c := cfg.(type) {
	case S3Config:
		return NewS3Storage(c, f.logger)
	case LocalConfig:
		return NewLocalStorage(c, f.logger)
	case RedisConfig:
		return NewRedisStorage(c, f.logger)
	default:
		return nil, fmt.Errorf("неподдерживаемый тип конфигурации: %T", cfg)
	}
}

// SupportedTypes возвращает поддерживаемые типы хранилищ
func (f *DefaultStorageFactory) SupportedTypes() []string {
	return []string{StorageTypeS3, StorageTypeLocal, StorageTypeRedis}
}

// NewStorageFromConfig создает хранилище шаблонов из конфигурации
func NewStorageFromConfig(cfg config.Config, logger *logrus.Logger) (Storage, error) {
	return NewStorageBuilder(cfg, logger).Build()
}
