package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStorage хранит шаблоны как строковые значения Redis с общим префиксом
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

// NewRedisStorage создает хранилище и проверяет соединение с Redis
func NewRedisStorage(cfg RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("адрес Redis не может быть пустым")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStorageWithClient(client, cfg.Prefix, logger), nil
}

// NewRedisStorageWithClient создает хранилище поверх готового клиента
func NewRedisStorageWithClient(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Load получает шаблон из Redis
func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %s%s", ErrNotFound, r.prefix, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// ValidateKey валидирует ключ шаблона
func (r *RedisStorage) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ключ файла не может быть пустым")
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("ключ файла не может содержать пробельные символы")
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
