package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware добавляет логирование к операциям хранилища
type LoggingMiddleware struct {
	storage Storage
	logger  *logrus.Logger
}

// NewLoggingMiddleware создает новый logging middleware
func NewLoggingMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &LoggingMiddleware{
		storage: storage,
		logger:  logger,
	}
}

// Load логирует операцию чтения шаблона
func (m *LoggingMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	logger := m.logger.WithFields(logrus.Fields{
		"operation": "load",
		"key":       key,
	})

	logger.Debug("Начало загрузки шаблона")

	data, err := m.storage.Load(ctx, key)

	duration := time.Since(start)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.WithField("duration", duration).Warn("Шаблон не найден")
	case err != nil:
		logger.WithError(err).WithField("duration", duration).Error("Ошибка загрузки шаблона")
	default:
		logger.WithFields(logrus.Fields{
			"duration": duration,
			"size":     len(data),
		}).Info("Шаблон загружен успешно")
	}

	return data, err
}

func (m *LoggingMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

// RetryMiddleware добавляет retry логику к операциям хранилища
type RetryMiddleware struct {
	storage    Storage
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// NewRetryMiddleware создает новый retry middleware
func NewRetryMiddleware(storage Storage, maxRetries int, retryDelay time.Duration, logger *logrus.Logger) Storage {
	return &RetryMiddleware{
		storage:    storage,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Load выполняет чтение шаблона с retry
func (m *RetryMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := m.retryOperation(ctx, "load", func() error {
		var err error
		result, err = m.storage.Load(ctx, key)
		return err
	})
	return result, err
}

// retryOperation выполняет операцию с retry логикой
func (m *RetryMiddleware) retryOperation(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !m.shouldRetry(lastErr) {
			break
		}

		if attempt < m.maxRetries {
			if m.logger != nil {
				m.logger.WithFields(logrus.Fields{
					"operation":   operation,
					"attempt":     attempt + 1,
					"max_retries": m.maxRetries,
				}).WithError(lastErr).Warn("Повтор операции после ошибки")
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}
	}

	return lastErr
}

// shouldRetry определяет, стоит ли повторять операцию.
// Отсутствие шаблона и отмена запроса не исправятся повтором.
func (m *RetryMiddleware) shouldRetry(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (m *RetryMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

// ValidationMiddleware добавляет валидацию к операциям хранилища
type ValidationMiddleware struct {
	storage Storage
	logger  *logrus.Logger
}

// NewValidationMiddleware создает новый validation middleware
func NewValidationMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &ValidationMiddleware{
		storage: storage,
		logger:  logger,
	}
}

// Load выполняет валидацию ключа перед чтением
func (m *ValidationMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	if err := m.storage.ValidateKey(key); err != nil {
		return nil, err
	}
	return m.storage.Load(ctx, key)
}

func (m *ValidationMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

func (m *LoggingMiddleware) Unwrap() Storage    { return m.storage }
func (m *RetryMiddleware) Unwrap() Storage      { return m.storage }
func (m *ValidationMiddleware) Unwrap() Storage { return m.storage }

// Close снимает middleware и закрывает хранилище, если оно держит соединение
func Close(s Storage) error {
	for s != nil {
		if closer, ok := s.(io.Closer); ok {
			return closer.Close()
		}
		w, ok := s.(interface{ Unwrap() Storage })
		if !ok {
			return nil
		}
		s = w.Unwrap()
	}
	return nil
}
