// Package di собирает граф зависимостей сервиса рендеринга для fx.
package di

import (
	"context"
	"errors"
	"net/http"
	"time"

	"report_renderer/internal/config"
	"report_renderer/internal/database"
	"report_renderer/internal/server"
	"report_renderer/internal/service"
	"report_renderer/internal/storage"
	"report_renderer/internal/template"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

// Module содержит всех поставщиков зависимостей кроме конфигурации
var Module = fx.Options(
	fx.Provide(
		NewLogger,
		provideStorage,
		provideCache,
		provideAudit,
		provideRenderer,
		fx.Annotate(server.NewServer, fx.As(new(HTTPServer))),
	),
)

// HTTPServer запускается и останавливается хуками жизненного цикла
type HTTPServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

// NewLogger создает и настраивает логгер на основе конфигурации
func NewLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()

	// Устанавливаем уровень логирования
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	// Устанавливаем формат вывода
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return logger
}

// provideStorage создает хранилище шаблонов и закрывает его при остановке
func provideStorage(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) (storage.Storage, error) {
	store, err := storage.NewStorageFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return storage.Close(store)
		},
	})
	return store, nil
}

func provideCache(cfg config.Config, store storage.Storage, logger *logrus.Logger) *template.Cache {
	return NewCache(cfg, store, logger)
}

// NewCache создает кэш скомпилированных шаблонов поверх хранилища
func NewCache(cfg config.Config, store storage.Storage, logger *logrus.Logger) *template.Cache {
	return template.NewCache(store, template.CacheConfig{
		MaxSize:     cfg.Cache.MaxSize,
		TTL:         cfg.Cache.TTL,
		LoadTimeout: cfg.Cache.LoadTimeout,
	}, logger)
}

// provideAudit подключает журнал рендеринга, если база данных включена
func provideAudit(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) (service.AuditRepository, error) {
	if !cfg.DB.Enabled {
		logger.Info("Журнал рендеринга отключен")
		return service.NopAuditRepository{}, nil
	}

	db, err := database.NewDatabase(database.Config{
		Driver: cfg.DB.Driver,
		DSN:    cfg.DB.DSN,
		Debug:  cfg.Server.Debug,
	})
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db, logger); err != nil {
		database.Close(db)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return database.Close(db)
		},
	})
	return service.NewGormAuditRepository(db), nil
}

// NewOptions переносит настройки отчетов из конфигурации в сервис
func NewOptions(cfg config.Config) service.Options {
	return service.Options{
		SingleTemplate:     cfg.Report.SingleTemplate,
		CollectionTemplate: cfg.Report.CollectionTemplate,
		Parameters:         cfg.Report.Parameters,
	}
}

func provideRenderer(cfg config.Config, cache *template.Cache, audit service.AuditRepository, logger *logrus.Logger) service.ReportService {
	return service.NewRenderer(cache, audit, NewOptions(cfg), logger)
}

// RegisterLifecycleHooks настраивает хуки жизненного цикла приложения
func RegisterLifecycleHooks(
	srv HTTPServer,
	cfg config.Config,
	logger *logrus.Logger,
	lc fx.Lifecycle,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.WithField("config", cfg.String()).Info("Запуск сервиса рендеринга отчетов")
			go func() {
				if err := srv.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.WithError(err).Error("HTTP сервер остановлен")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Завершение работы HTTP сервера")
			return srv.Shutdown(ctx)
		},
	})
}
