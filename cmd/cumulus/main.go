// Точка входа Cumulus — бэкенд файлового хранилища.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует блобное хранилище, адаптер прав и сервисный слой,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/cumulus/internal/api/handlers"
	"github.com/bigkaa/cumulus/internal/api/middleware"
	"github.com/bigkaa/cumulus/internal/auth"
	"github.com/bigkaa/cumulus/internal/config"
	"github.com/bigkaa/cumulus/internal/database"
	"github.com/bigkaa/cumulus/internal/repository"
	"github.com/bigkaa/cumulus/internal/server"
	"github.com/bigkaa/cumulus/internal/service"
	"github.com/bigkaa/cumulus/internal/storage/blobstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Cumulus запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("CU_DEPHEALTH_GROUP") == "" {
		logger.Warn("CU_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Блобное хранилище
	blobs, err := blobstore.New(cfg.StorageRoot, cfg.ProbeTimeout, logger)
	if err != nil {
		logger.Error("Ошибка инициализации блобного хранилища",
			slog.String("root", cfg.StorageRoot),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Блобное хранилище инициализировано", slog.String("root", blobs.Root()))

	// 6. Адаптер проверки прав
	adapter, err := auth.New(cfg.AuthAdapter, auth.Options{
		AdminGroups: cfg.AdminGroups,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Ошибка создания адаптера прав", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Repository и сервисный слой
	fileRepo := repository.NewFileRepository(pool)
	cache := service.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)
	storageSvc := service.NewStorageService(fileRepo, blobs, adapter, cache, logger)

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"cumulus",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(storageSvc, blobs, healthHandler, logger)

	// 10. Middleware: метрики, логирование, опционально JWT
	middlewares := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	}
	if cfg.AuthAdapter == config.AuthAdapterJWT {
		jwtAuth, jwtErr := middleware.NewJWTAuth(cfg.JWKSUrl, cfg.JWTIssuer, cfg.JWTLeeway, logger)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWKSUrl),
			slog.String("issuer", cfg.JWTIssuer),
		)
		middlewares = append(middlewares,
			jwtAuth.MiddlewareWithExclusions("/health/live", "/health/ready", "/metrics"),
		)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, middlewares...)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Cumulus остановлен")
}
