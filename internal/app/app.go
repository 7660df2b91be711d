package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskManager/internal/config"
	"taskManager/internal/handlers"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/ratelimit"
	"taskManager/internal/repository"
	"taskManager/internal/repository/task/inmemory"
	"taskManager/internal/repository/task/postgres"
	"taskManager/internal/repository/task/sqlite"
	"taskManager/internal/service"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const apiPrefix = "/api/v1"

type App struct {
	config  *config.Config
	server  *http.Server
	store   repository.Store
	limiter ratelimit.Limiter
	service *service.TaskService
}

func New(cfg *config.Config) *App {
	return &App{config: cfg}
}

// Init поднимает хранилище, ограничитель и HTTP-сервер. При ошибке всё уже
// открытое закрывается.
func (a *App) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.store, err = newStore(ctx, a.config)
	if err != nil {
		return fmt.Errorf("инициализация хранилища: %w", err)
	}

	a.limiter = newLimiter(a.config.RateLimit)

	if err := a.probe(ctx); err != nil {
		return fmt.Errorf("проверка зависимостей: %w", err)
	}

	a.service = service.NewTaskService(a.store, service.WithPagination(service.PaginationConfig{
		DefaultLimit: a.config.Pagination.DefaultLimit,
		MaxLimit:     a.config.Pagination.MaxLimit,
	}))

	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.Router(), a.config.App.Name),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Repository.Type {
	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{
			MaxConnections: cfg.Database.MaxConnections,
			MinConnections: cfg.Database.MinConnections,
			IdleTimeout:    cfg.Database.IdleTimeout,
			SlowQuery:      cfg.Database.SlowQuery,
		})
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureSchema(ctx); err != nil {
			storage.Close()
			return nil, err
		}
		return storage, nil
	case config.RepositorySQLite:
		storage, err := sqlite.Open(cfg.SQLite.Path, cfg.Database.SlowQuery)
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return inmemory.NewTaskStorage(), nil
	}
}

func newLimiter(cfg config.RateLimitConfig) ratelimit.Limiter {
	if cfg.Backend == config.RateLimitRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return ratelimit.NewRedisLimiter(client, cfg.Redis.Prefix, cfg.RequestsPerMinute, time.Minute)
	}
	return ratelimit.NewMemoryLimiter(cfg.RequestsPerMinute, time.Minute)
}

// probe проверяет хранилище и ограничитель параллельно до старта сервера.
func (a *App) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.store.HealthCheck(ctx) })
	g.Go(func() error { return a.limiter.Ping(ctx) })
	return g.Wait()
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	if a.config.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(a.config.Server.RequestTimeout))
	}

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	health := handlers.NewHealthHandler(a.config.App.Name, a.config.App.Version,
		handlers.Probe{Name: "storage", Check: a.service.HealthCheck},
		handlers.Probe{Name: "ratelimit", Check: a.limiter.Ping},
	)
	r.Get("/", health.Info)
	r.Get("/health", health.Health)

	taskHandler := handlers.NewTaskHandler(a.service)
	r.Route(apiPrefix, func(r chi.Router) {
		if a.config.RateLimit.RequestsPerMinute > 0 {
			r.Use(middleware.RateLimit(a.limiter))
		}
		r.Mount("/tasks", taskHandler.Routes())
	})

	return r
}

// Run блокируется до сигнала остановки и возвращает код выхода.
func (a *App) Run(ctx context.Context) int {
	go func() {
		logger.Info("Сервер запущен",
			zap.String("addr", a.server.Addr),
			zap.String("repository", a.config.Repository.Type))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ошибка HTTP-сервера", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, a.config.Server.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			logger.Info("Остановка HTTP-сервера...")
			err := a.server.Shutdown(ctx)
			a.close()
			return err
		},
	})

	code := <-wait
	logger.Info("Приложение остановлено", zap.Int("exit_code", code))
	return code
}

// close освобождает хранилище и ограничитель после остановки сервера.
func (a *App) close() {
	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			logger.Error("Ошибка закрытия ограничителя", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
