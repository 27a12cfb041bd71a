package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/txgnn-explorer/backend/internal/config"
	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/queue"
	mid "github.com/txgnn-explorer/backend/internal/server/middleware"
	"github.com/txgnn-explorer/backend/internal/storage"
	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/cache"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/loader"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/store"
	"github.com/txgnn-explorer/backend/pkg/store/file"
	"github.com/txgnn-explorer/backend/pkg/store/neo4j"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho returns an echo instance serving app.
func NewEcho(app *mid.App, frontRoot string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e, frontRoot)
	return e
}

// OpenGraphDatabase opens the configured graph backend.
func OpenGraphDatabase(ctx context.Context, cfg config.Config, l loader.DataFileLoader) (store.GraphDatabase, error) {
	files := cfg.GraphFiles(l)
	if !cfg.UseNeo4j {
		return file.Open(ctx, files, cfg.Graph)
	}

	predictions, indications := graph.LoadTables(ctx, files)
	return neo4j.NewNeo4jGraphDatabase(ctx, neo4j.NewNeo4jGraphDatabaseParams{
		URI:         cfg.Neo4jURI,
		User:        cfg.Neo4jUser,
		Password:    cfg.Neo4jPassword,
		Database:    cfg.Neo4jDatabase,
		Predictions: predictions,
		Indications: indications,
		Settings:    cfg.Graph,
	})
}

// CachePrefix namespaces the server's Redis keys.
const CachePrefix = "txgnn"

// OpenCache returns a Redis cache when REDIS_URL is set and an in-memory
// cache otherwise.
func OpenCache(ctx context.Context, cfg config.Config) cache.Cache {
	if cfg.RedisURL != "" {
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL, CachePrefix)
		if err == nil {
			return c
		}
		logger.Warn("Failed to connect to Redis, using memory cache", "err", err)
	}
	return cache.NewMemoryCache(1024)
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Info("Using data folder", "path", cfg.DataFolder, "source", cfg.DataSource)

	dataLoader, err := cfg.NewDataLoader(ctx)
	if err != nil {
		logger.Fatal("Failed to create data loader", "err", err)
	}
	if missing := cfg.ValidatePaths(ctx, dataLoader); len(missing) > 0 {
		logger.Warn("Missing critical data files", "files", missing)
	}

	graphDB, err := OpenGraphDatabase(ctx, cfg, dataLoader)
	if err != nil {
		logger.Fatal("Failed to open graph database", "err", err)
	}
	defer graphDB.Close(context.Background())

	responseCache := OpenCache(ctx, cfg)
	defer responseCache.Close()

	app := &mid.App{
		Graph:    graphDB,
		Cache:    responseCache,
		CacheTTL: cfg.CacheTTL,
		Data:     loader.NewCachedReader(),
		DataFile: func(name string) loader.DataFile {
			return cfg.DataFile(name, dataLoader)
		},
		MasterAPIKey: cfg.MasterAPIKey,
	}

	if cfg.AuthURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.AuthURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = &k
	}

	// Path jobs need Postgres and RabbitMQ
	if cfg.DatabaseURL != "" {
		if err := db.Migrate(util.GetEnvString("MIGRATIONS_DIR", "internal/db/migrations"), cfg.DatabaseURL); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}

		conn, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer conn.Close()

		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to setup queues", "err", err)
		}

		s3 := storage.NewS3Client(ctx)

		app.DBConn = conn
		app.Queue = &queue.ChannelPublisher{Ch: ch}
		app.Results = storage.NewResultStore(s3, cfg.ResultsDir)
	} else {
		logger.Info("DATABASE_URL not set, path jobs disabled")
	}

	e := NewEcho(app, cfg.FrontRoot)

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
