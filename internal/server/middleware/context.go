package middleware

import (
	"time"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/storage"
	"github.com/txgnn-explorer/backend/pkg/cache"
	"github.com/txgnn-explorer/backend/pkg/loader"
	"github.com/txgnn-explorer/backend/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	Subject     string
	Role        string
	Permissions []string
}

// Publisher sends a message to a work queue.
type Publisher interface {
	Publish(queueName string, data []byte) error
}

type App struct {
	Graph    store.GraphDatabase
	Cache    cache.Cache
	CacheTTL time.Duration

	Data     *loader.CachedReader
	DataFile func(name string) loader.DataFile

	// DBConn, Queue and Results are nil when path jobs are disabled.
	DBConn  db.DBTX
	Queue   Publisher
	Results storage.ResultStore

	Key          *keyfunc.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// JobsEnabled reports whether the job routes have their backing services.
func (a *App) JobsEnabled() bool {
	return a.DBConn != nil && a.Queue != nil && a.Results != nil
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
