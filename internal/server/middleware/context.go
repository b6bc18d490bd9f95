package middleware

import (
	"github.com/OFFIS-RIT/kiwi-insure/internal/queue"
	"github.com/OFFIS-RIT/kiwi-insure/internal/storage"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/graph"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/query"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App holds the collaborators shared by all requests. Queue and Bucket may
// be nil, in which case the queued ingest route answers 503.
type App struct {
	Graph        *graph.GraphClient
	Search       *query.SearchService
	Queue        queue.Publisher
	Bucket       *storage.Bucket
	Keyfunc      jwt.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
