package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/bootstrap"
	"github.com/OFFIS-RIT/kiwi-insure/internal/config"
	"github.com/OFFIS-RIT/kiwi-insure/internal/queue"
	mid "github.com/OFFIS-RIT/kiwi-insure/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi-insure/internal/server/routes"
	"github.com/OFFIS-RIT/kiwi-insure/internal/storage"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/query"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

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

// New returns an echo instance with every route registered against app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	registerRoutes(e)
	return e
}

func registerRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	ingest := mid.RequirePermission(mid.PermDocumentIngest)
	e.POST("/documents", routes.PostDocumentHandler, mid.AuthMiddleware, ingest)
	e.POST("/documents/queue", routes.PostDocumentQueueHandler, mid.AuthMiddleware, ingest)

	e.POST("/claims/analyze", routes.AnalyzeClaimHandler,
		mid.AuthMiddleware, mid.RequirePermission(mid.PermClaimAnalyze))

	e.GET("/users/:id/recommendations", routes.GetRecommendationsHandler, mid.AuthMiddleware)

	search := mid.RequirePermission(mid.PermGraphSearch)
	e.GET("/search/global", routes.GlobalSearchHandler, mid.AuthMiddleware, search)
	e.GET("/search/local", routes.LocalSearchHandler, mid.AuthMiddleware, search)
}

// Init wires the application from cfg and serves until SIGINT or SIGTERM.
func Init(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := bootstrap.NewAIClient(cfg.AI)
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}

	graphStore, err := bootstrap.OpenStore(ctx, cfg.GraphStore, cfg, aiClient)
	if err != nil {
		logger.Fatal("Failed to open graph store", "store", cfg.GraphStore, "err", err)
	}
	defer graphStore.Close(context.Background())

	graphClient, err := bootstrap.NewGraphClient(cfg, aiClient, graphStore)
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}

	app := &mid.App{
		Graph:        graphClient,
		Search:       query.NewSearchService(graphStore),
		MasterAPIKey: cfg.MasterAPIKey,
	}

	if cfg.AuthURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.AuthURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	}

	que, err := queue.Init(ctx, cfg.Queue)
	if err != nil {
		logger.Warn("Queue unavailable, queued ingest disabled", "err", err)
	} else {
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = ch
	}

	s3Client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		logger.Warn("S3 unavailable, file uploads disabled", "err", err)
	} else {
		app.Bucket = storage.NewBucket(s3Client, cfg.S3.Bucket)
	}

	e := New(app)

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
