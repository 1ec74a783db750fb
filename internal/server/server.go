package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FrameNetBrasil/daisy/internal/migrations"
	"github.com/FrameNetBrasil/daisy/internal/queue"
	mid "github.com/FrameNetBrasil/daisy/internal/server/middleware"
	"github.com/FrameNetBrasil/daisy/internal/util"
	"github.com/FrameNetBrasil/daisy/pkg/daisy"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/FrameNetBrasil/daisy/pkg/parser"
	"github.com/FrameNetBrasil/daisy/pkg/store/cache"
	pgstore "github.com/FrameNetBrasil/daisy/pkg/store/pgx"

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

// New builds the echo instance serving app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e, app)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("RUN_MIGRATIONS", false) {
		if err := migrations.Run(databaseURL, util.GetEnvString("MIGRATIONS_DIR", migrations.DefaultDir)); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	cfg, err := daisy.LoadConfig(util.GetEnv("DAISY_CONFIG"))
	if err != nil {
		logger.Fatal("Failed to load daisy config", "err", err)
	}

	collector := metrics.New()
	ttl := util.GetEnvSeconds("CACHE_TTL_SECONDS", time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	refStore := cache.New(
		pgstore.NewReferenceDBStoreWithConnection(conn),
		cache.WithTTL(ttl),
		cache.WithMWETTL(util.GetEnvSeconds("MWE_CACHE_TTL_SECONDS", cache.DefaultMWETTL)),
		cache.WithMetrics(collector),
	)

	var p parser.Parser
	if parserURL := util.GetEnv("PARSER_URL"); parserURL != "" {
		p = parser.NewHTTPParser(parser.NewHTTPParserParams{
			URL:        parserURL,
			Timeout:    util.GetEnvSeconds("PARSER_TIMEOUT_SECONDS", 30*time.Second),
			MaxRetries: util.GetEnvInt("PARSER_MAX_RETRIES", 3),
		})
	} else {
		logger.Warn("PARSER_URL not set, falling back to word splitting")
	}

	client, err := daisy.NewClient(daisy.NewClientParams{
		Store:    refStore,
		Parser:   p,
		Config:   cfg,
		Parallel: util.GetEnvInt("DAISY_PARALLEL", 4),
		Metrics:  collector,
	})
	if err != nil {
		logger.Fatal("Failed to create daisy client", "err", err)
	}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, []string{queue.NetworkQueue}); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	e := New(&mid.App{
		Daisy:          client,
		Queue:          ch,
		Key:            k,
		Metrics:        collector,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   int64(util.GetEnvInt("MASTER_USER_ID", 0)),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	})

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
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
