package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nlpodyssey/openai-agents-go/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faranic/advisor/config"
	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/assistant"
	"github.com/faranic/advisor/internal/conversation"
	"github.com/faranic/advisor/internal/research"
	"github.com/faranic/advisor/internal/store"
	"github.com/faranic/advisor/internal/telemetry"
	"github.com/faranic/advisor/repository/redisrepo"
)

// Run wires the full service and blocks serving HTTP on cfg.General.Listen.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	agent.ConfigureProvider(cfg.Provider)
	reg := agent.NewRegistry(cfg)
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	rc, err := redisrepo.Conn(ctx, cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	sessions := redisrepo.NewSessionRepository(rc)

	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	researchLogger := log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	inv := agent.NewInvoker(nil, "advisor-research", "")
	clar := research.NewClarifier(inv, reg, researchLogger, tele, cfg.Research.MaxClarifyRounds)
	pipe := research.NewPipeline(inv, reg, researchLogger, tele)
	if cfg.Research.WriterStatusTick > 0 {
		pipe.StatusTick = cfg.Research.WriterStatusTick
	}

	ctrl := conversation.NewController(clar, pipe, sessions, log.New(log.Writer(), "[CONV] ", log.LstdFlags))
	if cfg.Research.ContextSummaries > 0 {
		ctrl.KeepSummaries = cfg.Research.ContextSummaries
	}

	invokers := func(ctx context.Context, sessionID string) (agent.Invoker, error) {
		sess, err := memory.NewSQLiteSession(ctx, memory.SQLiteSessionParams{
			SessionID:        sessionID,
			DBDataSourceName: "file:" + cfg.Storage.SQLite.Path,
		})
		if err != nil {
			return nil, err
		}
		return agent.NewInvoker(sess, "advisor-assistant", sessionID), nil
	}
	asst := assistant.New(reg, invokers, log.New(log.Writer(), "[ASSIST] ", log.LstdFlags), cfg.Provider.APIKey != "")
	asst.Streaming = cfg.Provider.Streaming

	api := e.Group("/api")
	rh := &ResearchHandler{Controller: ctrl, Store: st, Sessions: sessions, Logger: researchLogger}
	rh.Register(api.Group("/research"))
	ah := &AssistantHandler{Assistant: asst}
	ah.Register(api.Group("/assistant"))

	baseLogger.Printf("listening on %s", cfg.General.Listen)
	return e.Start(cfg.General.Listen)
}
