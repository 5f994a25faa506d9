package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/report-dispatch/internal/api/handlers"
	"github.com/donaldgifford/report-dispatch/internal/api/middleware"
	"github.com/donaldgifford/report-dispatch/internal/config"
	"github.com/donaldgifford/report-dispatch/internal/deliver"
	"github.com/donaldgifford/report-dispatch/internal/engine"
	"github.com/donaldgifford/report-dispatch/internal/notify"
	"github.com/donaldgifford/report-dispatch/internal/render"
	"github.com/donaldgifford/report-dispatch/internal/store"
	"github.com/donaldgifford/report-dispatch/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and delivery scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()

	var renderer engine.Renderer
	if cfg.Delivery.RenderEndpoint != "" {
		renderer = render.NewHTTPRenderer(cfg.Delivery.RenderEndpoint)
		log.Info("using HTTP renderer", "endpoint", cfg.Delivery.RenderEndpoint)
	} else {
		renderer = render.NewLocalRenderer()
		log.Info("using local renderer")
	}

	var deliverer engine.Deliverer
	if cfg.Delivery.Webhook.Enabled {
		deliverer = deliver.NewWebhookDeliverer(
			cfg.Delivery.Webhook.URL,
			cfg.Delivery.Webhook.Headers,
		)
		log.Info("using webhook deliverer", "url", cfg.Delivery.Webhook.URL)
	} else {
		deliverer = deliver.NewLogDeliverer(log)
		log.Info("using log deliverer")
	}

	pipeline := engine.NewPipeline(st, renderer, deliverer, log, cfg.Delivery.AttemptTimeout)
	scheduler := engine.NewScheduler(
		st,
		pipeline,
		log,
		cfg.Scheduler.TickInterval,
		cfg.Scheduler.Concurrency,
	)

	router := notify.NewRouter(notify.NewNoOpNotifier(log), log)
	if cfg.Notifications.Discord.Enabled {
		router.Register("discord", notify.NewDiscordNotifier(cfg.Notifications.Discord.WebhookURL))
		log.Info("discord notifications enabled")
	}
	if cfg.Notifications.Webhook.Enabled {
		router.Register("webhook", notify.NewWebhookNotifier(
			cfg.Notifications.Webhook.URL,
			cfg.Notifications.Webhook.Headers,
			cfg.Notifications.RateLimit.PerSecond,
			cfg.Notifications.RateLimit.Burst,
		))
		log.Info("webhook notifications enabled")
	}

	evaluator := engine.NewEvaluator(st, log)

	e := newEcho(cfg, log, st, pipeline, evaluator, router)

	scheduler.Init(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	if err := scheduler.Shutdown(cfg.Scheduler.ShutdownGrace); err != nil {
		log.Warn("scheduler shutdown incomplete", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// newEcho assembles the HTTP surface: middleware, Echo-native CRUD routes,
// and the Huma operations mounted on the same router.
func newEcho(
	cfg *config.Config,
	log *slog.Logger,
	st store.Store,
	pipeline *engine.Pipeline,
	evaluator *engine.Evaluator,
	router *notify.Router,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Recovery(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(st)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	reports := handlers.NewReportHandler(st)
	e.GET("/api/v1/reports", reports.List)
	e.POST("/api/v1/reports", reports.Create)
	e.GET("/api/v1/reports/:id", reports.Get)
	e.PUT("/api/v1/reports/:id", reports.Update)
	e.PUT("/api/v1/reports/:id/scheduled", reports.SetScheduled)
	e.GET("/api/v1/reports/:id/history", reports.History)

	rules := handlers.NewRuleHandler(st)
	e.GET("/api/v1/alerts", rules.List)
	e.POST("/api/v1/alerts", rules.Create)
	e.GET("/api/v1/alerts/:id", rules.Get)
	e.PUT("/api/v1/alerts/:id", rules.Update)
	e.DELETE("/api/v1/alerts/:id", rules.Delete)

	metrics := handlers.NewMetricHandler(st)
	e.GET("/api/v1/metrics", metrics.List)
	e.POST("/api/v1/metrics", metrics.Create)
	e.GET("/api/v1/metrics/:id", metrics.Get)

	api := humaecho.New(e, huma.DefaultConfig("Report Dispatch API", Version))
	handlers.RegisterTriggerRoutes(api, handlers.NewTriggerHandler(st, pipeline))
	handlers.RegisterEvaluateRoutes(api, handlers.NewEvaluateHandler(evaluator, router))
	handlers.RegisterBindingRoutes(api, handlers.NewBindingsHandler(st))
	handlers.RegisterTriggerHistoryRoutes(api, handlers.NewTriggerHistoryHandler(st))
	handlers.RegisterSystemStateRoutes(api, handlers.NewSystemStateHandler(st))

	return e
}
