package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/middleware"
	"github.com/Ramsey-B/briar/pkg/processor"
	"github.com/Ramsey-B/briar/pkg/routes/entity"
	graphroutes "github.com/Ramsey-B/briar/pkg/routes/graph"
	"github.com/Ramsey-B/briar/pkg/routes/health"
	"github.com/Ramsey-B/briar/pkg/routes/locator"
	"github.com/Ramsey-B/briar/pkg/routes/maintenance"
	"github.com/Ramsey-B/briar/pkg/startup"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the documents CDC consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		checker := health.NewChecker(a.cfg.Version)
		a.registerMigrations()
		a.registerServer(checker)

		if err := a.start(ctx); err != nil {
			a.stop()
			return err
		}
		checker.SetReady(true)
		a.logger.Infof("%s listening on :%d", a.cfg.AppName, a.cfg.Port)

		<-ctx.Done()
		checker.SetReady(false)
		a.logger.Info("Shutting down")
		a.stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// registerMigrations applies document store migrations before anything reads documents.
func (a *app) registerMigrations() {
	a.boot.Add(startup.Func{
		Name:     "migrations",
		Requires: []string{"database"},
		OnStart: func(context.Context) error {
			if a.cfg.DocumentBackend != "postgres" {
				return nil
			}
			return a.migrate()
		},
	})
	a.boot.Add(startup.Func{
		Name:     "documents-ready",
		Requires: []string{"migrations", "resolver"},
	})
}

func (a *app) migrate() error {
	svc := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	return svc.MigratePostgres(a.db, a.cfg.DatabaseName)
}

func (a *app) registerServer(checker *health.Checker) {
	listenCtx, cancelListen := context.WithCancel(context.Background())
	a.boot.Add(startup.Func{
		Name:     "invalidations",
		Requires: []string{"resolver"},
		OnStart: func(context.Context) error {
			listener, ok := a.invalidator.(interface{ Listen(context.Context) error })
			if !ok {
				return nil
			}
			go func() {
				if err := listener.Listen(listenCtx); err != nil {
					a.logger.WithError(err).Error("Cache invalidation listener stopped")
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancelListen()
			return nil
		},
	})

	var consumer *kafka.Consumer
	a.boot.Add(startup.Func{
		Name:     "consumer",
		Requires: []string{"documents-ready"},
		OnStart: func(ctx context.Context) error {
			if !a.cfg.KafkaConsumerEnabled {
				return nil
			}
			proc := processor.NewChangeProcessor(a.logger, a.resolver)
			consumer = kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:       a.cfg.KafkaBrokers,
				Topic:         a.cfg.KafkaDocumentsTopic,
				ConsumerGroup: a.cfg.KafkaConsumerGroup,
			}, a.logger, proc.ProcessMessage)
			checker.Add("kafka_consumer", func(context.Context) error {
				if !consumer.Health() {
					return errors.New("consumer is not running")
				}
				return nil
			})
			return consumer.Start(context.Background())
		},
		OnStop: func(context.Context) error {
			if consumer == nil {
				return nil
			}
			return consumer.Stop()
		},
	})

	var server *echo.Echo
	a.boot.Add(startup.Func{
		Name:     "http",
		Requires: []string{"documents-ready", "invalidations"},
		OnStart: func(context.Context) error {
			server = a.newServer(checker)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Port),
				ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
				MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
			}
			go func() {
				if err := server.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.WithError(err).Error("HTTP server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if server == nil {
				return nil
			}
			return server.Shutdown(ctx)
		},
	})
}

func (a *app) newServer(checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))

	if a.db != nil {
		checker.Add("database", a.db.PingContext)
	}
	if a.redis != nil {
		checker.Add("redis", a.redis.Ping)
	}
	if a.graph != nil {
		checker.Add("graph", a.graph.VerifyConnectivity)
	}
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	maintenance.NewHandler(a.resolver, a.runner, a.logger).Register(api.Group("/maintenance"))
	entity.NewHandler(a.resolver, a.logger).Register(api.Group("/entities"))
	locator.NewHandler(a.locators).Register(api.Group("/locators"))

	var refs graphroutes.ReferenceReader
	if a.projector != nil {
		refs = a.projector
	}
	graphroutes.NewHandler(refs).Register(api.Group("/graph"))
	return e
}
