package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/config"
	"github.com/Ramsey-B/briar/internal/repositories/checkpoint"
	"github.com/Ramsey-B/briar/internal/repositories/edgeindex"
	"github.com/Ramsey-B/briar/internal/repositories/locatorindex"
	"github.com/Ramsey-B/briar/internal/repositories/orphan"
	"github.com/Ramsey-B/briar/pkg/cache"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/docstore"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/jobs"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/resolver"
	"github.com/Ramsey-B/briar/pkg/startup"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/Ramsey-B/briar/pkg/tracing/exporters"
	"go.uber.org/zap"
)

const checkpointTTL = 7 * 24 * time.Hour

// app owns every long-lived dependency. Fields are filled in by the startup
// dependencies registered in newApp, in dependency order.
type app struct {
	cfg    config.Config
	logger ectologger.Logger
	zap    *zap.Logger
	boot   *startup.Startup

	db        database.DB
	documents docstore.Store
	tables    tablestore.Client
	redis     *redis.Client
	graph     *graph.Client
	producer  *kafka.Producer

	cache       *cache.HeaderCache
	invalidator cache.Invalidator
	projector   *graph.Projector
	locators    *locatorindex.Writer
	resolver    *resolver.Resolver
	runner      *jobs.Runner
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, z, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		zap:    z,
		boot:   startup.New(logger, cfg.StartupMaxAttempts),
	}
	a.registerCore()
	return a, nil
}

func (a *app) usesPostgres() bool {
	return a.cfg.DocumentBackend == "postgres" || a.cfg.IndexBackend == "postgres"
}

func (a *app) registerCore() {
	var shutdownTracing func(context.Context) error
	a.boot.Add(startup.Func{
		Name: "tracing",
		OnStart: func(ctx context.Context) error {
			shutdown, err := tracing.Setup(ctx, tracing.Config{
				Enabled:     a.cfg.TracingEnabled,
				ServiceName: a.cfg.AppName,
				Version:     a.cfg.Version,
				Exporter:    a.cfg.TracingExporter,
				OTLP: exporters.OTLPConfig{
					Endpoint: a.cfg.OTLPEndpoint,
					Protocol: a.cfg.OTLPProtocol,
					Insecure: a.cfg.OTLPInsecure,
				},
			}, a.logger)
			shutdownTracing = shutdown
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(ctx)
		},
	})

	a.boot.Add(startup.Func{
		Name: "database",
		OnStart: func(ctx context.Context) error {
			if !a.usesPostgres() {
				return nil
			}
			db, err := database.Connect(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseDSN(), database.PoolConfig{
				MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
			}, a.logger)
			if err != nil {
				return err
			}
			a.db = db
			return nil
		},
		OnStop: func(context.Context) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	})

	a.boot.Add(startup.Func{
		Name:     "documents",
		Requires: []string{"database"},
		OnStart: func(context.Context) error {
			switch a.cfg.DocumentBackend {
			case "postgres":
				a.documents = docstore.NewPostgresStore(a.db, a.logger)
			case "memory":
				a.documents = docstore.NewMemoryStore()
			default:
				return fmt.Errorf("unsupported document backend %q", a.cfg.DocumentBackend)
			}
			return nil
		},
	})

	a.boot.Add(startup.Func{
		Name:     "tables",
		Requires: []string{"database"},
		OnStart: func(context.Context) error {
			switch a.cfg.IndexBackend {
			case "postgres":
				a.tables = tablestore.NewPostgresClient(a.db, a.logger)
			case "badger":
				client, err := tablestore.NewBadgerClient(tablestore.BadgerOptions{Dir: a.cfg.BadgerDir})
				if err != nil {
					return err
				}
				a.tables = client
			case "memory":
				a.tables = tablestore.NewMemoryClient()
			default:
				return fmt.Errorf("unsupported index backend %q", a.cfg.IndexBackend)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if a.tables == nil {
				return nil
			}
			return a.tables.Close()
		},
	})

	a.boot.Add(startup.Func{
		Name: "redis",
		OnStart: func(ctx context.Context) error {
			if !a.cfg.RedisEnabled {
				return nil
			}
			client, err := redis.NewClient(ctx, redis.Config{
				Addr:     a.cfg.RedisAddr,
				Password: a.cfg.RedisPassword,
				DB:       a.cfg.RedisDB,
			}, a.logger)
			if err != nil {
				return err
			}
			a.redis = client
			return nil
		},
		OnStop: func(context.Context) error {
			if a.redis == nil {
				return nil
			}
			return a.redis.Close()
		},
	})

	a.boot.Add(startup.Func{
		Name: "graph",
		OnStart: func(ctx context.Context) error {
			if !a.cfg.GraphMirrorEnabled {
				return nil
			}
			client, err := graph.NewClient(graph.Config{
				Host:     a.cfg.GraphDBHost,
				Port:     a.cfg.GraphDBPort,
				Username: a.cfg.GraphDBUser,
				Password: a.cfg.GraphDBPassword,
			}, a.logger)
			if err != nil {
				return err
			}
			if err := client.VerifyConnectivity(ctx); err != nil {
				_ = client.Close(ctx)
				return fmt.Errorf("failed to reach graph database: %w", err)
			}
			a.graph = client
			a.projector = graph.NewProjector(client, nil, a.logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if a.graph == nil {
				return nil
			}
			return a.graph.Close(ctx)
		},
	})

	a.boot.Add(startup.Func{
		Name: "events",
		OnStart: func(context.Context) error {
			if !a.cfg.KafkaProducerEnabled {
				return nil
			}
			a.producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      a.cfg.KafkaBrokers,
				Topic:        a.cfg.KafkaOutputTopic,
				BatchSize:    a.cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: a.cfg.KafkaRequiredAcks,
				Compression:  a.cfg.KafkaCompression,
			}, a.logger)
			return nil
		},
		OnStop: func(context.Context) error {
			if a.producer == nil {
				return nil
			}
			return a.producer.Close()
		},
	})

	a.boot.Add(startup.Func{
		Name:     "resolver",
		Requires: []string{"tracing", "documents", "tables", "redis", "graph", "events"},
		OnStart:  a.buildResolver,
	})
}

func (a *app) buildResolver(ctx context.Context) error {
	cfg := a.cfg

	a.cache = cache.NewHeaderCache(cfg.HeaderCacheSize, cfg.HeaderCacheTTL)
	var store checkpoint.Store = checkpoint.NewMemoryStore()
	if a.redis != nil {
		a.invalidator = cache.NewRedisInvalidator(a.cache, a.redis, cfg.RedisInvalidations, a.logger)
		store = checkpoint.NewRedisStore(a.redis, cfg.RedisCheckpointKey, checkpointTTL, a.logger)
	} else {
		a.invalidator = cache.NewLocalInvalidator(a.cache)
	}
	a.runner = jobs.NewRunner(store, a.logger)

	edges := edgeindex.NewWriter(a.tables, edgeindex.Options{
		Tables:             edgeindex.Tables{Inbound: cfg.TableInboundEdges, Outbound: cfg.TableOutboundEdges},
		BatchSize:          cfg.TableBatchSize,
		ParallelPartitions: cfg.TableParallelBatch,
	}, a.logger)
	a.locators = locatorindex.NewWriter(a.tables, locatorindex.Options{
		Table:              cfg.TableNodeLocator,
		BatchSize:          cfg.TableBatchSize,
		ParallelPartitions: cfg.TableParallelBatch,
	}, a.logger)
	orphans := orphan.NewRepository(a.tables, cfg.TableOrphans, nil, a.logger)

	for _, ensure := range []func(context.Context) error{edges.EnsureTables, a.locators.EnsureTable} {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("failed to create index tables: %w", err)
		}
	}

	deps := resolver.Deps{
		Documents:   a.documents,
		Edges:       edges,
		Locators:    a.locators,
		Orphans:     orphans,
		Cache:       a.cache,
		Invalidator: a.invalidator,
		Notifier:    events.Nop{},
	}
	if a.producer != nil {
		deps.Notifier = events.NewEmitter(a.producer, a.logger)
	}
	if a.projector != nil {
		deps.Mirror = a.projector
	}

	r, err := resolver.New(deps, resolver.Options{
		Parallelism:         cfg.ResolveParallelism,
		PageSize:            cfg.ResolvePageSize,
		FailurePolicy:       resolver.ParseFailurePolicy(cfg.ResolveFailurePolicy),
		TombstoneStaleEdges: cfg.TombstoneStaleEdges,
	}, a.logger)
	if err != nil {
		return err
	}
	a.resolver = r
	return nil
}

func (a *app) start(ctx context.Context) error {
	return a.boot.Start(ctx)
}

// stop tears everything down and flushes the zap buffer.
func (a *app) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.boot.Stop(ctx); err != nil {
		a.logger.WithError(err).Error("Shutdown finished with errors")
	}
	_ = a.zap.Sync()
}
