package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"briar"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PATCH,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingExporter string `env:"TRACING_EXPORTER" env-default:"console"` // console, otlp
	OTLPEndpoint    string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol    string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure    bool   `env:"OTLP_INSECURE" env-default:"true"`

	// PostgreSQL (documents + table index backend)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"briar"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Storage backends
	DocumentBackend    string `env:"DOCUMENT_BACKEND" env-default:"postgres"` // postgres, memory
	IndexBackend       string `env:"INDEX_BACKEND" env-default:"postgres"`    // postgres, badger, memory
	BadgerDir          string `env:"BADGER_DIR" env-default:"data/index"`
	TableInboundEdges  string `env:"TABLE_INBOUND_EDGES" env-default:"InboundEdges"`
	TableOutboundEdges string `env:"TABLE_OUTBOUND_EDGES" env-default:"OutboundEdges"`
	TableOrphans       string `env:"TABLE_ORPHANS" env-default:"OrphanedReferences"`
	TableNodeLocator   string `env:"TABLE_NODE_LOCATOR" env-default:"NodeLocator"`
	TableBatchSize     int    `env:"TABLE_BATCH_SIZE" env-default:"100"`
	TableParallelBatch bool   `env:"TABLE_PARALLEL_PARTITIONS" env-default:"false"`

	// Redis (header cache invalidation, job checkpoints)
	RedisEnabled       bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisAddr          string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword      string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB            int    `env:"REDIS_DB" env-default:"0"`
	RedisInvalidations string `env:"REDIS_INVALIDATION_CHANNEL" env-default:"briar:header-invalidations"`
	RedisCheckpointKey string `env:"REDIS_CHECKPOINT_PREFIX" env-default:"briar:checkpoint:"`

	// Graph Database (Memgraph mirror of the edge index)
	GraphMirrorEnabled bool   `env:"GRAPH_MIRROR_ENABLED" env-default:"false"`
	GraphDBHost        string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort        int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser        string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword    string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Kafka Consumer (Debezium CDC for the documents table)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaDocumentsTopic  string   `env:"KAFKA_DOCUMENTS_TOPIC" env-default:"briar.public.documents"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"briar-indexer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Kafka Producer settings
	KafkaProducerEnabled bool   `env:"KAFKA_PRODUCER_ENABLED" env-default:"false"`
	KafkaOutputTopic     string `env:"KAFKA_OUTPUT_TOPIC" env-default:"index-events"`
	KafkaBatchSize       int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Resolution
	ResolveParallelism   int           `env:"RESOLVE_PARALLELISM" env-default:"16"`
	ResolveFailurePolicy string        `env:"RESOLVE_FAILURE_POLICY" env-default:"fail_fast"` // fail_fast, skip_and_log
	ResolvePageSize      int           `env:"RESOLVE_PAGE_SIZE" env-default:"100"`
	TombstoneStaleEdges  bool          `env:"TOMBSTONE_STALE_EDGES" env-default:"false"`
	HeaderCacheSize      int           `env:"HEADER_CACHE_SIZE" env-default:"10000"`
	HeaderCacheTTL       time.Duration `env:"HEADER_CACHE_TTL" env-default:"10m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, nil
}

// DatabaseDSN builds the lib/pq connection string.
func (c Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}
