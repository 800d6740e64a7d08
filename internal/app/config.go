package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type Config struct {
	AppName    string
	AppVersion string
	Env        string
	HTTPAddr   string
	LogMode    string

	CORSOrigins []string

	MaxUploadBytes    int64
	AllowedExtensions []string
	UploadDir         string
	GCSUploadBucket   string
	ChunkSize         int
	ChunkOverlap      int

	JobRetention    time.Duration
	JobRetentionMax int
	IngestWorkers   int
	IngestQueueSize int

	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	// AnalystDatabaseURL is the database the analyst agent queries; defaults to DatabaseURL.
	AnalystDatabaseURL string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	RedisAddr    string
	RedisChannel string

	OpenAIAPIKey   string
	LLMModel       string
	EmbeddingModel string

	VectorPersistPath string
	VectorCollection  string

	MaxRetries         int
	TopK               int
	SocketWriteTimeout time.Duration
	StreamHeartbeat    time.Duration

	OtelEnabled     bool
	OtelEndpoint    string
	OtelInsecure    bool
	OtelSampleRatio float64
	OtelHeaders     string
	MetricsEnabled  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "Nexus-Graph")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("MAX_UPLOAD_SIZE_MB", 100)
	v.SetDefault("ALLOWED_EXTENSIONS", ".txt,.md,.csv,.json,.pdf,.docx,.pptx,.xlsx")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("CHUNK_SIZE", 1000)
	v.SetDefault("CHUNK_OVERLAP", 200)

	v.SetDefault("JOB_RETENTION", "1h")
	v.SetDefault("JOB_RETENTION_MAX", 1024)
	v.SetDefault("INGEST_WORKERS", 2)
	v.SetDefault("INGEST_QUEUE_SIZE", 256)

	v.SetDefault("SQLITE_PATH", "nexusgraph.db")
	v.SetDefault("NEO4J_USER", "neo4j")
	v.SetDefault("NEO4J_DATABASE", "neo4j")
	v.SetDefault("REDIS_CHANNEL", "nexusgraph:push")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("VECTOR_COLLECTION", "documents")

	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("TOP_K", 10)
	v.SetDefault("SOCKET_WRITE_TIMEOUT", "10s")
	v.SetDefault("STREAM_HEARTBEAT", "15s")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
	v.SetDefault("METRICS_ENABLED", true)
}

// LoadConfig reads the environment, optionally layered over the yaml file named by
// CONFIG_FILE. Environment values win.
func LoadConfig(log *logger.Logger) Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("config file not loaded; using environment only", "path", path, "error", err)
		} else {
			log.Info("config file loaded", "path", v.ConfigFileUsed())
		}
	}

	cfg := Config{
		AppName:    v.GetString("APP_NAME"),
		AppVersion: v.GetString("APP_VERSION"),
		Env:        v.GetString("APP_ENV"),
		HTTPAddr:   v.GetString("HTTP_ADDR"),
		LogMode:    v.GetString("LOG_MODE"),

		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),

		MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_SIZE_MB") << 20,
		AllowedExtensions: normalizeExtensions(splitList(v.GetString("ALLOWED_EXTENSIONS"))),
		UploadDir:         v.GetString("UPLOAD_DIR"),
		GCSUploadBucket:   v.GetString("GCS_UPLOAD_BUCKET"),
		ChunkSize:         v.GetInt("CHUNK_SIZE"),
		ChunkOverlap:      v.GetInt("CHUNK_OVERLAP"),

		JobRetention:    v.GetDuration("JOB_RETENTION"),
		JobRetentionMax: v.GetInt("JOB_RETENTION_MAX"),
		IngestWorkers:   v.GetInt("INGEST_WORKERS"),
		IngestQueueSize: v.GetInt("INGEST_QUEUE_SIZE"),

		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		AnalystDatabaseURL: v.GetString("ANALYST_DATABASE_URL"),

		Neo4jURI:      v.GetString("NEO4J_URI"),
		Neo4jUser:     v.GetString("NEO4J_USER"),
		Neo4jPassword: v.GetString("NEO4J_PASSWORD"),
		Neo4jDatabase: v.GetString("NEO4J_DATABASE"),

		RedisAddr:    v.GetString("REDIS_ADDR"),
		RedisChannel: v.GetString("REDIS_CHANNEL"),

		OpenAIAPIKey:   v.GetString("OPENAI_API_KEY"),
		LLMModel:       v.GetString("LLM_MODEL"),
		EmbeddingModel: v.GetString("EMBEDDING_MODEL"),

		VectorPersistPath: v.GetString("VECTOR_PERSIST_PATH"),
		VectorCollection:  v.GetString("VECTOR_COLLECTION"),

		MaxRetries:         v.GetInt("MAX_RETRIES"),
		TopK:               v.GetInt("TOP_K"),
		SocketWriteTimeout: v.GetDuration("SOCKET_WRITE_TIMEOUT"),
		StreamHeartbeat:    v.GetDuration("STREAM_HEARTBEAT"),

		OtelEnabled:     v.GetBool("OTEL_ENABLED"),
		OtelEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelInsecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		OtelSampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),
		OtelHeaders:     v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
		MetricsEnabled:  v.GetBool("METRICS_ENABLED"),
	}
	if cfg.AnalystDatabaseURL == "" && cfg.DBDriver == "postgres" {
		cfg.AnalystDatabaseURL = cfg.DatabaseURL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	log.Info("config loaded",
		"app", cfg.AppName,
		"version", cfg.AppVersion,
		"http_addr", cfg.HTTPAddr,
		"db_driver", cfg.DBDriver,
		"neo4j", cfg.Neo4jURI != "",
		"redis", cfg.RedisAddr != "",
		"llm", cfg.OpenAIAPIKey != "",
		"gcs_uploads", cfg.GCSUploadBucket != "",
	)
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
