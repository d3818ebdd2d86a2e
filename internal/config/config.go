// Package config loads the gateway's layered configuration: built-in
// defaults, overridden by an optional JSON config file, overridden by
// environment variables, overridden by CLI flags, in that order.
package config

import (
	"strings"

	"github.com/spf13/viper"

	gwerrors "routegate/internal/errors"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	Server      ServerConfig
	DefaultPair DefaultPairConfig
	RAG         RAGConfig
	Storage     StorageConfig
	Tracing     TracingConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int
	RequestTimeoutS int
}

// DefaultPairConfig is the fallback strong/weak model pair served by
// /v1/models/defaults and used by chat-message requests that omit a pair
// of their own, seeded from STRONG_MODEL_NAME / WEAK_MODEL_NAME.
type DefaultPairConfig struct {
	StrongModelName string
	WeakModelName   string
	OpenAIAPIKey    string
}

// RAGConfig configures knowledge-base ingestion defaults.
type RAGConfig struct {
	EmbeddingModel  string
	ChunkSize       int
	ChunkOverlap    int
	RetrievalTopK   int
	SimilarityFloor float64
	VectorStoreDir  string
}

// StorageConfig configures the chat/message persistence layer.
type StorageConfig struct {
	DatabasePath string
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			RequestTimeoutS: 60,
		},
		DefaultPair: DefaultPairConfig{
			StrongModelName: "gpt-4o",
			WeakModelName:   "gpt-4o-mini",
		},
		RAG: RAGConfig{
			EmbeddingModel:  "text-embedding-3-small",
			ChunkSize:       800,
			ChunkOverlap:    200,
			RetrievalTopK:   4,
			SimilarityFloor: 0.6,
			VectorStoreDir:  "./data/vectorstore",
		},
		Storage: StorageConfig{
			DatabasePath: "./data/routegate.db",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "routegate",
			OTLPEndpoint: "localhost:4318",
			MetricsPort:  9090,
		},
	}
}

// Load resolves the gateway's configuration: defaults, then an optional
// "routegate-config.json" file (current directory or $HOME), then
// environment variables (ROUTEGATE_*, plus the bare OPENAI_API_KEY /
// STRONG_MODEL_NAME / WEAK_MODEL_NAME names), then the values already
// bound to CLI flags in v.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	cfg := defaults()
	bindDefaults(v, cfg)

	v.SetConfigName("routegate-config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, gwerrors.NewInternalError(err, "failed to read routegate-config.json")
		}
	}

	v.SetEnvPrefix("ROUTEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindBareEnvVars(v)

	return Config{
		Server: ServerConfig{
			Port:            v.GetInt("server.port"),
			RequestTimeoutS: v.GetInt("server.requesttimeouts"),
		},
		DefaultPair: DefaultPairConfig{
			StrongModelName: v.GetString("defaultpair.strongmodelname"),
			WeakModelName:   v.GetString("defaultpair.weakmodelname"),
			OpenAIAPIKey:    v.GetString("defaultpair.openaiapikey"),
		},
		RAG: RAGConfig{
			EmbeddingModel:  v.GetString("rag.embeddingmodel"),
			ChunkSize:       v.GetInt("rag.chunksize"),
			ChunkOverlap:    v.GetInt("rag.chunkoverlap"),
			RetrievalTopK:   v.GetInt("rag.retrievaltopk"),
			SimilarityFloor: v.GetFloat64("rag.similarityfloor"),
			VectorStoreDir:  v.GetString("rag.vectorstoredir"),
		},
		Storage: StorageConfig{
			DatabasePath: v.GetString("storage.databasepath"),
		},
		Tracing: TracingConfig{
			Enabled:      v.GetBool("tracing.enabled"),
			ServiceName:  v.GetString("tracing.servicename"),
			OTLPEndpoint: v.GetString("tracing.otlpendpoint"),
			MetricsPort:  v.GetInt("tracing.metricsport"),
		},
	}, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.requesttimeouts", cfg.Server.RequestTimeoutS)
	v.SetDefault("defaultpair.strongmodelname", cfg.DefaultPair.StrongModelName)
	v.SetDefault("defaultpair.weakmodelname", cfg.DefaultPair.WeakModelName)
	v.SetDefault("defaultpair.openaiapikey", cfg.DefaultPair.OpenAIAPIKey)
	v.SetDefault("rag.embeddingmodel", cfg.RAG.EmbeddingModel)
	v.SetDefault("rag.chunksize", cfg.RAG.ChunkSize)
	v.SetDefault("rag.chunkoverlap", cfg.RAG.ChunkOverlap)
	v.SetDefault("rag.retrievaltopk", cfg.RAG.RetrievalTopK)
	v.SetDefault("rag.similarityfloor", cfg.RAG.SimilarityFloor)
	v.SetDefault("rag.vectorstoredir", cfg.RAG.VectorStoreDir)
	v.SetDefault("storage.databasepath", cfg.Storage.DatabasePath)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.servicename", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.otlpendpoint", cfg.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.metricsport", cfg.Tracing.MetricsPort)
}

// bindBareEnvVars binds the three bare (non-ROUTEGATE_-prefixed)
// environment variables the gateway recognizes directly.
func bindBareEnvVars(v *viper.Viper) {
	_ = v.BindEnv("defaultpair.openaiapikey", "OPENAI_API_KEY")
	_ = v.BindEnv("defaultpair.strongmodelname", "STRONG_MODEL_NAME")
	_ = v.BindEnv("defaultpair.weakmodelname", "WEAK_MODEL_NAME")
}
