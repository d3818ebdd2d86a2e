// gateway is the routegate binary: it loads configuration, wires the
// routing core to its storage/RAG/observability collaborators, and serves
// the OpenAI-compatible completion endpoint over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"routegate/internal/completion"
	"routegate/internal/config"
	"routegate/internal/observability"
	"routegate/internal/rag"
	"routegate/internal/router"
	"routegate/internal/server/httpapi"
	"routegate/internal/storage"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("routegate: %v", err)
	}
}

// newRootCommand builds the CLI surface: persistent flags bound into viper
// before config.Load runs, a version subcommand, RunE driving the actual
// work.
func newRootCommand() *cobra.Command {
	var port int
	var configPath string

	root := &cobra.Command{
		Use:   "gateway",
		Short: "routegate LLM request router",
		Long:  "routegate routes OpenAI-compatible chat completions between a strong and weak backend model per request.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if configPath != "" {
				v.SetConfigFile(configPath)
			}
			if port != 0 {
				v.Set("server.port", port)
			}
			return run(cmd.Context(), v)
		},
	}

	root.PersistentFlags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config/env)")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to routegate-config.json")
	root.AddCommand(versionCommand())
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the routegate version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("routegate dev")
			return nil
		},
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	embedder, err := rag.NewEmbedder(rag.EmbedderConfig{
		Model:  cfg.RAG.EmbeddingModel,
		APIKey: cfg.DefaultPair.OpenAIAPIKey,
	})
	if err != nil {
		return fmt.Errorf("construct embedder: %w", err)
	}
	batchEmbedder := batchEmbedderAdapter{embedder}

	difficulty, err := router.NewMFScorer(batchEmbedder, embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("construct difficulty scorer: %w", err)
	}

	metrics, err := observability.New()
	if err != nil {
		return fmt.Errorf("construct metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	if cfg.Tracing.Enabled {
		tp, err := observability.NewTracerProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("construct tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	policy := &router.Policy{Embedder: batchEmbedder, Difficulty: difficulty}
	driver := &completion.Driver{Policy: policy, NewProvider: completion.NewProvider}

	engine := httpapi.NewRouter(httpapi.Deps{
		Driver:      driver,
		Store:       store,
		Metrics:     metrics,
		DefaultPair: cfg.DefaultPair,
		RAGConfig:   cfg.RAG,
		Embedder:    embedder,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: time.Duration(cfg.Server.RequestTimeoutS) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return serveUntilSignal(server)
}

// batchEmbedderAdapter satisfies router.Embedder (one call, many texts)
// over rag.Embedder's EmbedBatch method, since the routing core and the
// RAG package settled on different method names for the same shape.
type batchEmbedderAdapter struct {
	*rag.Embedder
}

func (a batchEmbedderAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return a.EmbedBatch(ctx, texts)
}

// serveUntilSignal runs server until it errors or the process receives
// SIGINT/SIGTERM, in which case it drains in-flight requests with a
// bounded grace period.
func serveUntilSignal(server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("routegate listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err == nil || err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		log.Printf("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(ctx)

		if serveErr := <-errCh; serveErr != nil && serveErr != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", serveErr)
		}
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		return nil
	}
}
