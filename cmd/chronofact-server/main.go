// Command chronofact-server wires C1-C7 into the HTTP surface server/http
// defines and serves it until terminated, grounded on the standard
// net/http.Server + os/signal.NotifyContext graceful-shutdown idiom - the
// teacher's own cmd/ entrypoints (cmd/demo, cmd/quickstart) are one-shot
// scripted runs with no listening server to model this on, so this shape
// follows plain idiomatic Go rather than a pack file.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chronofact/chronofact/config"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/embedder"
	embgoogle "github.com/chronofact/chronofact/embedder/google"
	embopenai "github.com/chronofact/chronofact/embedder/openai"
	"github.com/chronofact/chronofact/generator"
	genanthropic "github.com/chronofact/chronofact/generator/anthropic"
	genollama "github.com/chronofact/chronofact/generator/ollama"
	genopenai "github.com/chronofact/chronofact/generator/openai"
	"github.com/chronofact/chronofact/memory"
	"github.com/chronofact/chronofact/observability"
	"github.com/chronofact/chronofact/pipeline"
	"github.com/chronofact/chronofact/ratelimit"
	"github.com/chronofact/chronofact/retriever"
	"github.com/chronofact/chronofact/server"
	chttp "github.com/chronofact/chronofact/server/http"
	"github.com/chronofact/chronofact/vectorstore"
	vsmemory "github.com/chronofact/chronofact/vectorstore/memory"
	"github.com/chronofact/chronofact/vectorstore/postgres"
	"github.com/chronofact/chronofact/vectorstore/qdrant"
	"github.com/chronofact/chronofact/vectorstore/sqlite"
)

// textVectorDim and multimodalVectorDim size the collections' named vectors.
// 1536 matches OpenAI's text-embedding-3-small; 768 matches Google's
// embedding-001 multimodal output - both are the configs' own defaults.
const (
	textVectorDim       = 1536
	multimodalVectorDim = 768
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var yamlPath string
	if len(os.Args) > 1 {
		yamlPath = os.Args[1]
	}

	cfg, err := config.Load(yamlPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.Init("chronofact-server")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store := buildStore(cfg.VectorStore)
	if err := ensureCollections(ctx, store, cfg); err != nil {
		slog.Error("ensure collections", "error", err)
		os.Exit(1)
	}

	textEmbedder, multimodalEmbedder := buildEmbedders(cfg.Embedder)

	limiter := buildLimiter(cfg.Memory, cfg.Limits)
	provider := buildGeneratorProvider(cfg.Generator)
	gen := generator.New(provider, limiter)

	bm25, err := retriever.NewBM25Index()
	if err != nil {
		slog.Error("build bm25 index", "error", err)
		os.Exit(1)
	}
	if err := backfillBM25(ctx, store, cfg.CollectionPosts, bm25); err != nil {
		slog.Warn("bm25 backfill incomplete", "error", err)
	}

	ret := retriever.New(store, bm25, textEmbedder, cfg.CollectionPosts, cfg.Retrieval)
	mem := memory.New(store, textEmbedder, cfg.CollectionMemory, cfg.Memory)
	go mem.RunSweep(ctx, 0, 0)

	pl := pipeline.New(gen, ret, mem, textEmbedder, multimodalEmbedder, cfg.Limits)

	router := chttp.NewRouter(chttp.RouterConfig{
		Health:    chttp.NewHealthHandler(textEmbedder, store, cfg.CollectionPosts),
		Timeline:  chttp.NewTimelineHandler(pl, cfg.Limits.ImageMaxBytes),
		Verify:    chttp.NewVerifyHandler(gen),
		Detect:    chttp.NewDetectHandler(gen),
		FollowUp:  chttp.NewFollowUpHandler(gen),
		Recommend: chttp.NewRecommendHandler(ret),
	}, server.NewOptions(server.WithAddr(cfg.HTTPAddr)))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("chronofact-server listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// buildStore selects a backend per SPEC_FULL.md §4.2: cloud/docker share the
// qdrant client (differing only in whether an api_key is set), local uses
// sqlite, memory uses the in-process map. Postgres is not gated by Mode at
// all - it's an alternate relational backend for operators who already run
// Postgres, selected explicitly via vector_store.driver regardless of mode.
func buildStore(cfg config.VectorStoreConfig) vectorstore.Store {
	if cfg.Driver == "postgres" {
		return postgres.New(vectorstore.WithLocation(cfg.URL))
	}

	switch cfg.Mode {
	case config.ModeMemory:
		return vsmemory.New()
	case config.ModeLocal:
		return sqlite.New(vectorstore.WithPath(cfg.StoragePath))
	case config.ModeDocker, config.ModeCloud:
		return qdrant.New(vectorstore.WithLocation(cfg.URL), vectorstore.WithApiKey(cfg.ApiKey))
	default:
		return vsmemory.New()
	}
}

func ensureCollections(ctx context.Context, store vectorstore.Store, cfg config.Config) error {
	postVectors := []vectorstore.VectorSpec{
		{Name: domain.VectorText, Dim: textVectorDim},
		{Name: domain.VectorMultimodal, Dim: multimodalVectorDim},
	}
	postIndexes := []vectorstore.PayloadIndexSpec{
		{Field: "credibility_score", FieldType: "float"},
		{Field: "location", FieldType: "keyword"},
		{Field: "timestamp", FieldType: "datetime"},
	}
	if err := store.EnsureCollection(ctx, cfg.CollectionPosts, postVectors, postIndexes); err != nil {
		return err
	}

	factVectors := []vectorstore.VectorSpec{{Name: domain.VectorText, Dim: textVectorDim}}
	if err := store.EnsureCollection(ctx, cfg.CollectionKnowledge, factVectors, nil); err != nil {
		return err
	}

	memVectors := []vectorstore.VectorSpec{{Name: domain.VectorText, Dim: textVectorDim}}
	memIndexes := []vectorstore.PayloadIndexSpec{
		{Field: "session_id", FieldType: "keyword"},
		{Field: "relevance_score", FieldType: "float"},
	}
	return store.EnsureCollection(ctx, cfg.CollectionMemory, memVectors, memIndexes)
}

func buildEmbedders(cfg config.EmbedderConfig) (embedder.Embedder, embedder.MultimodalEmbedder) {
	text := embopenai.New(embedder.WithApiKey(cfg.ApiKey), embedder.WithModel(cfg.TextModel))

	var multimodal embedder.MultimodalEmbedder
	if len(cfg.MultimodalModel) > 0 {
		multimodal = embgoogle.New(embedder.WithApiKey(cfg.ApiKey), embedder.WithModel(cfg.MultimodalModel))
	}

	return text, multimodal
}

func buildGeneratorProvider(cfg config.GeneratorConfig) generator.Provider {
	opts := []generator.Option{generator.WithApiKey(cfg.ApiKey), generator.WithModel(cfg.Model)}
	switch cfg.Provider {
	case "openai":
		return genopenai.New(opts...)
	case "ollama":
		return genollama.New(opts...)
	default:
		return genanthropic.New(opts...)
	}
}

func buildLimiter(memCfg config.MemoryConfig, limits config.LimitsConfig) ratelimit.Limiter {
	if len(memCfg.RedisURL) > 0 {
		if lim, err := ratelimit.NewRedisLimiter(memCfg.RedisURL, limits.LLMRatePerMin, "chronofact:llm"); err == nil {
			return lim
		}
		slog.Warn("redis limiter unavailable, falling back to in-process token bucket")
	}
	return ratelimit.NewTokenBucket(limits.LLMRatePerMin)
}

// backfillBM25 loads every existing post's text into the process-local
// sparse index at startup, since bleve holds no state across restarts.
func backfillBM25(ctx context.Context, store vectorstore.Store, collection string, bm25 *retriever.BM25Index) error {
	cursor := ""
	for {
		page, err := store.Scroll(ctx, collection, vectorstore.Filter{}, cursor, 500)
		if err != nil {
			return err
		}
		for _, p := range page.Points {
			_ = bm25.Index(retriever.PostFromPoint(p))
		}
		if len(page.Cursor) == 0 {
			return nil
		}
		cursor = page.Cursor
	}
}
