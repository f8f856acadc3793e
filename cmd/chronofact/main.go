// Command chronofact is a kong-based CLI that runs a single timeline
// request against a locally-constructed pipeline and prints the result,
// mirroring original_source/src/cli.py's role as a one-shot local driver
// (not the HTTP server) - grounded on w-h-a-agent-go's own cmd/quickstart
// and cmd/demo, both flat kong option structs parsed with kong.Parse.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/chronofact/chronofact/config"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/embedder"
	embgoogle "github.com/chronofact/chronofact/embedder/google"
	embopenai "github.com/chronofact/chronofact/embedder/openai"
	"github.com/chronofact/chronofact/generator"
	genanthropic "github.com/chronofact/chronofact/generator/anthropic"
	"github.com/chronofact/chronofact/memory"
	"github.com/chronofact/chronofact/pipeline"
	"github.com/chronofact/chronofact/ratelimit"
	"github.com/chronofact/chronofact/retriever"
	vsmemory "github.com/chronofact/chronofact/vectorstore/memory"
)

var cli struct {
	ConfigFile     string  `help:"Optional YAML config overlay" default:""`
	Topic          string  `help:"Topic to build a timeline for" required:""`
	Limit          int     `help:"Maximum number of timeline events" default:"10"`
	Location       string  `help:"Optional location filter" default:""`
	MinCredibility float64 `help:"Minimum source credibility, 0..1" default:"0.3"`
	SessionID      string  `help:"Session id for memory reinforcement" default:"cli-session"`
}

func main() {
	kong.Parse(&cli)

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	store := vsmemory.New()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, cfg.CollectionPosts, nil, nil); err != nil {
		slog.Error("ensure posts collection", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureCollection(ctx, cfg.CollectionMemory, nil, nil); err != nil {
		slog.Error("ensure memory collection", "error", err)
		os.Exit(1)
	}

	textEmbedder := embopenai.New(embedder.WithApiKey(cfg.Embedder.ApiKey), embedder.WithModel(cfg.Embedder.TextModel))
	var multimodal embedder.MultimodalEmbedder
	if len(cfg.Embedder.MultimodalModel) > 0 {
		multimodal = embgoogle.New(embedder.WithApiKey(cfg.Embedder.ApiKey), embedder.WithModel(cfg.Embedder.MultimodalModel))
	}

	limiter := ratelimit.NewTokenBucket(cfg.Limits.LLMRatePerMin)
	provider := genanthropic.New(generator.WithApiKey(cfg.Generator.ApiKey), generator.WithModel(cfg.Generator.Model))
	gen := generator.New(provider, limiter)

	bm25, err := retriever.NewBM25Index()
	if err != nil {
		slog.Error("build bm25 index", "error", err)
		os.Exit(1)
	}

	ret := retriever.New(store, bm25, textEmbedder, cfg.CollectionPosts, cfg.Retrieval)
	mem := memory.New(store, textEmbedder, cfg.CollectionMemory, cfg.Memory)

	pl := pipeline.New(gen, ret, mem, textEmbedder, multimodal, cfg.Limits)

	resp, err := pl.Run(ctx, domain.TimelineRequest{
		Topic:          cli.Topic,
		Limit:          cli.Limit,
		Location:       cli.Location,
		MinCredibility: cli.MinCredibility,
		SessionID:      cli.SessionID,
	})
	if err != nil {
		slog.Error("timeline request failed", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		slog.Error("marshal response", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
