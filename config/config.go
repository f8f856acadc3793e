// Package config loads process-wide configuration for the Chronofact core:
// vector store connection, embedder/generator provider selection, request
// limits, retrieval fusion weights, and memory decay parameters.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// VectorStoreMode selects which vectorstore backend is constructed at startup.
type VectorStoreMode string

const (
	ModeMemory VectorStoreMode = "memory"
	ModeLocal  VectorStoreMode = "local"
	ModeDocker VectorStoreMode = "docker"
	ModeCloud  VectorStoreMode = "cloud"
)

type VectorStoreConfig struct {
	Mode        VectorStoreMode `yaml:"mode"`
	URL         string          `yaml:"url"`
	ApiKey      string          `yaml:"api_key"`
	StoragePath string          `yaml:"storage_path"`

	// Driver overrides Mode's backend selection when set to "postgres" - an
	// alternate relational backend for operators who already run Postgres,
	// not gated by Mode itself (SPEC_FULL.md §4.2).
	Driver string `yaml:"driver"`
}

type EmbedderConfig struct {
	TextModel       string `yaml:"text_model"`
	MultimodalModel string `yaml:"multimodal_model"`
	ApiKey          string `yaml:"api_key"`
}

type GeneratorConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	ApiKey   string `yaml:"api_key"`
}

type LimitsConfig struct {
	RequestDeadline time.Duration `yaml:"request_deadline_ms"`
	LLMRatePerMin   int           `yaml:"llm_rate_per_min"`
	ImageMaxBytes   int64         `yaml:"image_max_bytes"`
}

type RetrievalWeights struct {
	Dense       float64 `yaml:"w_d"`
	Sparse      float64 `yaml:"w_s"`
	Multimodal  float64 `yaml:"w_m"`
	Credibility float64 `yaml:"w_c"`
}

type RetrievalConfig struct {
	Weights RetrievalWeights `yaml:"weights"`
	RRFK    int              `yaml:"rrf_k"`
}

type DecayRates struct {
	Interaction float64 `yaml:"interaction"`
	Fact        float64 `yaml:"fact"`
	Preference  float64 `yaml:"preference"`
}

type MemoryConfig struct {
	DecayRates     DecayRates `yaml:"decay_rates"`
	TauDelete      float64    `yaml:"tau_delete"`
	ReinforceBeta  float64    `yaml:"reinforce_beta"`
	RedisURL       string     `yaml:"redis_url"`
}

// Config is the full process-wide configuration, constructed once at startup
// and passed by handle to every component (C1-C7). No component reaches for
// a process-wide singleton.
type Config struct {
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Limits      LimitsConfig      `yaml:"limits"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Memory      MemoryConfig      `yaml:"memory"`

	HTTPAddr string `yaml:"http_addr"`

	CollectionPosts     string `yaml:"collection_posts"`
	CollectionKnowledge string `yaml:"collection_knowledge"`
	CollectionMemory    string `yaml:"collection_memory"`
}

// Load builds a Config from (in increasing priority) defaults, an optional
// YAML file, a .env file, and process environment variables. Matches the
// layered approach the original Python service used (dotenv + os.environ),
// generalized to also accept a YAML overlay for non-shell deployments.
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if len(yamlPath) > 0 {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
			// request_deadline_ms is a millisecond count; decoded straight
			// into a time.Duration it would be read as nanoseconds.
			var ms struct {
				Limits struct {
					RequestDeadlineMS int64 `yaml:"request_deadline_ms"`
				} `yaml:"limits"`
			}
			if yaml.Unmarshal(data, &ms) == nil && ms.Limits.RequestDeadlineMS > 0 {
				cfg.Limits.RequestDeadline = time.Duration(ms.Limits.RequestDeadlineMS) * time.Millisecond
			}
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

func defaults() Config {
	return Config{
		VectorStore: VectorStoreConfig{
			Mode:        ModeLocal,
			StoragePath: filepath.Join("data", "chronofact"),
		},
		Embedder: EmbedderConfig{
			TextModel:       "text-embedding-3-small",
			MultimodalModel: "embedding-001",
		},
		Generator: GeneratorConfig{
			Provider: "anthropic",
			Model:    "claude-3-5-sonnet-latest",
		},
		Limits: LimitsConfig{
			RequestDeadline: 30 * time.Second,
			LLMRatePerMin:   60,
			ImageMaxBytes:   8 << 20,
		},
		Retrieval: RetrievalConfig{
			Weights: RetrievalWeights{Dense: 0.55, Sparse: 0.25, Multimodal: 0.15, Credibility: 0.05},
			RRFK:    60,
		},
		Memory: MemoryConfig{
			DecayRates:    DecayRates{Interaction: 0.02, Fact: 0.005, Preference: 0.01},
			TauDelete:     0.2,
			ReinforceBeta: 0.1,
		},
		HTTPAddr: ":8080",

		CollectionPosts:     "x_posts",
		CollectionKnowledge: "knowledge_facts",
		CollectionMemory:    "session_memory",
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VECTOR_STORE_MODE"); len(v) > 0 {
		cfg.VectorStore.Mode = VectorStoreMode(strings.ToLower(v))
	}
	if v := os.Getenv("VECTOR_STORE_URL"); len(v) > 0 {
		cfg.VectorStore.URL = v
	}
	if v := os.Getenv("VECTOR_STORE_API_KEY"); len(v) > 0 {
		cfg.VectorStore.ApiKey = v
	}
	if v := os.Getenv("VECTOR_STORE_STORAGE_PATH"); len(v) > 0 {
		cfg.VectorStore.StoragePath = v
	}
	if v := os.Getenv("VECTOR_STORE_DRIVER"); len(v) > 0 {
		cfg.VectorStore.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("EMBEDDER_TEXT_MODEL"); len(v) > 0 {
		cfg.Embedder.TextModel = v
	}
	if v := os.Getenv("EMBEDDER_MULTIMODAL_MODEL"); len(v) > 0 {
		cfg.Embedder.MultimodalModel = v
	}
	if v := os.Getenv("EMBEDDER_API_KEY"); len(v) > 0 {
		cfg.Embedder.ApiKey = v
	}
	if v := os.Getenv("GENERATOR_PROVIDER"); len(v) > 0 {
		cfg.Generator.Provider = v
	}
	if v := os.Getenv("GENERATOR_MODEL"); len(v) > 0 {
		cfg.Generator.Model = v
	}
	if v := os.Getenv("GENERATOR_API_KEY"); len(v) > 0 {
		cfg.Generator.ApiKey = v
	}
	if v := intEnv("LIMITS_REQUEST_DEADLINE_MS"); v > 0 {
		cfg.Limits.RequestDeadline = time.Duration(v) * time.Millisecond
	}
	if v := intEnv("LIMITS_LLM_RATE_PER_MIN"); v > 0 {
		cfg.Limits.LLMRatePerMin = v
	}
	if v := intEnv("LIMITS_IMAGE_MAX_BYTES"); v > 0 {
		cfg.Limits.ImageMaxBytes = int64(v)
	}
	if v := floatEnv("RETRIEVAL_WEIGHT_DENSE"); v > 0 {
		cfg.Retrieval.Weights.Dense = v
	}
	if v := floatEnv("RETRIEVAL_WEIGHT_SPARSE"); v > 0 {
		cfg.Retrieval.Weights.Sparse = v
	}
	if v := floatEnv("RETRIEVAL_WEIGHT_MULTIMODAL"); v > 0 {
		cfg.Retrieval.Weights.Multimodal = v
	}
	if v := floatEnv("RETRIEVAL_WEIGHT_CREDIBILITY"); v > 0 {
		cfg.Retrieval.Weights.Credibility = v
	}
	if v := intEnv("RETRIEVAL_RRF_K"); v > 0 {
		cfg.Retrieval.RRFK = v
	}
	if v := floatEnv("MEMORY_DECAY_INTERACTION"); v > 0 {
		cfg.Memory.DecayRates.Interaction = v
	}
	if v := floatEnv("MEMORY_DECAY_FACT"); v > 0 {
		cfg.Memory.DecayRates.Fact = v
	}
	if v := floatEnv("MEMORY_DECAY_PREFERENCE"); v > 0 {
		cfg.Memory.DecayRates.Preference = v
	}
	if v := floatEnv("MEMORY_TAU_DELETE"); v > 0 {
		cfg.Memory.TauDelete = v
	}
	if v := floatEnv("MEMORY_REINFORCE_BETA"); v > 0 {
		cfg.Memory.ReinforceBeta = v
	}
	if v := os.Getenv("MEMORY_REDIS_URL"); len(v) > 0 {
		cfg.Memory.RedisURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); len(v) > 0 {
		cfg.HTTPAddr = v
	}
}

func intEnv(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func floatEnv(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}
