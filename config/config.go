// Package config loads runtime configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// EmbeddingsConfig selects the embedding provider and model.
type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

// LLMConfig selects the generative model used on the expensive path.
type LLMConfig struct {
	Provider string
	Model    string
}

// ChunkingConfig controls how extracted text is split before embedding.
type ChunkingConfig struct {
	MaxSize int
	Overlap int
}

// RetrievalConfig controls similarity search behavior.
type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
}

// AnswerConfig controls when retrieved context counts as sufficient.
// Rule is "top" (highest score meets the bar) or "mean" (average of
// retained scores meets the bar).
type AnswerConfig struct {
	SufficiencyRule      string
	SufficiencyThreshold float64
}

// RetryConfig bounds the exponential backoff applied to external calls.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

type Config struct {
	PostgresDSN    string
	Namespace      string
	MaxUploadBytes int64
	RequestTimeout time.Duration

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	Embeddings EmbeddingsConfig
	LLM        LLMConfig
	Chunking   ChunkingConfig
	Retrieval  RetrievalConfig
	Answer     AnswerConfig
	Retry      RetryConfig
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; explicit environment variables win.
func Load() Config {
	_ = godotenv.Load()

	threshold := getEnvFloat("SIMILARITY_THRESHOLD", 0.75)

	return Config{
		PostgresDSN:    getEnv("POSTGRES_DSN", "postgres://localhost:5432/ragcore?sslmode=disable"),
		Namespace:      getEnv("INDEX_NAMESPACE", "default"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-large"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 3072),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		},
		Chunking: ChunkingConfig{
			MaxSize: getEnvInt("CHUNK_MAX_SIZE", 1000),
			Overlap: getEnvInt("CHUNK_OVERLAP", 200),
		},
		Retrieval: RetrievalConfig{
			TopK:                getEnvInt("RETRIEVAL_TOP_K", 5),
			SimilarityThreshold: threshold,
		},
		Answer: AnswerConfig{
			SufficiencyRule:      getEnv("ANSWER_SUFFICIENCY_RULE", "top"),
			SufficiencyThreshold: getEnvFloat("ANSWER_SUFFICIENCY_THRESHOLD", threshold),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("RETRY_INITIAL_BACKOFF", 500*time.Millisecond),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
