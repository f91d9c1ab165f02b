package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	HTTPPort    string
	DatabaseURL string
	UploadDir   string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey       string
	EmbeddingModel     string
	EmbeddingDimension int

	PineconeAPIKey string
	PineconeIndex  string
	PineconeCloud  string
	PineconeRegion string

	ChunkSize    int
	ChunkOverlap int

	// Numeric range of Act sections prioritized when regulation text
	// has to be cut down before the LLM call.
	PrioritySectionMin int
	PrioritySectionMax int
}

var AppConfig Config

func LoadConfig() error {
	_ = godotenv.Load() // .env is optional, rely on the environment otherwise

	AppConfig = Config{
		AppEnv:      getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8000"),
		DatabaseURL: getEnv("DATABASE_URL", "compliguard.db"),
		UploadDir:   getEnv("UPLOAD_DIR", "temp"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 384),

		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),
		PineconeIndex:  getEnv("PINECONE_INDEX", "compliguard-index"),
		PineconeCloud:  getEnv("PINECONE_CLOUD", "aws"),
		PineconeRegion: getEnv("PINECONE_REGION", "us-west-2"),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1500),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 300),

		PrioritySectionMin: getEnvAsInt("PRIORITY_SECTION_MIN", 4),
		PrioritySectionMax: getEnvAsInt("PRIORITY_SECTION_MAX", 9),
	}

	if AppConfig.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if AppConfig.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}
	if AppConfig.PineconeAPIKey == "" {
		return fmt.Errorf("PINECONE_API_KEY environment variable is required")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
