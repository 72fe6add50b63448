package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	APIPort        string `validate:"required,numeric"`
	APIMaxInFlight int    `validate:"gte=0"`
	APIQueueWaitMS int    `validate:"gte=0"`
	LogLevel       string `validate:"oneof=debug info warn warning error"`

	OpenAIAPIKey          string
	OpenAIBaseURL         string `validate:"required,url"`
	OpenAIModel           string `validate:"required"`
	OpenAIForceToolChoice bool
	OpenAIWebSearchTool   string `validate:"required"`
	OpenAITimeoutSeconds  int    `validate:"gt=0"`

	VectorStoreID string

	WebSearchProvider string `validate:"oneof=openai gemini"`
	GeminiAPIKey      string `validate:"required_if=WebSearchProvider gemini"`
	GeminiModel       string
	GeminiBaseURL     string `validate:"omitempty,url"`

	ReferenceSource             string `validate:"oneof=sheets xlsx postgres"`
	GoogleCredentialsJSON       string
	GoogleAPIKey                string
	GoogleSpreadsheetID         string
	GoogleSpreadsheetRange      string
	GoogleSpreadsheetEndpoint   string `validate:"omitempty,url"`
	ReferenceWorkbookPath       string `validate:"required_if=ReferenceSource xlsx"`
	ReferenceWorkbookRange      string
	ReferencePostgresDSN        string `validate:"required_if=ReferenceSource postgres"`
	ReferenceLoadTimeoutSeconds int    `validate:"gt=0"`

	PolicyFile string

	NATSURL        string `validate:"required"`
	NATSSubject    string `validate:"required"`
	NATSQueueGroup string `validate:"required"`

	RetryMaxAttempts      int `validate:"gte=1,lte=10"`
	RetryInitialBackoffMS int `validate:"gt=0"`
	BreakerEnabled        bool

	WorkerMetricsPort string `validate:"required,numeric"`
}

func Load() Config {
	return Config{
		APIPort:        mustEnv("API_PORT", "8080"),
		APIMaxInFlight: mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIQueueWaitMS: mustEnvInt("API_QUEUE_WAIT_MS", 500),
		LogLevel:       strings.ToLower(mustEnv("LOG_LEVEL", "info")),

		OpenAIAPIKey:          mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           mustEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIForceToolChoice: mustEnvBool("OPENAI_FORCE_TOOL_CHOICE", true),
		OpenAIWebSearchTool:   mustEnv("OPENAI_WEB_SEARCH_TOOL", "web_search_preview"),
		OpenAITimeoutSeconds:  mustEnvInt("OPENAI_TIMEOUT_SECONDS", 60),

		VectorStoreID: strings.TrimSpace(mustEnv("VECTOR_STORE_ID", "")),

		WebSearchProvider: strings.ToLower(mustEnv("WEB_SEARCH_PROVIDER", "openai")),
		GeminiAPIKey:      mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:       mustEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:     mustEnv("GEMINI_BASE_URL", ""),

		ReferenceSource:             strings.ToLower(mustEnv("REFERENCE_SOURCE", "sheets")),
		GoogleCredentialsJSON:       mustEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleAPIKey:                mustEnv("GOOGLE_API_KEY", ""),
		GoogleSpreadsheetID:         mustEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSpreadsheetRange:      mustEnv("GOOGLE_SPREADSHEET_RANGE", "Sheet1!A:B"),
		GoogleSpreadsheetEndpoint:   mustEnv("GOOGLE_SPREADSHEET_ENDPOINT", ""),
		ReferenceWorkbookPath:       mustEnv("REFERENCE_WORKBOOK_PATH", ""),
		ReferenceWorkbookRange:      mustEnv("REFERENCE_WORKBOOK_RANGE", "Sheet1!A:B"),
		ReferencePostgresDSN:        mustEnv("REFERENCE_POSTGRES_DSN", ""),
		ReferenceLoadTimeoutSeconds: mustEnvInt("REFERENCE_LOAD_TIMEOUT_SECONDS", 20),

		PolicyFile: mustEnv("POLICY_FILE", ""),

		NATSURL:        mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:    mustEnv("NATS_SUBJECT", "vinuni.questions"),
		NATSQueueGroup: mustEnv("NATS_QUEUE_GROUP", "answer-workers"),

		RetryMaxAttempts:      mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS: mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 200),
		BreakerEnabled:        mustEnvBool("BREAKER_ENABLED", true),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects configurations the process cannot start with, such as an
// unknown provider name. Missing credentials are reported by Warnings.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %q (value %q)", fieldErr.Field(), fieldErr.Tag(), fmt.Sprint(fieldErr.Value())))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// Warnings lists settings that leave part of the pipeline degraded. Each
// affected call still returns a user-safe answer.
func (c Config) Warnings() []string {
	var out []string
	if c.OpenAIAPIKey == "" {
		out = append(out, "OPENAI_API_KEY is empty: every search will fail")
	}
	if c.VectorStoreID == "" {
		out = append(out, "VECTOR_STORE_ID is empty: questions will get the unable-to-search message")
	}
	if c.WebSearchProvider == "gemini" && c.OpenAIForceToolChoice {
		out = append(out, "OPENAI_FORCE_TOOL_CHOICE applies to corpus search only: Gemini cannot force Google Search grounding")
	}
	if c.ReferenceSource == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			out = append(out, "GOOGLE_SPREADSHEET_ID is empty: citations will have no reference links")
		}
		if c.GoogleCredentialsJSON == "" && c.GoogleAPIKey == "" {
			out = append(out, "GOOGLE_CREDENTIALS_JSON and GOOGLE_API_KEY are empty: falling back to application default credentials")
		}
	}
	return out
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
