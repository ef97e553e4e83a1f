package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultUpstreamConcurrency = 1000

type Config struct {
	ServerHost string
	ServerPort string
	OpenAI     OpenAIConfig
	Assistants AssistantsConfig
	Polling    PollingConfig
	Journal    JournalConfig
	Logging    LoggingConfig
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
}

// AssistantsConfig selects between the single-assistant mode (DefaultID only)
// and the header-selected mode (Variants non-empty).
type AssistantsConfig struct {
	DefaultID       string
	Variants        map[string]string
	ForceFileSearch bool
	MaxConcurrency  int64
}

func (a AssistantsConfig) MultiVariant() bool {
	return len(a.Variants) > 0
}

type PollingConfig struct {
	Interval time.Duration
	MaxWait  time.Duration
}

type JournalConfig struct {
	PostgresDSN         string
	PostgresConnTimeout time.Duration
	PostgresMaxConns    int32
	MongoURI            string
	MongoDatabase       string
	MongoConnectTimeout time.Duration
}

func (j JournalConfig) Enabled() bool {
	return j.PostgresDSN != "" || j.MongoURI != ""
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	variants, err := parseVariants(os.Getenv("ASSISTANT_VARIANTS"))
	if err != nil {
		return nil, err
	}

	multi := len(variants) > 0

	concurrencyDefault := int64(0)
	if multi {
		concurrencyDefault = defaultUpstreamConcurrency
	}

	cfg := &Config{
		ServerHost: envOrDefault("HOST", "0.0.0.0"),
		ServerPort: envOrDefault("PORT", "8000"),
		OpenAI: OpenAIConfig{
			APIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL:     strings.TrimRight(envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			HTTPTimeout: parseDuration(envOrDefault("OPENAI_HTTP_TIMEOUT", "60s"), time.Minute),
		},
		Assistants: AssistantsConfig{
			DefaultID:       strings.TrimSpace(os.Getenv("ASSISTANT_ID")),
			Variants:        variants,
			ForceFileSearch: parseBool(envOrDefault("ASSISTANT_FORCE_FILE_SEARCH", strconv.FormatBool(multi)), multi),
			MaxConcurrency:  parseInt64(envOrDefault("UPSTREAM_MAX_CONCURRENCY", strconv.FormatInt(concurrencyDefault, 10)), concurrencyDefault),
		},
		Polling: PollingConfig{
			Interval: parseDuration(envOrDefault("POLL_INTERVAL", "100ms"), 100*time.Millisecond),
			MaxWait:  parseDuration(envOrDefault("POLL_MAX_WAIT", "0s"), 0),
		},
		Journal: JournalConfig{
			PostgresDSN:         strings.TrimSpace(os.Getenv("JOURNAL_POSTGRES_DSN")),
			PostgresConnTimeout: parseDuration(envOrDefault("JOURNAL_POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			PostgresMaxConns:    parseInt32(envOrDefault("JOURNAL_POSTGRES_MAX_CONNS", "8"), 8),
			MongoURI:            strings.TrimSpace(os.Getenv("JOURNAL_MONGO_URI")),
			MongoDatabase:       envOrDefault("JOURNAL_MONGO_DATABASE", "assistant_relay"),
			MongoConnectTimeout: parseDuration(envOrDefault("JOURNAL_MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "assistant-relay"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func (c *Config) validate() error {
	missing := make([]string, 0, 2)

	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Assistants.DefaultID == "" && !c.Assistants.MultiVariant() {
		missing = append(missing, "ASSISTANT_ID or ASSISTANT_VARIANTS")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Polling.Interval <= 0 {
		return errors.New("config: POLL_INTERVAL must be positive")
	}

	return nil
}

// parseVariants reads "label=asst_id" pairs separated by commas.
func parseVariants(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	variants := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		label, id, ok := strings.Cut(entry, "=")
		label = strings.TrimSpace(label)
		id = strings.TrimSpace(id)
		if !ok || label == "" || id == "" {
			return nil, fmt.Errorf("config: malformed ASSISTANT_VARIANTS entry %q", entry)
		}
		if _, dup := variants[label]; dup {
			return nil, fmt.Errorf("config: duplicate assistant variant %q", label)
		}
		variants[label] = id
	}

	return variants, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseInt64(value string, fallback int64) int64 {
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
