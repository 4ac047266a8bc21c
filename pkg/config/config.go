package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Scoring   ScoringConfig
	Ingestion IngestionConfig
	Events    EventsConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        int
	WriteTimeout       int
	BodyLimit          int
	RateLimitPerMinute int
	AllowedOrigins     []string
	Development        bool
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           int
	Password       string
	DB             int
	ClaimTTLSec    int
	AnalysisTTLSec int
}

type LLMConfig struct {
	Provider    string
	Endpoint    string
	APIKey      string
	APIVersion  string
	Model       string
	Temperature float32
	Seed        int
	MaxTokens   int
	TimeoutSec  int
	MaxRetries  int

	// HalfOpenRequests is how many trial calls the breaker lets through while
	// recovering from an outage.
	HalfOpenRequests int
}

type ScoringConfig struct {
	Rounds           int
	Reduction        string
	RoundRetries     int
	RoundConcurrency int
	CellConcurrency  int
	FailFast         bool
}

type IngestionConfig struct {
	TaskSheet     string
	OKRSheet      string
	SplitNumbered bool
}

type EventsConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

type SchedulerConfig struct {
	Enabled     bool
	ScoringCron string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) ClaimTTL() time.Duration {
	return time.Duration(c.ClaimTTLSec) * time.Second
}

func (c RedisConfig) AnalysisTTL() time.Duration {
	return time.Duration(c.AnalysisTTLSec) * time.Second
}

// Load reads config.yaml from the usual search paths.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads the given file, or searches the default paths when path is empty.
// A .env file in the working directory is applied to the environment first.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/okr-analyze")
	}

	v.SetEnvPrefix("OKR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindProviderEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Scoring.Rounds < 1 {
		errs = append(errs, fmt.Errorf("scoring.rounds must be at least 1, got %d", c.Scoring.Rounds))
	}
	if c.Scoring.RoundRetries < 0 {
		errs = append(errs, fmt.Errorf("scoring.roundRetries must not be negative"))
	}
	if c.Scoring.Reduction != "sum" && c.Scoring.Reduction != "mean" {
		errs = append(errs, fmt.Errorf("scoring.reduction must be sum or mean, got %q", c.Scoring.Reduction))
	}
	if c.Scoring.RoundConcurrency < 1 || c.Scoring.CellConcurrency < 1 {
		errs = append(errs, fmt.Errorf("scoring concurrency limits must be at least 1"))
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "azure" {
		errs = append(errs, fmt.Errorf("llm.provider must be openai or azure, got %q", c.LLM.Provider))
	}
	if c.LLM.Provider == "azure" && c.LLM.Endpoint == "" {
		errs = append(errs, fmt.Errorf("llm.endpoint is required for the azure provider"))
	}
	if c.LLM.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeoutSec must be positive"))
	}
	if c.Scheduler.Enabled && c.Scheduler.ScoringCron == "" {
		errs = append(errs, fmt.Errorf("scheduler.scoringCron is required when the scheduler is enabled"))
	}
	if c.Events.Enabled && c.Events.URL == "" {
		errs = append(errs, fmt.Errorf("events.url is required when events are enabled"))
	}

	return errors.Join(errs...)
}

// bindProviderEnv accepts the Azure/OpenAI variable names used by existing deployments.
func bindProviderEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"llm.apiKey":     {"OKR_LLM_APIKEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"llm.endpoint":   {"OKR_LLM_ENDPOINT", "AZURE_OPENAI_ENDPOINT"},
		"llm.apiVersion": {"OKR_LLM_APIVERSION", "AZURE_OPENAI_API_VERSION"},
		"llm.model":      {"OKR_LLM_MODEL", "AZURE_OPENAI_DEPLOYMENT"},
		"database.url":   {"OKR_DATABASE_URL", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 600)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.rateLimitPerMinute", 30)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)

	v.SetDefault("database.url", "./data/okr_tasks.db")
	v.SetDefault("database.maxOpenConns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.claimTTLSec", 900)
	v.SetDefault("redis.analysisTTLSec", 3600)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.apiVersion", "2024-12-01-preview")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.seed", 42)
	v.SetDefault("llm.maxTokens", 4096)
	v.SetDefault("llm.timeoutSec", 120)
	v.SetDefault("llm.maxRetries", 3)
	v.SetDefault("llm.halfOpenRequests", 4)

	v.SetDefault("scoring.rounds", 4)
	v.SetDefault("scoring.reduction", "sum")
	v.SetDefault("scoring.roundRetries", 2)
	v.SetDefault("scoring.roundConcurrency", 4)
	v.SetDefault("scoring.cellConcurrency", 1)
	v.SetDefault("scoring.failFast", false)

	v.SetDefault("ingestion.taskSheet", "assets/excel/team tasks spreadsheet.xlsx")
	v.SetDefault("ingestion.okrSheet", "assets/excel/okr.xlsx")
	v.SetDefault("ingestion.splitNumbered", true)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "")
	v.SetDefault("events.exchange", "okr.scoring.events")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.scoringCron", "0 2 * * *")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
