package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"TrendScope/internal/analysis"
	"TrendScope/internal/llm"
	"TrendScope/internal/narrative"
	"TrendScope/internal/trend"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// LLMConfig configures the model router and the narrative workflow.
type LLMConfig struct {
	Models            []string            `yaml:"models"`
	OpenAIModels      []string            `yaml:"openai_models"`
	OpenAIKey         string              `yaml:"openai_api_key"`
	OpenAIBaseURL     string              `yaml:"openai_base_url"`
	OpenRouterKey     string              `yaml:"openrouter_api_key"`
	OpenRouterBaseURL string              `yaml:"openrouter_base_url"`
	Temperature       *float64            `yaml:"temperature"` // nil until defaults; 0 is a valid setting
	MaxTokens         int                 `yaml:"max_tokens"`
	Timeout           time.Duration       `yaml:"timeout"`
	Parallel          bool                `yaml:"parallel"`
	StepModels        map[string][]string `yaml:"step_models"`
}

// AnalysisConfig configures the deterministic analysis.
type AnalysisConfig struct {
	DefaultYears    int               `yaml:"default_years"`
	WindowMonths    int               `yaml:"window_months"`
	StepMonths      int               `yaml:"step_months"`
	ParallelWindows bool              `yaml:"parallel_windows"`
	Benchmarks      map[string]string `yaml:"benchmarks"` // ticker suffix -> benchmark ticker
	DefaultBench    string            `yaml:"default_benchmark"`
}

// DataSourceConfig selects where price history comes from.
type DataSourceConfig struct {
	Provider        string        `yaml:"provider"` // yahoo, rest or synthetic
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	RequestInterval time.Duration `yaml:"request_interval"`
}

// CacheConfig configures the raw price cache.
type CacheConfig struct {
	Backend    string        `yaml:"backend"` // none, sqlite or redis
	SQLitePath string        `yaml:"sqlite_path"`
	TTL        time.Duration `yaml:"ttl"`
	Redis      struct {
		Addr     string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// LogConfig configures the zap logger and file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// Config holds all application configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	DataSource DataSourceConfig `yaml:"data_source"`
	Cache      CacheConfig      `yaml:"cache"`
	Telegram   struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ReportCron string   `yaml:"report_cron"`
		Watchlist  []string `yaml:"watchlist"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log   LogConfig `yaml:"log"`
	Proxy string    `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already set in the process.
	_ = godotenv.Load()

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("OPENAI_API_KEY", &cfg.LLM.OpenAIKey)
	setString("OPENROUTER_API_KEY", &cfg.LLM.OpenRouterKey)
	setString("OPENROUTER_BASE_URL", &cfg.LLM.OpenRouterBaseURL)
	setString("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	setString("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	setString("DATA_SOURCE", &cfg.DataSource.Provider)
	setString("DATA_SOURCE_BASE_URL", &cfg.DataSource.BaseURL)
	setString("DATA_SOURCE_API_KEY", &cfg.DataSource.APIKey)
	setString("HTTPS_PROXY", &cfg.Proxy)
	setString("CACHE_BACKEND", &cfg.Cache.Backend)
	setString("SQLITE_PATH", &cfg.Cache.SQLitePath)
	setString("REDIS_ADDR", &cfg.Cache.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	setString("CRON_REPORT", &cfg.Schedule.ReportCron)
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("LOG_LEVEL", &cfg.Log.Level)

	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Schedule.Watchlist = splitList(v)
	}
	if v := os.Getenv("ANALYSIS_YEARS"); v != "" {
		if years, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.DefaultYears = years
		}
	}
}

func applyDefaults(cfg *Config) {
	router := llm.DefaultRouterConfig()
	if len(cfg.LLM.Models) == 0 {
		cfg.LLM.Models = router.Models
	}
	if len(cfg.LLM.OpenAIModels) == 0 {
		cfg.LLM.OpenAIModels = router.OpenAIModels
	}
	if cfg.LLM.OpenAIBaseURL == "" {
		cfg.LLM.OpenAIBaseURL = router.OpenAIBaseURL
	}
	if cfg.LLM.OpenRouterBaseURL == "" {
		cfg.LLM.OpenRouterBaseURL = router.OpenRouterBaseURL
	}
	if cfg.LLM.Temperature == nil {
		t := router.Temperature
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = router.Timeout
	}
	if cfg.LLM.StepModels == nil {
		cfg.LLM.StepModels = map[string][]string{}
		for step, models := range narrative.DefaultStepModels() {
			cfg.LLM.StepModels[string(step)] = models
		}
	}

	engine := trend.DefaultOptions()
	if cfg.Analysis.DefaultYears == 0 {
		cfg.Analysis.DefaultYears = 10
	}
	if cfg.Analysis.WindowMonths == 0 {
		cfg.Analysis.WindowMonths = engine.WindowMonths
	}
	if cfg.Analysis.StepMonths == 0 {
		cfg.Analysis.StepMonths = engine.StepMonths
	}
	bench := analysis.DefaultOptions()
	if cfg.Analysis.Benchmarks == nil {
		cfg.Analysis.Benchmarks = bench.Benchmarks
	}
	if cfg.Analysis.DefaultBench == "" {
		cfg.Analysis.DefaultBench = bench.DefaultBenchmark
	}

	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.DataSource.RequestInterval == 0 {
		cfg.DataSource.RequestInterval = 500 * time.Millisecond
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "sqlite"
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = "data/trendscope.db"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 12 * time.Hour
	}

	if cfg.Schedule.ReportCron == "" {
		cfg.Schedule.ReportCron = "0 0 8 * * 1"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSize == 0 {
		cfg.Log.MaxSize = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAge == 0 {
		cfg.Log.MaxAge = 30
	}
	if cfg.Log.FileName == "" {
		cfg.Log.Console = true
	}
}

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.LLM.OpenAIKey == "" && c.LLM.OpenRouterKey == "" {
		add("one of OPENAI_API_KEY or OPENROUTER_API_KEY is required")
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("llm.temperature must be within [0, 2], got %v", *t)
	}
	graph := narrative.DefaultGraph()
	for step := range c.LLM.StepModels {
		if !graph.Has(narrative.StepName(step)) {
			add("llm.step_models: unknown step %q", step)
		}
	}
	if c.Analysis.DefaultYears < 5 || c.Analysis.DefaultYears > 15 {
		add("analysis.default_years must be within [5, 15], got %d", c.Analysis.DefaultYears)
	}
	if c.Analysis.WindowMonths <= 0 || c.Analysis.StepMonths <= 0 {
		add("analysis.window_months and analysis.step_months must be positive")
	}

	switch c.DataSource.Provider {
	case "yahoo", "synthetic":
	case "rest":
		if c.DataSource.BaseURL == "" {
			add("data_source.base_url is required for the rest provider")
		}
	default:
		add("data_source.provider %q is not one of yahoo, rest, synthetic", c.DataSource.Provider)
	}

	switch c.Cache.Backend {
	case "none":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			add("cache.sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.address is required for the redis backend")
		}
	default:
		add("cache.backend %q is not one of none, sqlite, redis", c.Cache.Backend)
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		add("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := cronParser.Parse(c.Schedule.ReportCron); err != nil {
		add("schedule.report_cron %q: %v", c.Schedule.ReportCron, err)
	}
	return errs
}

// Router converts the llm section into router settings.
func (c LLMConfig) Router() llm.RouterConfig {
	cfg := llm.RouterConfig{
		Models:            c.Models,
		OpenAIModels:      c.OpenAIModels,
		OpenAIKey:         c.OpenAIKey,
		OpenAIBaseURL:     c.OpenAIBaseURL,
		OpenRouterKey:     c.OpenRouterKey,
		OpenRouterBaseURL: c.OpenRouterBaseURL,
		MaxTokens:         c.MaxTokens,
		Timeout:           c.Timeout,
	}
	if c.Temperature != nil {
		cfg.Temperature = *c.Temperature
	}
	return cfg
}

// Steps returns the per-step model overrides keyed by step name.
func (c LLMConfig) Steps() narrative.StepModels {
	models := make(narrative.StepModels, len(c.StepModels))
	for step, list := range c.StepModels {
		models[narrative.StepName(step)] = list
	}
	return models
}

// TelegramEnabled reports whether Telegram credentials are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
