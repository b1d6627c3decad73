package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderHF     = "hf"
	ProviderGemini = "gemini"

	FormatMarkdown = "markdown"
	FormatPlain    = "plain"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	WebhookURL    string `yaml:"webhook_url"`

	Provider     string  `yaml:"llm_provider"`
	HFAPIKey     string  `yaml:"hf_api_key"`
	HFBaseURL    string  `yaml:"hf_base_url"`
	GeminiAPIKey string  `yaml:"gemini_api_key"`
	TextModel    string  `yaml:"text_model"`
	VisionModel  string  `yaml:"vision_model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`

	Workers     int      `yaml:"workers"` // 0 — без лимита одновременных запросов к модели
	ReplyFormat string   `yaml:"reply_format"`
	Ports       []string `yaml:"ports"`
	DatabaseURL string   `yaml:"database_url"`
	LogLevel    string   `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Provider:    ProviderHF,
		MaxTokens:   1500,
		Temperature: 0.7,
		Workers:     0,
		ReplyFormat: FormatMarkdown,
		Ports:       []string{"10000", "8080", "8000"},
		LogLevel:    "info",
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load читает YAML (если path задан и файл есть) и накрывает его переменными окружения.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyModelDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.TelegramToken = getEnv("TELEGRAM_TOKEN", c.TelegramToken)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.Provider))
	c.HFAPIKey = getEnv("HF_API_KEY", c.HFAPIKey)
	c.HFBaseURL = getEnv("HF_BASE_URL", c.HFBaseURL)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.TextModel = getEnv("TEXT_MODEL", c.TextModel)
	c.VisionModel = getEnv("VISION_MODEL", c.VisionModel)
	c.ReplyFormat = strings.ToLower(getEnv("REPLY_FORMAT", c.ReplyFormat))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = resolveDSN(c.DatabaseURL)

	// если платформа задала PORT, слушаем только его
	if p := getEnv("PORT", ""); p != "" {
		c.Ports = []string{p}
	}

	var err error
	if c.MaxTokens, err = envInt("MAX_TOKENS", c.MaxTokens); err != nil {
		return err
	}
	if c.Workers, err = envInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if v := getEnv("TEMPERATURE", ""); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("%w: TEMPERATURE=%q", ErrInvalid, v)
		}
		c.Temperature = f
	}
	return nil
}

func envInt(k string, def int) (int, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalid, k, v)
	}
	return n, nil
}

func (c *Config) applyModelDefaults() {
	switch c.Provider {
	case ProviderGemini:
		if c.TextModel == "" {
			c.TextModel = "gemini-2.5-flash"
		}
		if c.VisionModel == "" {
			c.VisionModel = "gemini-2.5-pro"
		}
	default:
		if c.TextModel == "" {
			c.TextModel = "Qwen/Qwen2.5-7B-Instruct"
		}
		if c.VisionModel == "" {
			c.VisionModel = "meta-llama/Llama-3.2-11B-Vision-Instruct"
		}
	}
}

// Validate проверяет обязательные ключи; ошибки собираются все сразу.
func (c *Config) Validate() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	switch c.Provider {
	case ProviderHF:
		if c.HFAPIKey == "" {
			errs = append(errs, errors.New("HF_API_KEY is required for provider hf"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for provider gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider))
	}
	if c.ReplyFormat != FormatMarkdown && c.ReplyFormat != FormatPlain {
		errs = append(errs, fmt.Errorf("unknown REPLY_FORMAT %q", c.ReplyFormat))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("WORKERS must not be negative, got %d", c.Workers))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}
	if len(c.Ports) == 0 {
		errs = append(errs, errors.New("no ports to listen on"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// resolveDSN: DATABASE_URL, иначе сборка из POSTGRES_*/PG*. Пустая строка: журнал выключен.
func resolveDSN(def string) string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	if def != "" {
		return def
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getEnv("PGHOST", "")
	if pass == "" && host == "" {
		return ""
	}
	if host == "" {
		host = "db"
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "studybot"), pass),
		Host:     net.JoinHostPort(host, getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "studybot"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
