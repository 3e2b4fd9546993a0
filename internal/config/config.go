package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no path is given and the file exists.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes overrides; "__" separates sections,
// e.g. CLEANER_SERVER__TRANSPORT=http.
const EnvPrefix = "CLEANER_"

type Config struct {
	Server struct {
		Name           string   `koanf:"name"`
		Transport      string   `koanf:"transport"` // stdio | http
		Addr           string   `koanf:"addr"`
		AllowedOrigins []string `koanf:"allowed_origins"`
		// Capacity 0, the default, turns the limiter off.
		RateLimit struct {
			Capacity        int `koanf:"capacity"`
			RefillPerSecond int `koanf:"refill_per_second"`
		} `koanf:"rate_limit"`
	} `koanf:"server"`

	OpenAI struct {
		APIKey  string `koanf:"api_key"`
		Model   string `koanf:"model"`
		BaseURL string `koanf:"base_url"`
	} `koanf:"openai"`

	Analysis struct {
		Provider    string  `koanf:"provider"` // openai | anthropic | ollama
		Model       string  `koanf:"model"`
		APIKey      string  `koanf:"api_key"`
		BaseURL     string  `koanf:"base_url"`
		Language    string  `koanf:"language"`
		Temperature float64 `koanf:"temperature"`
		// MaxConcurrency caps parallel detector requests; 0 means no cap.
		MaxConcurrency int `koanf:"max_concurrency"`
	} `koanf:"analysis"`

	Minio struct {
		Endpoint   string `koanf:"endpoint"`
		AccessKey  string `koanf:"access_key"`
		SecretKey  string `koanf:"secret_key"`
		BucketName string `koanf:"bucket_name"`
		Region     string `koanf:"region"`
		UseSSL     bool   `koanf:"use_ssl"`
	} `koanf:"minio"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.name":                         "Dead Code Cleaner",
		"server.transport":                    "stdio",
		"server.addr":                         ":8080",
		"server.allowed_origins":              []string{"*"},
		"server.rate_limit.capacity":          0,
		"server.rate_limit.refill_per_second": 1,
		"openai.model":                        "gpt-3.5-turbo",
		"analysis.provider":                   "openai",
		"analysis.language":                   "Python",
		"analysis.temperature":                0.0,
		"analysis.max_concurrency":            0,
		"log.level":                           "info",
		"log.format":                          "json",
	}
}

// Load reads defaults, then the config file at path (YAML, or TOML by
// extension), then the environment. An empty path falls back to DefaultPath
// when it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	}

	// the names the model client has always read
	if err := k.Load(env.Provider("OPENAI_", ".", func(s string) string {
		switch s {
		case "OPENAI_API_KEY":
			return "openai.api_key"
		case "OPENAI_MODEL_NAME":
			return "openai.model"
		case "OPENAI_BASE_URL":
			return "openai.base_url"
		}
		return ""
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.fillAnalysisFromOpenAI()
	return &cfg, nil
}

// fillAnalysisFromOpenAI lets the analysts share the chat model settings
// unless they were configured separately.
func (c *Config) fillAnalysisFromOpenAI() {
	if !strings.EqualFold(c.Analysis.Provider, "openai") {
		return
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = c.OpenAI.Model
	}
	if c.Analysis.APIKey == "" {
		c.Analysis.APIKey = c.OpenAI.APIKey
	}
	if c.Analysis.BaseURL == "" {
		c.Analysis.BaseURL = c.OpenAI.BaseURL
	}
}

// MinioEnabled reports whether minio:// paths can be served.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != ""
}

// Validate checks what the server cannot start without.
func Validate(c *Config) error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai api key is required (OPENAI_API_KEY)"))
	}
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (allowed: stdio, http)", c.Server.Transport))
	}
	switch strings.ToLower(c.Analysis.Provider) {
	case "openai", "ollama":
	case "anthropic":
		if c.Analysis.APIKey == "" {
			errs = append(errs, errors.New("analysis.api_key is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown analysis provider %q (allowed: openai, anthropic, ollama)", c.Analysis.Provider))
	}
	if c.Server.RateLimit.Capacity < 0 || c.Server.RateLimit.RefillPerSecond < 0 {
		errs = append(errs, errors.New("server.rate_limit values must not be negative"))
	}
	if c.Analysis.MaxConcurrency < 0 {
		errs = append(errs, errors.New("analysis.max_concurrency must not be negative"))
	}
	if c.Analysis.Model == "" {
		errs = append(errs, errors.New("analysis.model is required"))
	}
	if c.MinioEnabled() && c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.bucket_name is required when minio.endpoint is set"))
	}
	return errors.Join(errs...)
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Parser()
	}
	return yamlParser{}
}

// yamlParser adapts yaml.v3 to koanf.Parser.
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(m)
}
