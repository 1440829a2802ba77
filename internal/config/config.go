package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// Env names are <SECTION>_<FIELD> (SERVER_PORT, AI_MAX_TOKENS,
// AZURE_OPENAI_API_KEY, ...). Leaf fields carry no envconfig tag, so
// envconfig never falls back to a bare name like API_KEY.
type Config struct {
	Server struct {
		Port           int               `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
		ReadTimeout    time.Duration     `yaml:"readTimeout" split_words:"true" validate:"gt=0"`
		WriteTimeout   time.Duration     `yaml:"writeTimeout" split_words:"true" validate:"gt=0"`
		IdleTimeout    time.Duration     `yaml:"idleTimeout" split_words:"true" validate:"gt=0"`
		MaxUploadBytes int64             `yaml:"maxUploadBytes" split_words:"true" validate:"min=0"`
		AllowedOrigins []string          `yaml:"allowedOrigins" split_words:"true"`
		APIKeys        map[string]string `yaml:"apiKeys" split_words:"true"`
		RateLimit      struct {
			RPS   float64 `yaml:"rps" split_words:"true" validate:"min=0"`
			Burst int     `yaml:"burst" split_words:"true" validate:"min=0"`
		} `yaml:"rateLimit" envconfig:"RATE_LIMIT"`
	} `yaml:"server" envconfig:"SERVER"`

	AI struct {
		Provider          string        `yaml:"provider" split_words:"true" validate:"oneof=azure openai"`
		MaxTokens         int           `yaml:"maxTokens" split_words:"true" validate:"min=1"`
		Timeout           time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
		RequestsPerSecond float64       `yaml:"requestsPerSecond" split_words:"true" validate:"min=0"`
		Burst             int           `yaml:"burst" split_words:"true" validate:"min=0"`
	} `yaml:"ai" envconfig:"AI"`

	// AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, AZURE_OPENAI_DEPLOYMENT_NAME
	AzureOpenAI struct {
		Endpoint       string `yaml:"endpoint" split_words:"true"`
		APIKey         string `yaml:"apiKey" split_words:"true"`
		DeploymentName string `yaml:"deployment" split_words:"true"`
		APIVersion     string `yaml:"apiVersion" split_words:"true"`
	} `yaml:"azureOpenAI" envconfig:"AZURE_OPENAI"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey" split_words:"true"`
		Model   string `yaml:"model" split_words:"true"`
		BaseURL string `yaml:"baseURL" split_words:"true"`
	} `yaml:"openAI" envconfig:"OPENAI"`

	Pipeline struct {
		Concurrency   int    `yaml:"concurrency" split_words:"true" validate:"min=1,max=64"`
		FailurePolicy string `yaml:"failurePolicy" split_words:"true" validate:"oneof=isolate abort"`
		RowPolicy     string `yaml:"rowPolicy" split_words:"true" validate:"oneof=strict lenient"`
	} `yaml:"pipeline" envconfig:"PIPELINE"`

	Minio struct {
		Enabled    bool   `yaml:"enabled" split_words:"true"`
		Endpoint   string `yaml:"endpoint" split_words:"true" validate:"required_if=Enabled true"`
		AccessKey  string `yaml:"accessKey" split_words:"true"`
		SecretKey  string `yaml:"secretKey" split_words:"true"`
		BucketName string `yaml:"bucketName" split_words:"true" validate:"required_if=Enabled true"`
		Region     string `yaml:"region" split_words:"true"`
		UseSSL     bool   `yaml:"useSSL" split_words:"true"`
	} `yaml:"minio" envconfig:"MINIO"`

	Log struct {
		Level       string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
		Development bool   `yaml:"development" split_words:"true"`
	} `yaml:"log" envconfig:"LOG"`
}

// Default returns a config with every optional knob filled in.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	// a run waits on one model call per question, so writes get a long budget
	c.Server.WriteTimeout = 10 * time.Minute
	c.Server.IdleTimeout = 60 * time.Second
	c.Server.MaxUploadBytes = 10 << 20
	c.Server.RateLimit.RPS = 1
	c.Server.RateLimit.Burst = 5
	c.AI.Provider = ProviderAzure
	c.AI.MaxTokens = 2000
	c.AI.Timeout = 60 * time.Second
	c.Pipeline.Concurrency = 4
	c.Pipeline.FailurePolicy = "isolate"
	c.Pipeline.RowPolicy = "strict"
	c.Log.Level = "info"
	return &c
}

// Load baca file config.yaml (boleh tidak ada), lalu override dari env
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, err
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges, then the credentials the chosen provider needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.AI.Provider {
	case ProviderAzure:
		if c.AzureOpenAI.Endpoint == "" || c.AzureOpenAI.APIKey == "" || c.AzureOpenAI.DeploymentName == "" {
			return errors.New("invalid config: azure provider needs AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and AZURE_OPENAI_DEPLOYMENT_NAME")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("invalid config: openai provider needs OPENAI_API_KEY")
		}
	}
	return nil
}
