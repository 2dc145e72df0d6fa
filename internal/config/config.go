// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"` // 0 disables the metrics/health server
}

type WorkerConfig struct {
	Daemon            *bool         `yaml:"daemon"`
	WaitTime          time.Duration `yaml:"wait_time"`
	WorkDir           string        `yaml:"work_dir"`
	KeepFailedWorkDir bool          `yaml:"keep_failed_workdir"`
	DeleteSourceMedia *bool         `yaml:"delete_source_media"`
}

type QueueConfig struct {
	Backend string `yaml:"backend"` // sqs | redis
	Todo    string `yaml:"todo"`
	Done    string `yaml:"done"`
	// VisibilityTimeout is used by the redis backend to requeue received
	// but undeleted messages.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // s3 | postgres | filesystem
	Bucket  string `yaml:"bucket"`
	Root    string `yaml:"root"` // filesystem backend
}

type AWSConfig struct {
	Region   string `yaml:"region"`
	RoleARN  string `yaml:"role_arn"`
	Endpoint string `yaml:"endpoint"` // localstack / minio

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type EngineConfig struct {
	Kind           string       `yaml:"kind"` // whispercpp | openai | gemini
	DefaultModel   string       `yaml:"default_model"`
	Binary         string       `yaml:"binary"`
	FFmpeg         string       `yaml:"ffmpeg"`
	Version        string       `yaml:"version"`
	ModelsDir      string       `yaml:"models_dir"`
	DownloadModels bool         `yaml:"download_models"`
	Device         string       `yaml:"device"` // auto | cuda | cpu
	Threads        int          `yaml:"threads"`
	OpenAI         OpenAIConfig `yaml:"openai"`
	Gemini         GeminiConfig `yaml:"gemini"`
}

type ProbeConfig struct {
	Binary string `yaml:"binary"`
}

type HoneybadgerConfig struct {
	APIKey string `yaml:"api_key"`
	Env    string `yaml:"env"`
}

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Admin       AdminConfig       `yaml:"admin"`
	Worker      WorkerConfig      `yaml:"worker"`
	Queue       QueueConfig       `yaml:"queue"`
	Storage     StorageConfig     `yaml:"storage"`
	AWS         AWSConfig         `yaml:"aws"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Engine      EngineConfig      `yaml:"engine"`
	Probe       ProbeConfig       `yaml:"probe"`
	Honeybadger HoneybadgerConfig `yaml:"honeybadger"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed so the
// worker can run from environment variables alone), applies environment
// overrides and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyEnv lets the deployment environment override names and secrets.
func (c *Config) applyEnv() {
	c.Queue.Todo = getEnv("SPEECH_TO_TEXT_TODO_SQS_QUEUE", c.Queue.Todo)
	c.Queue.Done = getEnv("SPEECH_TO_TEXT_DONE_SQS_QUEUE", c.Queue.Done)
	c.Storage.Bucket = getEnv("SPEECH_TO_TEXT_S3_BUCKET", c.Storage.Bucket)
	c.AWS.RoleARN = getEnv("AWS_ROLE_ARN", c.AWS.RoleARN)
	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.Endpoint = getEnv("AWS_ENDPOINT_URL", c.AWS.Endpoint)
	c.Honeybadger.APIKey = getEnv("HONEYBADGER_API_KEY", c.Honeybadger.APIKey)
	c.Honeybadger.Env = getEnv("HONEYBADGER_ENV", c.Honeybadger.Env)
	c.Engine.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.Engine.OpenAI.APIKey)
	c.Engine.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Engine.Gemini.APIKey)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Admin.Port = getEnvAsInt("SPEECH_TO_TEXT_ADMIN_PORT", c.Admin.Port)
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Worker.WaitTime <= 0 {
		c.Worker.WaitTime = 20 * time.Second
	}
	if c.Worker.WorkDir == "" {
		c.Worker.WorkDir = "jobs"
	}
	if c.Worker.Daemon == nil {
		v := true
		c.Worker.Daemon = &v
	}
	if c.Worker.DeleteSourceMedia == nil {
		v := true
		c.Worker.DeleteSourceMedia = &v
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "sqs"
	}
	if c.Queue.VisibilityTimeout <= 0 {
		c.Queue.VisibilityTimeout = 30 * time.Second
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "s3"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "bucket"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 4
	}
	if c.Engine.Kind == "" {
		c.Engine.Kind = "whispercpp"
	}
	if c.Engine.DefaultModel == "" {
		c.Engine.DefaultModel = "small"
	}
	if c.Engine.Binary == "" {
		c.Engine.Binary = "whisper-cli"
	}
	if c.Engine.FFmpeg == "" {
		c.Engine.FFmpeg = "ffmpeg"
	}
	if c.Engine.Version == "" {
		c.Engine.Version = "unknown"
	}
	if c.Engine.ModelsDir == "" {
		c.Engine.ModelsDir = "whisper_models"
	}
	if c.Engine.Device == "" {
		c.Engine.Device = "auto"
	}
	if c.Engine.OpenAI.BaseURL == "" {
		c.Engine.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Engine.OpenAI.Model == "" {
		c.Engine.OpenAI.Model = "whisper-1"
	}
	if c.Engine.OpenAI.Timeout <= 0 {
		c.Engine.OpenAI.Timeout = 10 * time.Minute
	}
	if c.Engine.Gemini.Model == "" {
		c.Engine.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Probe.Binary == "" {
		c.Probe.Binary = "ffprobe"
	}
	if c.Honeybadger.Env == "" {
		c.Honeybadger.Env = "stage"
	}
}

// Validate checks the settings each selected backend needs.
func (c *Config) Validate() error {
	switch c.Queue.Backend {
	case "sqs":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis queue backend")
		}
	default:
		return fmt.Errorf("unknown queue.backend %q", c.Queue.Backend)
	}
	if c.Queue.Todo == "" {
		return errors.New("queue.todo (SPEECH_TO_TEXT_TODO_SQS_QUEUE) is required")
	}
	if c.Queue.Done == "" {
		return errors.New("queue.done (SPEECH_TO_TEXT_DONE_SQS_QUEUE) is required")
	}

	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket (SPEECH_TO_TEXT_S3_BUCKET) is required")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres storage backend")
		}
	case "filesystem":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Engine.Kind {
	case "whispercpp":
	case "openai":
		if c.Engine.OpenAI.APIKey == "" {
			return errors.New("engine.openai.api_key (OPENAI_API_KEY) is required for the openai engine")
		}
	case "gemini":
		if c.Engine.Gemini.APIKey == "" {
			return errors.New("engine.gemini.api_key (GEMINI_API_KEY) is required for the gemini engine")
		}
	default:
		return fmt.Errorf("unknown engine.kind %q", c.Engine.Kind)
	}

	switch strings.ToLower(c.Engine.Device) {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("unknown engine.device %q", c.Engine.Device)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
