package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderComprehend = "comprehend"
	ProviderHTTP       = "http"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Storage   StorageConfig   `yaml:"storage"`
	Jobs      JobsConfig      `yaml:"jobs"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tracker   TrackerConfig   `yaml:"tracker"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type StorageConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UseSSL       bool   `yaml:"use_ssl"`
	Bucket       string `yaml:"bucket"`
	BucketPrefix string `yaml:"bucket_prefix"`
	StagingDir   string `yaml:"staging_dir"`
	// MinObjectSize is the smallest object the job service accepts.
	MinObjectSize          int           `yaml:"min_object_size" validate:"gte=0"`
	DownloadMaxAttempts    int           `yaml:"download_max_attempts" validate:"gte=0"`
	DownloadInitialBackoff time.Duration `yaml:"download_initial_backoff"`
}

type JobsConfig struct {
	Provider          string `yaml:"provider" validate:"oneof=comprehend http"`
	Region            string `yaml:"region"`
	DataAccessRoleARN string `yaml:"data_access_role_arn" validate:"required_if=Provider comprehend"`
	// NumberOfTopics of 0 leaves the choice to the job service.
	NumberOfTopics int    `yaml:"number_of_topics" validate:"gte=0,lte=100"`
	APIURL         string `yaml:"api_url" validate:"required_if=Provider http"`
	APIToken       string `yaml:"api_token"`

	PollInterval        time.Duration `yaml:"poll_interval" validate:"gte=0"`
	PollMaxWait         time.Duration `yaml:"poll_max_wait" validate:"gte=0"`
	PollMaxAttempts     int           `yaml:"poll_max_attempts" validate:"gte=0"`
	MaxTransientRetries int           `yaml:"max_transient_retries" validate:"gte=0"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type TrackerConfig struct {
	MaxRuns int `yaml:"max_runs"`
}

// Load reads the YAML file at path, applies defaults and then environment
// overrides. Environment always wins.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.setDefaults()

	return &cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.Storage.Region, "STORAGE_REGION")
	setString(&cfg.Jobs.APIToken, "JOBS_API_TOKEN")
	setString(&cfg.Jobs.DataAccessRoleARN, "JOBS_DATA_ACCESS_ROLE_ARN")

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "topicdetect/1.0"
	}
	if c.Fetch.MaxBodyBytes == 0 {
		c.Fetch.MaxBodyBytes = 10 << 20
	}

	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = "s3.amazonaws.com"
	}
	if c.Storage.BucketPrefix == "" {
		c.Storage.BucketPrefix = "topic-modelling-"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = GenerateBucketName(c.Storage.BucketPrefix)
	}
	if c.Storage.StagingDir == "" {
		c.Storage.StagingDir = os.TempDir()
	}
	if c.Storage.MinObjectSize == 0 {
		c.Storage.MinObjectSize = 500
	}
	if c.Storage.DownloadMaxAttempts == 0 {
		c.Storage.DownloadMaxAttempts = 5
	}
	if c.Storage.DownloadInitialBackoff == 0 {
		c.Storage.DownloadInitialBackoff = time.Second
	}

	if c.Jobs.Provider == "" {
		c.Jobs.Provider = ProviderComprehend
	}
	if c.Jobs.Region == "" {
		c.Jobs.Region = c.Storage.Region
	}
	if c.Jobs.PollInterval == 0 {
		c.Jobs.PollInterval = 10 * time.Second
	}
	if c.Jobs.PollMaxWait == 0 {
		c.Jobs.PollMaxWait = 30 * time.Minute
	}
	if c.Jobs.MaxTransientRetries == 0 {
		c.Jobs.MaxTransientRetries = 5
	}
	if c.Jobs.RetryInitialBackoff == 0 {
		c.Jobs.RetryInitialBackoff = time.Second
	}

	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 100
	}
	if c.Tracker.MaxRuns == 0 {
		c.Tracker.MaxRuns = 100
	}
}

var validate = validator.New()

// Validate reports configuration that cannot produce a working pipeline.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ServerWriteTimeout is long enough for a request to outlive a full poll.
func (c *Config) ServerWriteTimeout() time.Duration {
	return c.Jobs.PollMaxWait + 5*time.Minute
}

// GenerateBucketName returns prefix followed by a short random token. The name
// lives for one process and is never persisted.
func GenerateBucketName(prefix string) string {
	return prefix + RandomToken(6)
}

// RandomToken returns n lowercase hex characters drawn from a random UUID.
// n is capped at 32.
func RandomToken(n int) string {
	id := uuid.New()
	hex := make([]byte, 0, 32)
	const digits = "0123456789abcdef"
	for _, b := range id {
		hex = append(hex, digits[b>>4], digits[b&0x0f])
	}
	if n > len(hex) {
		n = len(hex)
	}
	return string(hex[:n])
}
