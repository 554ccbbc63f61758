package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when present
const DefaultConfigFile = "cnpj.yml"

// Config represents the pipeline configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Source     SourceConfig     `yaml:"source"`
	Download   DownloadConfig   `yaml:"download"`
	Processing ProcessingConfig `yaml:"processing"`
	Mirror     MirrorConfig     `yaml:"mirror"`
	Supplement SupplementConfig `yaml:"supplement"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig holds the PostgreSQL target
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	ConnectAttempts int           `yaml:"connect_attempts" default:"5"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" default:"1s"`
}

// SourceConfig describes where releases are published
type SourceConfig struct {
	BaseURL string `yaml:"base_url" default:"https://arquivos.receitafederal.gov.br/dados/cnpj/dados_abertos_cnpj"`
	Listing string `yaml:"listing" default:"auto"` // "auto", "html" or "webdav"
}

// DownloadConfig controls archive acquisition
type DownloadConfig struct {
	TempDir        string        `yaml:"temp_dir" default:"./temp"`
	Workers        int           `yaml:"workers" default:"4"`
	RetryAttempts  int           `yaml:"retry_attempts" default:"3"`
	RetryDelay     time.Duration `yaml:"retry_delay" default:"5s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	ReadTimeout    time.Duration `yaml:"read_timeout" default:"300s"`
	KeepFiles      bool          `yaml:"keep_files"`
}

// ProcessingConfig controls transform batching
type ProcessingConfig struct {
	BatchSize int `yaml:"batch_size" default:"500000"`
}

// MirrorConfig is an optional S3-compatible cache of upstream archives
type MirrorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket" default:"cnpj-archives"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// SupplementConfig controls gap-filling of reference tables
type SupplementConfig struct {
	Motivos  bool          `yaml:"motivos" default:"true"`
	URL      string        `yaml:"url" default:"https://bcadastros.serpro.gov.br/documentacao/dominios/pj/motivo_situacao_cadastral.csv"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"720h"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"auto"` // "auto", "console" or "json"
	FilePath   string `yaml:"file_path"`
	Console    bool   `yaml:"console" default:"true"`
	MaxSize    int    `yaml:"max_size" default:"100"` // MB
	MaxBackups int    `yaml:"max_backups" default:"3"`
	MaxAge     int    `yaml:"max_age" default:"7"` // days
	Cleanup    bool   `yaml:"cleanup"`
}

// LoadDefaultConfig returns a configuration populated from struct defaults
func LoadDefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// default tags are static; a failure here is a programming mistake
		panic(err)
	}
	return cfg
}

// LoadConfig reads filename over the defaults. A missing file is only an
// error when the caller named it explicitly.
func LoadConfig(filename string, explicit bool) (*Config, error) {
	cfg := LoadDefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, errors.New(ErrConfigFileReadFailed, "failed to read config file", err).
			AddContext("file", filename)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(ErrConfigFileParseFailed, "failed to parse config file", err).
			AddContext("file", filename)
	}

	return cfg, nil
}

// Load resolves the full configuration: file, then environment
func Load(filename string) (*Config, error) {
	explicit := filename != ""
	if !explicit {
		filename = DefaultConfigFile
	}

	cfg, err := LoadConfig(filename, explicit)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables the pipeline
// has always honored. lookup is os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(ErrEnvInvalid, "environment variable is not an integer", err).
				AddContext("variable", key)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseSeconds(v)
		if err != nil {
			return errors.New(ErrEnvInvalid, "environment variable is not a duration", err).
				AddContext("variable", key)
		}
		*dst = d
		return nil
	}

	str("DATABASE_URL", &c.Database.URL)
	str("TEMP_DIR", &c.Download.TempDir)
	str("BASE_URL", &c.Source.BaseURL)
	str("LOG_LEVEL", &c.Log.Level)

	for key, dst := range map[string]*int{
		"BATCH_SIZE":       &c.Processing.BatchSize,
		"DOWNLOAD_WORKERS": &c.Download.Workers,
		"RETRY_ATTEMPTS":   &c.Download.RetryAttempts,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*time.Duration{
		"RETRY_DELAY":     &c.Download.RetryDelay,
		"CONNECT_TIMEOUT": &c.Download.ConnectTimeout,
		"READ_TIMEOUT":    &c.Download.ReadTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("KEEP_DOWNLOADED_FILES"); ok && v != "" {
		c.Download.KeepFiles = strings.EqualFold(v, "true")
	}

	return nil
}

// parseSeconds accepts bare integers as seconds, or Go duration strings
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New(ErrDatabaseURLRequired, "database url is required (set DATABASE_URL or database.url)", nil)
	}
	if c.Processing.BatchSize <= 0 {
		return errors.New(ErrInvalidValue, "batch_size must be positive", nil).
			AddContext("batch_size", strconv.Itoa(c.Processing.BatchSize))
	}
	if c.Download.Workers <= 0 {
		return errors.New(ErrInvalidValue, "download workers must be positive", nil).
			AddContext("workers", strconv.Itoa(c.Download.Workers))
	}
	if c.Download.RetryAttempts <= 0 {
		return errors.New(ErrInvalidValue, "retry_attempts must be positive", nil).
			AddContext("retry_attempts", strconv.Itoa(c.Download.RetryAttempts))
	}
	switch c.Source.Listing {
	case "auto", "html", "webdav":
	default:
		return errors.New(ErrInvalidValue, "listing must be auto, html or webdav", nil).
			AddContext("listing", c.Source.Listing)
	}
	if c.Mirror.Enabled && (c.Mirror.Endpoint == "" || c.Mirror.Bucket == "") {
		return errors.New(ErrMirrorIncomplete, "mirror requires endpoint and bucket", nil)
	}
	return nil
}

// GetTempDir returns the staging directory
func (c *Config) GetTempDir() string {
	return c.Download.TempDir
}

// GetBatchSize returns the configured batch size
func (c *Config) GetBatchSize() int {
	return c.Processing.BatchSize
}
