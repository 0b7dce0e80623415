package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"drivermgr/internal/platform"
)

const envPrefix = "DRIVERMGR"

// Config is the per-run manager configuration. It is built once and then
// only read.
type Config struct {
	Browser              string        `mapstructure:"browser" yaml:"browser"`
	BrowserVersion       string        `mapstructure:"browser_version" yaml:"browser_version"`
	DriverVersion        string        `mapstructure:"driver_version" yaml:"driver_version"`
	BrowserPath          string        `mapstructure:"browser_path" yaml:"browser_path"`
	DriverPath           string        `mapstructure:"driver_path" yaml:"driver_path"`
	OS                   string        `mapstructure:"os" yaml:"os"`
	Arch                 string        `mapstructure:"arch" yaml:"arch"`
	Proxy                string        `mapstructure:"proxy" yaml:"proxy"`
	TimeoutSeconds       int           `mapstructure:"timeout" yaml:"timeout"`
	TTLSeconds           int           `mapstructure:"ttl" yaml:"ttl"`
	Offline              bool          `mapstructure:"offline" yaml:"offline"`
	CachePath            string        `mapstructure:"cache_path" yaml:"cache_path"`
	DriverMirrorURL      string        `mapstructure:"driver_mirror_url" yaml:"driver_mirror_url"`
	BrowserMirrorURL     string        `mapstructure:"browser_mirror_url" yaml:"browser_mirror_url"`
	AvoidBrowserDownload bool          `mapstructure:"avoid_browser_download" yaml:"avoid_browser_download"`
	RequestsPerSecond    float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Logging              LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics              MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls the run logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig controls the optional metrics textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// Default returns the baseline configuration for the running platform.
func Default() Config {
	goos, arch := platform.Current()
	return Config{
		OS:             goos.String(),
		Arch:           arch.String(),
		TimeoutSeconds: 300,
		TTLSeconds:     3600,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load layers defaults, the optional YAML file, DRIVERMGR_* environment
// variables and changed flags, in increasing precedence. An empty path looks
// for drivermgr.yaml in the working directory and in $HOME/.drivermgr.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("drivermgr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.drivermgr")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("browser", d.Browser)
	v.SetDefault("browser_version", d.BrowserVersion)
	v.SetDefault("driver_version", d.DriverVersion)
	v.SetDefault("browser_path", d.BrowserPath)
	v.SetDefault("driver_path", d.DriverPath)
	v.SetDefault("os", d.OS)
	v.SetDefault("arch", d.Arch)
	v.SetDefault("proxy", d.Proxy)
	v.SetDefault("timeout", d.TimeoutSeconds)
	v.SetDefault("ttl", d.TTLSeconds)
	v.SetDefault("offline", d.Offline)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("driver_mirror_url", d.DriverMirrorURL)
	v.SetDefault("browser_mirror_url", d.BrowserMirrorURL)
	v.SetDefault("avoid_browser_download", d.AvoidBrowserDownload)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// bindFlags maps kebab-case flag names onto config keys, so --browser-version
// sets browser_version and --log-level sets logging.level.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
			if !v.IsSet(key) {
				return
			}
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

var flagKeys = map[string]string{
	"log-level":           "logging.level",
	"log-format":          "logging.format",
	"log-file":            "logging.file",
	"metrics-file":        "metrics.textfile",
	"cache-path":          "cache_path",
	"driver-mirror":       "driver_mirror_url",
	"browser-mirror":      "browser_mirror_url",
	"avoid-download":      "avoid_browser_download",
	"requests-per-second": "requests_per_second",
}

// ApplyDefaults fills fields left empty by the file or environment.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.OS == "" {
		c.OS = defaults.OS
	}
	if c.Arch == "" {
		c.Arch = defaults.Arch
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if c.TTLSeconds < 0 {
		c.TTLSeconds = 0
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}
}

// Timeout is the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL is the lifetime of metadata cache entries. Zero disables caching.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Platform parses the configured OS and architecture.
func (c Config) Platform() (platform.OS, platform.Arch, error) {
	goos, err := platform.ParseOS(c.OS)
	if err != nil {
		return goos, 0, err
	}
	arch, err := platform.ParseArch(c.Arch)
	if err != nil {
		return goos, arch, err
	}
	return goos, arch, nil
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}
