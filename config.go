package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	sourceHTTP  = "http"
	sourceSlurm = "slurm"
)

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
}

type Config struct {
	// Source is where jobs come from: "http" (job API at URL) or "slurm" (squeue/scancel).
	Source  string `mapstructure:"source"`
	URL     string `mapstructure:"url"`
	User    string `mapstructure:"user"`
	Cluster string `mapstructure:"cluster"`

	// PollInterval of 0 fetches the job list once at start.
	PollInterval    time.Duration `mapstructure:"pollInterval"`
	TickInterval    time.Duration `mapstructure:"tickInterval"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout"`
	FetchAttempts   uint          `mapstructure:"fetchAttempts"`
	CancelStatusTTL time.Duration `mapstructure:"cancelStatusTTL"`

	MetricsAddr string    `mapstructure:"metricsAddr"`
	Log         LogConfig `mapstructure:"log"`
}

// Every key needs a default, even an empty one, for AutomaticEnv to see it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source", sourceSlurm)
	v.SetDefault("url", "")
	v.SetDefault("user", "")
	v.SetDefault("cluster", "")
	v.SetDefault("metricsAddr", "")
	v.SetDefault("pollInterval", 5*time.Second)
	v.SetDefault("tickInterval", time.Second)
	v.SetDefault("requestTimeout", 15*time.Second)
	v.SetDefault("fetchAttempts", 3)
	v.SetDefault("cancelStatusTTL", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "jobwatch.log")
	v.SetDefault("log.maxSizeMB", 10)
	v.SetDefault("log.maxBackups", 3)
}

// loadConfig merges defaults, the config file, JOBWATCH_* environment variables and
// flags, in increasing priority. A missing config file is not an error unless one
// was named explicitly.
func loadConfig(v *viper.Viper, path string, flags *pflag.FlagSet) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("jobwatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range map[string]string{
			"source":       "source",
			"url":          "url",
			"user":         "user",
			"pollInterval": "poll-interval",
			"metricsAddr":  "metrics-addr",
			"log.level":    "log-level",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, errors.Wrapf(err, "binding flag %s", name)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("jobwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/jobwatch")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "reading config")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	config.Source = strings.ToLower(strings.TrimSpace(config.Source))
	return config, config.Validate()
}

func (c Config) Validate() error {
	var result *multierror.Error

	switch c.Source {
	case sourceSlurm:
	case sourceHTTP:
		if c.URL == "" {
			result = multierror.Append(result, errors.New("url is required for the http source"))
		} else if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			result = multierror.Append(result, fmt.Errorf("url %q is not an http(s) url", c.URL))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown source %q (want %s or %s)", c.Source, sourceHTTP, sourceSlurm))
	}

	if c.PollInterval < 0 {
		result = multierror.Append(result, errors.New("pollInterval must not be negative"))
	}
	if c.TickInterval <= 0 {
		result = multierror.Append(result, errors.New("tickInterval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		result = multierror.Append(result, errors.New("requestTimeout must be positive"))
	}
	if c.FetchAttempts == 0 {
		result = multierror.Append(result, errors.New("fetchAttempts must be at least 1"))
	}

	return result.ErrorOrNil()
}
