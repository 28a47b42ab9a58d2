package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"crewplan/internal/opt"
)

// EnvPrefix prefixes environment overrides, e.g. CREWPLAN_OPTIONS_SEED.
const EnvPrefix = "CREWPLAN"

// Config is the effective configuration of the CLI and the API server.
type Config struct {
	LogLevel  string `json:"logLevel" yaml:"logLevel" mapstructure:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat" mapstructure:"logFormat"`

	Addr            string `json:"addr" yaml:"addr" mapstructure:"addr"`
	RedisURL        string `json:"redisUrl" yaml:"redisUrl" mapstructure:"redisUrl"`
	CacheTTLSeconds int    `json:"cacheTtlSeconds" yaml:"cacheTtlSeconds" mapstructure:"cacheTtlSeconds"`

	MetricsFile string `json:"metricsFile" yaml:"metricsFile" mapstructure:"metricsFile"`
	PushGateway string `json:"pushGateway" yaml:"pushGateway" mapstructure:"pushGateway"`

	Options opt.Options `json:"options" yaml:"options" mapstructure:"options"`
}

// SetDefaults registers a default for every key so env and flag overrides
// resolve even without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "json")
	viper.SetDefault("addr", ":8080")
	viper.SetDefault("redisUrl", "")
	viper.SetDefault("cacheTtlSeconds", 3600)
	viper.SetDefault("metricsFile", "")
	viper.SetDefault("pushGateway", "")

	d := opt.DefaultOptions()
	viper.SetDefault("options.timeLimitSeconds", d.TimeLimitSeconds)
	viper.SetDefault("options.workers", d.Workers)
	viper.SetDefault("options.seed", d.Seed)
	viper.SetDefault("options.planningHorizonLegs", d.PlanningHorizonLegs)
	viper.SetDefault("options.defaultPersonWeight", d.DefaultPersonWeight)
	for k, v := range d.Weights() {
		viper.SetDefault("options."+k, v)
	}
}

// Load applies defaults, the environment and, when path is not empty, the
// config file (YAML or JSON by extension).
func Load(path string) (*Config, error) {
	SetDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return Current()
}

// Current decodes the configuration viper holds right now.
func Current() (*Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logFormat must be json or console", opt.ErrValidation)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("%w: cacheTtlSeconds must be >= 0", opt.ErrValidation)
	}
	return c.Options.Validate()
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// OptionsYAML renders only the solver options, as served by the API.
func OptionsYAML(o opt.Options) ([]byte, error) {
	return yaml.Marshal(o)
}
