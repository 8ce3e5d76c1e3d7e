package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned by Set for keys that are not configuration keys.
var ErrUnknownKey = errors.New("unknown config key")

// Global configuration structure.
type Global struct {
	// DBPath is the SQLite file holding format profiles.
	DBPath   string `mapstructure:"db_path" yaml:"db_path" validate:"required"`
	TenantID string `mapstructure:"tenant_id" yaml:"tenant_id" validate:"max=128"`

	// Aggregation
	TopN       int `mapstructure:"top_n" yaml:"top_n" validate:"min=1,max=100"`
	KeyWidth   int `mapstructure:"key_width" yaml:"key_width" validate:"min=1,max=200"`
	SampleRows int `mapstructure:"sample_rows" yaml:"sample_rows" validate:"min=1,max=10"`

	// Loading
	MaxRows      int `mapstructure:"max_rows" yaml:"max_rows" validate:"min=0"`
	BatchWorkers int `mapstructure:"batch_workers" yaml:"batch_workers" validate:"min=1,max=64"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
}

// Keys lists the configuration keys in display order.
var Keys = []string{
	"db_path", "tenant_id", "top_n", "key_width", "sample_rows",
	"max_rows", "batch_workers", "log_level", "log_format",
}

var validate = func() *validator.Validate {
	v := validator.New()
	// Report config keys rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}()

// Validate checks every field against its constraints.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Field(), describeTag(fe), fe.Value()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Get returns the string form of a key's value.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "tenant_id":
		return c.TenantID, nil
	case "top_n":
		return strconv.Itoa(c.TopN), nil
	case "key_width":
		return strconv.Itoa(c.KeyWidth), nil
	case "sample_rows":
		return strconv.Itoa(c.SampleRows), nil
	case "max_rows":
		return strconv.Itoa(c.MaxRows), nil
	case "batch_workers":
		return strconv.Itoa(c.BatchWorkers), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set parses val into key and validates the result. On failure c is left
// unchanged.
func (c *Global) Set(key, val string) error {
	next := *c
	atoi := func() (int, error) {
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "db_path":
		next.DBPath = val
	case "tenant_id":
		next.TenantID = strings.TrimSpace(val)
	case "top_n":
		next.TopN, err = atoi()
	case "key_width":
		next.KeyWidth, err = atoi()
	case "sample_rows":
		next.SampleRows, err = atoi()
	case "max_rows":
		next.MaxRows, err = atoi()
	case "batch_workers":
		next.BatchWorkers, err = atoi()
	case "log_level":
		next.LogLevel = strings.ToLower(strings.TrimSpace(val))
	case "log_format":
		next.LogFormat = strings.ToLower(strings.TrimSpace(val))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Dir returns ~/.gridloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".gridloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.gridloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A missing file is not an error.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("GRIDLOOM")
	v.AutomaticEnv()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	// Defaults
	v.SetDefault("db_path", filepath.Join(dir, "profiles.db"))
	v.SetDefault("tenant_id", "")
	v.SetDefault("top_n", 5)
	v.SetDefault("key_width", 15)
	v.SetDefault("sample_rows", 10)
	v.SetDefault("max_rows", 100000)
	v.SetDefault("batch_workers", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
