// Package config loads and validates the configuration of the courier daemon.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables that override values
// from the configuration file, for example COURIER_ACCOUNT_KEY.
const EnvPrefix = "COURIER"

const (
	// BoltStore selects the BoltDB persistence provider.
	BoltStore = "bolt"

	// SQLiteStore selects the SQLite persistence provider.
	SQLiteStore = "sqlite"
)

// Config is the configuration of the courier daemon.
type Config struct {
	// AccountKey is the public key of the local account.
	AccountKey string `mapstructure:"account_key"`

	// Store is the persistence provider to use, either BoltStore or
	// SQLiteStore.
	Store string `mapstructure:"store"`

	// BoltPath is the path to the BoltDB database file.
	BoltPath string `mapstructure:"bolt_path"`

	// SQLiteDSN is the data-source name of the SQLite database.
	SQLiteDSN string `mapstructure:"sqlite_dsn"`

	// RelayAddress is the gRPC target of the relay that messages are sent
	// through, and attachments uploaded to.
	RelayAddress string `mapstructure:"relay_address"`

	// FileServerURL is the URL of the general-purpose file server.
	FileServerURL string `mapstructure:"file_server_url"`

	// PollInterval is the interval at which open groups are polled.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// MaxAttempts is the maximum number of attempts made at each durable
	// delivery job. Zero means the engine's default.
	MaxAttempts uint `mapstructure:"max_attempts"`

	// ConcurrencyLimit is the number of delivery jobs attempted at once. Zero
	// means the engine's default.
	ConcurrencyLimit uint `mapstructure:"concurrency_limit"`

	// UploadRate is the maximum number of upload attempts per second. Zero
	// means uploads are not rate limited.
	UploadRate float64 `mapstructure:"upload_rate"`

	// UploadBurst is the number of upload attempts allowed in a single burst.
	UploadBurst int `mapstructure:"upload_burst"`

	// MetricsAddress is the TCP address on which metrics are served. Metrics
	// are not served if it is empty.
	MetricsAddress string `mapstructure:"metrics_address"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Store:        BoltStore,
		BoltPath:     "/var/run/courier.boltdb",
		PollInterval: 4 * time.Second,
		UploadBurst:  1,
	}
}

// Load reads the configuration.
//
// Values are read from the YAML file at path, if it is non-empty, then
// overridden by environment variables. Variables defined in the dotenv files
// are loaded into the environment first, files that do not exist are ignored.
func Load(path string, dotenv ...string) (Config, error) {
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("unable to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("account_key", d.AccountKey)
	v.SetDefault("store", d.Store)
	v.SetDefault("bolt_path", d.BoltPath)
	v.SetDefault("sqlite_dsn", d.SQLiteDSN)
	v.SetDefault("relay_address", d.RelayAddress)
	v.SetDefault("file_server_url", d.FileServerURL)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("concurrency_limit", d.ConcurrencyLimit)
	v.SetDefault("upload_rate", d.UploadRate)
	v.SetDefault("upload_burst", d.UploadBurst)
	v.SetDefault("metrics_address", d.MetricsAddress)
	v.SetDefault("debug", d.Debug)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("unable to read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate returns an error describing every problem with c.
func (c Config) Validate() error {
	var err error

	if c.AccountKey == "" {
		err = multierr.Append(err, errors.New("account key must not be empty"))
	}

	switch c.Store {
	case BoltStore:
		if c.BoltPath == "" {
			err = multierr.Append(err, errors.New("bolt path must not be empty"))
		}
	case SQLiteStore:
		if c.SQLiteDSN == "" {
			err = multierr.Append(err, errors.New("sqlite DSN must not be empty"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf(
			"store must be '%s' or '%s', not '%s'",
			BoltStore,
			SQLiteStore,
			c.Store,
		))
	}

	if c.RelayAddress == "" {
		err = multierr.Append(err, errors.New("relay address must not be empty"))
	}

	if u, e := url.Parse(c.FileServerURL); e != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf(
			"file server URL '%s' must be an absolute URL",
			c.FileServerURL,
		))
	}

	if c.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("poll interval must be positive"))
	}

	if c.UploadRate < 0 {
		err = multierr.Append(err, errors.New("upload rate must not be negative"))
	} else if c.UploadRate > 0 && c.UploadBurst <= 0 {
		err = multierr.Append(err, errors.New("upload burst must be positive when the upload rate is limited"))
	}

	return err
}

// sample is the YAML representation of a configuration file.
type sample struct {
	AccountKey       string  `yaml:"account_key"`
	Store            string  `yaml:"store"`
	BoltPath         string  `yaml:"bolt_path,omitempty"`
	SQLiteDSN        string  `yaml:"sqlite_dsn,omitempty"`
	RelayAddress     string  `yaml:"relay_address"`
	FileServerURL    string  `yaml:"file_server_url"`
	PollInterval     string  `yaml:"poll_interval"`
	MaxAttempts      uint    `yaml:"max_attempts,omitempty"`
	ConcurrencyLimit uint    `yaml:"concurrency_limit,omitempty"`
	UploadRate       float64 `yaml:"upload_rate,omitempty"`
	UploadBurst      int     `yaml:"upload_burst,omitempty"`
	MetricsAddress   string  `yaml:"metrics_address,omitempty"`
	Debug            bool    `yaml:"debug,omitempty"`
}

// WriteSample writes c to w as a YAML configuration file that can be read by
// Load().
func WriteSample(w io.Writer, c Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(sample{
		AccountKey:       c.AccountKey,
		Store:            c.Store,
		BoltPath:         c.BoltPath,
		SQLiteDSN:        c.SQLiteDSN,
		RelayAddress:     c.RelayAddress,
		FileServerURL:    c.FileServerURL,
		PollInterval:     c.PollInterval.String(),
		MaxAttempts:      c.MaxAttempts,
		ConcurrencyLimit: c.ConcurrencyLimit,
		UploadRate:       c.UploadRate,
		UploadBurst:      c.UploadBurst,
		MetricsAddress:   c.MetricsAddress,
		Debug:            c.Debug,
	}); err != nil {
		return err
	}

	return enc.Close()
}
