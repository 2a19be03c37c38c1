// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Duration is a time.Duration read from "72h"-style strings in flags, JSON
// and the environment.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	return d.UnmarshalText([]byte(s))
}

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address" envconfig:"SERVER_ADDRESS"`

	// ResultHostname is the base URL used for short links.
	ResultHostname string `json:"base_url" envconfig:"BASE_URL"`

	// SQLitePath is the SQLite database file used when no DSN is given.
	SQLitePath string `json:"file_storage_path" envconfig:"FILE_STORAGE_PATH"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" envconfig:"DATABASE_DSN"`

	// EnablePprof indicates whether to enable pprof for performance profiling.
	EnablePprof bool `json:"enable_pprof" envconfig:"ENABLE_PPROF"`

	// EnableHTTPS indicates whether to enable https.
	EnableHTTPS bool `json:"enable_https" envconfig:"ENABLE_HTTPS"`

	// TrustedSubnet is the CIDR allowed to read /metrics. Empty allows all.
	TrustedSubnet string `json:"trusted_subnet" envconfig:"TRUSTED_SUBNET"`

	// GRPCPort is the gRPC listen port; 0 disables the gRPC server.
	GRPCPort int `json:"grpc_port" envconfig:"GRPC_PORT"`

	JWTSecret string   `json:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL  Duration `json:"jwt_ttl" envconfig:"JWT_TTL"`

	LogLevel    string `json:"log_level" envconfig:"LOG_LEVEL"`
	LogEncoding string `json:"log_encoding" envconfig:"LOG_ENCODING"`

	// Config is the path of the JSON config file.
	Config string `json:"-" envconfig:"CONFIG"`
}

func defaults() *Options {
	return &Options{
		Port:           "localhost:8080",
		ResultHostname: "http://localhost:8080",
		GRPCPort:       3200,
		TokenTTL:       Duration{7 * 24 * time.Hour},
		LogLevel:       "info",
		LogEncoding:    "json",
	}
}

// Parse builds the options. Later sources win: defaults, the JSON config
// file, flags that were set explicitly, then the environment.
func Parse(args []string) (*Options, error) {
	flagged := defaults()

	fs := flag.NewFlagSet("tinylink", flag.ContinueOnError)
	fs.StringVar(&flagged.Port, "a", flagged.Port, "run on ip:port server")
	fs.StringVar(&flagged.ResultHostname, "b", flagged.ResultHostname, "result base url")
	fs.StringVar(&flagged.SQLitePath, "f", flagged.SQLitePath, "path to sqlite database file")
	fs.StringVar(&flagged.DatabaseDSN, "d", flagged.DatabaseDSN, "postgres dsn")
	fs.BoolVar(&flagged.EnablePprof, "p", flagged.EnablePprof, "enable pprof")
	fs.BoolVar(&flagged.EnableHTTPS, "s", flagged.EnableHTTPS, "enable https")
	fs.StringVar(&flagged.TrustedSubnet, "t", flagged.TrustedSubnet, "trusted subnet (CIDR)")
	fs.IntVar(&flagged.GRPCPort, "g", flagged.GRPCPort, "grpc port, 0 disables")
	fs.StringVar(&flagged.JWTSecret, "j", flagged.JWTSecret, "jwt signing secret")
	fs.Var(&flagged.TokenTTL, "ttl", "token lifetime")
	fs.StringVar(&flagged.LogLevel, "l", flagged.LogLevel, "log level")
	fs.StringVar(&flagged.LogEncoding, "log-encoding", flagged.LogEncoding, "json or console")
	fs.StringVar(&flagged.Config, "c", "", "path to json config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := defaults()

	path := flagged.Config
	if env := os.Getenv("CONFIG"); env != "" {
		path = env
	}
	if path != "" {
		if err := loadFile(path, opts); err != nil {
			return nil, err
		}
		opts.Config = path
	}

	fs.Visit(func(f *flag.Flag) {
		applyFlag(opts, flagged, f.Name)
	})

	if err := envconfig.Process("", opts); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyFlag(dst, src *Options, name string) {
	switch name {
	case "a":
		dst.Port = src.Port
	case "b":
		dst.ResultHostname = src.ResultHostname
	case "f":
		dst.SQLitePath = src.SQLitePath
	case "d":
		dst.DatabaseDSN = src.DatabaseDSN
	case "p":
		dst.EnablePprof = src.EnablePprof
	case "s":
		dst.EnableHTTPS = src.EnableHTTPS
	case "t":
		dst.TrustedSubnet = src.TrustedSubnet
	case "g":
		dst.GRPCPort = src.GRPCPort
	case "j":
		dst.JWTSecret = src.JWTSecret
	case "ttl":
		dst.TokenTTL = src.TokenTTL
	case "l":
		dst.LogLevel = src.LogLevel
	case "log-encoding":
		dst.LogEncoding = src.LogEncoding
	}
}

// Validate checks values that would otherwise fail late at startup.
func (o *Options) Validate() error {
	var errs []error

	if o.Port == "" {
		errs = append(errs, errors.New("server address is empty"))
	}
	if o.GRPCPort < 0 || o.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("grpc port %d out of range", o.GRPCPort))
	}
	if o.TokenTTL.Duration <= 0 {
		errs = append(errs, fmt.Errorf("token ttl must be positive, got %s", o.TokenTTL))
	}
	if o.LogEncoding != "json" && o.LogEncoding != "console" {
		errs = append(errs, fmt.Errorf("log encoding %q must be json or console", o.LogEncoding))
	}
	if o.TrustedSubnet != "" {
		if _, _, err := net.ParseCIDR(o.TrustedSubnet); err != nil {
			errs = append(errs, fmt.Errorf("trusted subnet: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
