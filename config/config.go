// Package config holds every runtime setting. Defaults describe the two-port local
// deployment; an optional TOML file overrides only the keys it defines.
package config

import (
	"strings"
	"time"

	"codecbench/record"
	"codecbench/transport"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	ImagePath    string
	AddressCount int

	BinaryAddr string
	TextAddr   string

	ReadChunkSize   int
	DialTimeout     time.Duration
	ShutdownTimeout time.Duration

	LogLevel string

	// Discovery. With no etcd endpoints, producers use BinaryAddr and TextAddr directly.
	EtcdEndpoints   []string
	AdvertiseBinary string
	AdvertiseText   string
	Balancer        string
	RegistryTTL     int64

	RateLimit float64 // messages per second per listener; 0 disables
	RateBurst int

	MetricsAddr string // empty disables the /metrics endpoint
}

func Default() Config {
	return Config{
		ImagePath:       "./minka.jpg",
		AddressCount:    record.DefaultBuildOptions().AddressCount,
		BinaryAddr:      "127.0.0.1:3000",
		TextAddr:        "127.0.0.1:3001",
		ReadChunkSize:   transport.DefaultChunkSize,
		DialTimeout:     transport.DefaultDialTimeout,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
		Balancer:        "round-robin",
		RegistryTTL:     10,
	}
}

type fileConfig struct {
	ImagePath       string   `toml:"image_path"`
	AddressCount    int      `toml:"address_count"`
	BinaryAddr      string   `toml:"binary_addr"`
	TextAddr        string   `toml:"text_addr"`
	ReadChunkSize   int      `toml:"read_chunk_size"`
	DialTimeout     string   `toml:"dial_timeout"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
	LogLevel        string   `toml:"log_level"`
	EtcdEndpoints   []string `toml:"etcd_endpoints"`
	AdvertiseBinary string   `toml:"advertise_binary"`
	AdvertiseText   string   `toml:"advertise_text"`
	Balancer        string   `toml:"balancer"`
	RegistryTTL     int64    `toml:"registry_ttl"`
	RateLimit       float64  `toml:"rate_limit"`
	RateBurst       int      `toml:"rate_burst"`
	MetricsAddr     string   `toml:"metrics_addr"`
}

// Load returns Default overlaid with the keys defined in the TOML file at path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "unknown key %q in %s", undecoded[0].String(), path)
	}

	if meta.IsDefined("image_path") {
		cfg.ImagePath = strings.TrimSpace(raw.ImagePath)
	}
	if meta.IsDefined("address_count") {
		cfg.AddressCount = raw.AddressCount
	}
	if meta.IsDefined("binary_addr") {
		cfg.BinaryAddr = strings.TrimSpace(raw.BinaryAddr)
	}
	if meta.IsDefined("text_addr") {
		cfg.TextAddr = strings.TrimSpace(raw.TextAddr)
	}
	if meta.IsDefined("read_chunk_size") {
		cfg.ReadChunkSize = raw.ReadChunkSize
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return Config{}, errors.Wrap(err, "parse dial_timeout")
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil {
			return Config{}, errors.Wrap(err, "parse shutdown_timeout")
		}
		cfg.ShutdownTimeout = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = normalize(raw.EtcdEndpoints)
	}
	if meta.IsDefined("advertise_binary") {
		cfg.AdvertiseBinary = strings.TrimSpace(raw.AdvertiseBinary)
	}
	if meta.IsDefined("advertise_text") {
		cfg.AdvertiseText = strings.TrimSpace(raw.AdvertiseText)
	}
	if meta.IsDefined("balancer") {
		cfg.Balancer = strings.TrimSpace(raw.Balancer)
	}
	if meta.IsDefined("registry_ttl") {
		cfg.RegistryTTL = raw.RegistryTTL
	}
	if meta.IsDefined("rate_limit") {
		cfg.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, cfg.Validate()
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch {
	case c.AddressCount < 0 || c.AddressCount > record.MaxAddresses:
		return errors.Wrapf(ErrInvalidConfig, "address_count %d not in [0, %d]", c.AddressCount, record.MaxAddresses)
	case c.ReadChunkSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "read_chunk_size %d must be positive", c.ReadChunkSize)
	case c.DialTimeout <= 0:
		return errors.Wrapf(ErrInvalidConfig, "dial_timeout %s must be positive", c.DialTimeout)
	case c.ShutdownTimeout <= 0:
		return errors.Wrapf(ErrInvalidConfig, "shutdown_timeout %s must be positive", c.ShutdownTimeout)
	case c.RegistryTTL <= 0:
		return errors.Wrapf(ErrInvalidConfig, "registry_ttl %d must be positive", c.RegistryTTL)
	case c.RateLimit < 0:
		return errors.Wrapf(ErrInvalidConfig, "rate_limit %v must not be negative", c.RateLimit)
	}
	return nil
}

// BuildOptions returns the record build options for this config.
func (c Config) BuildOptions() record.BuildOptions {
	opts := record.DefaultBuildOptions()
	opts.AddressCount = c.AddressCount
	return opts
}

// Advertise returns the address a listener registers under; it falls back to the bind address.
func (c Config) Advertise(codecName string) string {
	switch codecName {
	case "binary":
		if c.AdvertiseBinary != "" {
			return c.AdvertiseBinary
		}
		return c.BinaryAddr
	default:
		if c.AdvertiseText != "" {
			return c.AdvertiseText
		}
		return c.TextAddr
	}
}

// ListenAddr returns the bind address of the listener for codecName.
func (c Config) ListenAddr(codecName string) string {
	if codecName == "binary" {
		return c.BinaryAddr
	}
	return c.TextAddr
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
