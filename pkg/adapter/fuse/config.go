package fuse

import "time"

// Config configures the FUSE adapter.
//
// Default values (applied by New if zero):
//   - AttrTimeout: 1s
//   - EntryTimeout: 1s
//   - RateLimit.Burst: 2x RequestsPerSecond
type Config struct {
	// Enabled controls whether the VFS is exposed on the host.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Mountpoint is the host directory the tree is mounted on. It is
	// created if missing.
	Mountpoint string `mapstructure:"mountpoint" yaml:"mountpoint" validate:"required_if=Enabled true"`

	// AllowOther lets users other than the mounting one access the mount.
	AllowOther bool `mapstructure:"allow_other" yaml:"allow_other"`

	// Debug logs every FUSE request.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// AttrTimeout and EntryTimeout bound how long the host kernel caches
	// attributes and names. Keep them short: backends that revalidate
	// cannot push invalidations to the host.
	AttrTimeout  time.Duration `mapstructure:"attr_timeout" yaml:"attr_timeout" validate:"min=0"`
	EntryTimeout time.Duration `mapstructure:"entry_timeout" yaml:"entry_timeout" validate:"min=0"`

	// RateLimit throttles FUSE requests. Requests over the limit fail with
	// EAGAIN.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig is a token bucket over all FUSE requests.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"required_if=Enabled true"`
	Burst             uint `mapstructure:"burst" yaml:"burst"`
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.AttrTimeout == 0 {
		c.AttrTimeout = time.Second
	}
	if c.EntryTimeout == 0 {
		c.EntryTimeout = time.Second
	}
	if c.RateLimit.Enabled && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 2 * c.RateLimit.RequestsPerSecond
	}
}
