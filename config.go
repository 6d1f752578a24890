package camnotify

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Defaults applied when settings are missing or unusable.
const (
	DefaultIntervalSeconds = 60
	DefaultDeviceIndex     = 0
	DefaultTitle           = "Captured Image"
)

// Config holds the four operator-configurable values. The scheduler copies it
// at start, so edits made afterwards never reach a running loop.
type Config struct {
	Credential      string
	DestinationID   string
	IntervalSeconds int
	DeviceIndex     int
}

// DefaultConfig returns the documented fallback values.
func DefaultConfig() Config {
	return Config{
		IntervalSeconds: DefaultIntervalSeconds,
		DeviceIndex:     DefaultDeviceIndex,
	}
}

// Interval returns the tick spacing as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	out := c
	out.Credential = maskSecret(c.Credential)
	return out
}

// Validate checks the config against the devices the catalog reports right
// now. Hardware can change between launches, so this runs at start rather
// than at load.
func (c Config) Validate(ctx context.Context, catalog DeviceCatalog) error {
	if c.IntervalSeconds < 1 {
		return errors.Wrapf(ErrInvalidConfig, "interval must be >= 1 second, got %d", c.IntervalSeconds)
	}
	if c.DeviceIndex < 0 {
		return errors.Wrapf(ErrInvalidConfig, "device index must be non-negative, got %d", c.DeviceIndex)
	}
	if catalog == nil {
		return errors.Wrap(ErrInvalidConfig, "device catalog is nil")
	}
	devices, err := catalog.ListDevices(ctx)
	if err != nil {
		return errors.Wrap(err, "list capture devices")
	}
	for _, idx := range devices {
		if idx == c.DeviceIndex {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidConfig, "device index %d not in available devices %v", c.DeviceIndex, devices)
}

func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
