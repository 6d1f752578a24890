package camnotify

import (
	"context"

	"github.com/rs/zerolog/log"
)

const defaultMaxProbe = 16

// Driver opens capture devices by index.
type Driver interface {
	Open(ctx context.Context, index int) (Device, error)
}

// Device is one opened capture device. ReadFrame returns a single encoded
// still image. Close releases the handle.
type Device interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// DeviceCatalog enumerates usable capture device indices.
type DeviceCatalog interface {
	ListDevices(ctx context.Context) ([]int, error)
}

// ProbeCatalog lists devices by probing a driver from index 0 upwards.
// Probing stops at the first index that fails to open or read a frame;
// indices past a gap are never tried.
type ProbeCatalog struct {
	driver   Driver
	maxProbe int
}

// NewProbeCatalog builds a catalog over driver. maxProbe <= 0 uses 16.
func NewProbeCatalog(driver Driver, maxProbe int) *ProbeCatalog {
	if maxProbe <= 0 {
		maxProbe = defaultMaxProbe
	}
	return &ProbeCatalog{driver: driver, maxProbe: maxProbe}
}

// ListDevices re-probes the hardware on every call. Each probed device is
// released before the next one is opened. The error is non-nil only when ctx
// is cancelled.
func (c *ProbeCatalog) ListDevices(ctx context.Context) ([]int, error) {
	devices := make([]int, 0, 4)
	if c == nil || c.driver == nil {
		return devices, nil
	}
	for idx := 0; idx < c.maxProbe; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.probe(ctx, idx) {
			break
		}
		devices = append(devices, idx)
	}
	log.Debug().Ints("devices", devices).Msg("capture devices probed")
	return devices, nil
}

func (c *ProbeCatalog) probe(ctx context.Context, idx int) bool {
	dev, err := c.driver.Open(ctx, idx)
	if err != nil {
		log.Debug().Err(err).Int("device_index", idx).Msg("probe open failed")
		return false
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Int("device_index", idx).Msg("probe release failed")
		}
	}()
	frame, err := dev.ReadFrame(ctx)
	if err != nil || len(frame) == 0 {
		log.Debug().Err(err).Int("device_index", idx).Msg("probe read failed")
		return false
	}
	return true
}
