package camnotify

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const jpegQuality = 90

// ImageArtifact is one captured frame, encoded as JPEG or PNG. Path is set
// only when the frame was spooled to disk.
type ImageArtifact struct {
	Data        []byte
	Format      string
	Width       int
	Height      int
	DeviceIndex int
	CapturedAt  time.Time
	Path        string
}

// FileName returns the name used when the artifact is uploaded.
func (a *ImageArtifact) FileName() string {
	ext := a.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("capture_%d_%s.%s", a.DeviceIndex, a.CapturedAt.UTC().Format("20060102T150405Z"), ext)
}

// Discard drops the payload and removes the spool file if any.
func (a *ImageArtifact) Discard() {
	if a == nil {
		return
	}
	if a.Path != "" {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", a.Path).Msg("remove spooled artifact failed")
		}
		a.Path = ""
	}
	a.Data = nil
}

// CaptureClient acquires exactly one frame from a device.
type CaptureClient interface {
	Capture(ctx context.Context, deviceIndex int) (*ImageArtifact, error)
}

// CaptureOptions configure DriverCapture.
type CaptureOptions struct {
	// SpoolDir, when set, receives a temp file per artifact.
	SpoolDir string
	Clock    func() time.Time
}

// DriverCapture captures frames through a Driver. The device handle lives for
// exactly one Capture call.
type DriverCapture struct {
	driver   Driver
	spoolDir string
	clock    func() time.Time
}

// NewDriverCapture builds a capture client over driver.
func NewDriverCapture(driver Driver, opts CaptureOptions) (*DriverCapture, error) {
	if driver == nil {
		return nil, errors.New("capture driver cannot be nil")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	spoolDir := strings.TrimSpace(opts.SpoolDir)
	if spoolDir != "" {
		if err := os.MkdirAll(spoolDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "ensure spool dir")
		}
	}
	return &DriverCapture{driver: driver, spoolDir: spoolDir, clock: clock}, nil
}

// Capture opens deviceIndex, reads one frame and releases the device on every
// exit path.
func (c *DriverCapture) Capture(ctx context.Context, deviceIndex int) (*ImageArtifact, error) {
	dev, err := c.driver.Open(ctx, deviceIndex)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "open device %d: %v", deviceIndex, err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Int("device_index", deviceIndex).Msg("release capture device failed")
		}
	}()

	raw, err := dev.ReadFrame(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrFrameRead, "read frame from device %d: %v", deviceIndex, err)
	}
	if len(raw) == 0 {
		return nil, errors.Wrapf(ErrFrameRead, "device %d returned an empty frame", deviceIndex)
	}

	artifact, err := encodeArtifact(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrFrameRead, "decode frame from device %d: %v", deviceIndex, err)
	}
	artifact.DeviceIndex = deviceIndex
	artifact.CapturedAt = c.clock()

	if c.spoolDir != "" {
		if err := c.spool(artifact); err != nil {
			// The in-memory payload is still usable.
			log.Warn().Err(err).Int("device_index", deviceIndex).Msg("spool artifact failed")
		}
	}
	return artifact, nil
}

func (c *DriverCapture) spool(a *ImageArtifact) error {
	f, err := os.CreateTemp(c.spoolDir, "capture-*-"+a.FileName())
	if err != nil {
		return errors.Wrap(err, "create spool file")
	}
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return errors.Wrap(err, "write spool file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return errors.Wrap(err, "close spool file")
	}
	a.Path = f.Name()
	return nil
}

// encodeArtifact keeps JPEG and PNG frames as they are and re-encodes any
// other decodable frame as JPEG.
func encodeArtifact(raw []byte) (*ImageArtifact, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if format == "jpeg" || format == "png" {
		return &ImageArtifact{Data: raw, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrapf(err, "re-encode %s frame", format)
	}
	bounds := img.Bounds()
	return &ImageArtifact{Data: buf.Bytes(), Format: "jpeg", Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
