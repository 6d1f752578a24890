package v4l2

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultDevDir  = "/dev"
	defaultFFmpeg  = "ffmpeg"
	defaultTimeout = 10 * time.Second
)

// Runner executes name with args and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configure a Driver. Zero values use /dev, ffmpeg from PATH and a
// 10s grab timeout.
type Options struct {
	DevDir  string
	FFmpeg  string
	Timeout time.Duration
	Run     Runner
}

// Driver grabs still frames from Video4Linux nodes. Index N is /dev/videoN.
type Driver struct {
	devDir  string
	ffmpeg  string
	timeout time.Duration
	run     Runner
}

// New builds a driver.
func New(opts Options) *Driver {
	d := &Driver{
		devDir:  strings.TrimSpace(opts.DevDir),
		ffmpeg:  strings.TrimSpace(opts.FFmpeg),
		timeout: opts.Timeout,
		run:     opts.Run,
	}
	if d.devDir == "" {
		d.devDir = defaultDevDir
	}
	if d.ffmpeg == "" {
		d.ffmpeg = defaultFFmpeg
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	if d.run == nil {
		d.run = execRunner
	}
	return d
}

// DevicePath returns the node for index.
func (d *Driver) DevicePath(index int) string {
	return filepath.Join(d.devDir, fmt.Sprintf("video%d", index))
}

// Open opens the node, holding it until Close.
func (d *Driver) Open(ctx context.Context, index int) (camnotify.Device, error) {
	if index < 0 {
		return nil, errors.Errorf("invalid device index %d", index)
	}
	path := d.DevicePath(index)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &node{driver: d, path: path, file: f}, nil
}

type node struct {
	driver *Driver
	path   string
	file   *os.File
}

// ReadFrame grabs one MJPEG frame with ffmpeg.
func (n *node) ReadFrame(ctx context.Context) ([]byte, error) {
	if n.file == nil {
		return nil, errors.Errorf("%s is closed", n.path)
	}
	ctx, cancel := context.WithTimeout(ctx, n.driver.timeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2", "-i", n.path,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-",
	}
	startAt := time.Now()
	out, err := n.driver.run(ctx, n.driver.ffmpeg, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "grab frame from %s", n.path)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("ffmpeg produced no frame for %s", n.path)
	}
	log.Debug().Str("device", n.path).Int("bytes", len(out)).
		Dur("elapsed", time.Since(startAt)).Msg("v4l2 frame grabbed")
	return out, nil
}

func (n *node) Close() error {
	if n.file == nil {
		return nil
	}
	err := n.file.Close()
	n.file = nil
	return err
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrap(err, msg)
		}
		return nil, err
	}
	return out, nil
}
