package adb

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/httprunner/httprunner/v5/pkg/gadb"
	"github.com/pkg/errors"
)

// Provider lists attached Android devices and runs shell commands on them.
type Provider struct {
	client gadb.Client
}

// New creates a Provider backed by the given gadb client.
func New(client gadb.Client) *Provider {
	return &Provider{client: client}
}

// NewDefault creates a Provider using a default gadb client.
func NewDefault() (*Provider, error) {
	client, err := gadb.NewClient()
	if err != nil {
		return nil, errors.Wrap(err, "init adb client for provider")
	}
	return New(client), nil
}

// ListDevices returns the serials of attached devices in sorted order.
func (p *Provider) ListDevices(ctx context.Context) ([]string, error) {
	if p == nil {
		return nil, errors.New("adb provider is nil")
	}
	serials, err := p.client.DeviceSerialList()
	if err != nil {
		return nil, errors.Wrap(err, "list adb devices")
	}
	sort.Strings(serials)
	return serials, nil
}

// RunShell executes a shell command on the given device serial.
func (p *Provider) RunShell(serial string, args ...string) (string, error) {
	if p == nil {
		return "", errors.New("adb provider is nil")
	}
	if len(args) == 0 {
		return "", errors.New("adb provider: empty shell command")
	}
	devs, err := p.client.DeviceList()
	if err != nil {
		return "", errors.Wrap(err, "list adb devices")
	}
	target := strings.TrimSpace(serial)
	for _, d := range devs {
		if d == nil {
			continue
		}
		if strings.TrimSpace(d.Serial()) == target {
			return d.RunShellCommand(args[0], args[1:]...)
		}
	}
	return "", errors.Errorf("device %s not found", serial)
}

// Driver captures Android screens. Index N is the Nth attached device in
// serial order.
type Driver struct {
	list  func(ctx context.Context) ([]string, error)
	shell func(serial string, args ...string) (string, error)
}

// NewDriver builds a capture driver over p.
func NewDriver(p *Provider) *Driver {
	return &Driver{list: p.ListDevices, shell: p.RunShell}
}

// NewDefaultDriver connects to the local adb server.
func NewDefaultDriver() (*Driver, error) {
	p, err := NewDefault()
	if err != nil {
		return nil, err
	}
	return NewDriver(p), nil
}

// Open resolves index to a serial. The device must still be attached.
func (d *Driver) Open(ctx context.Context, index int) (camnotify.Device, error) {
	if index < 0 {
		return nil, errors.Errorf("invalid device index %d", index)
	}
	serials, err := d.list(ctx)
	if err != nil {
		return nil, err
	}
	if index >= len(serials) {
		return nil, errors.Errorf("no adb device at index %d (%d attached)", index, len(serials))
	}
	return &screen{serial: serials[index], shell: d.shell}, nil
}

type screen struct {
	serial string
	shell  func(serial string, args ...string) (string, error)
	closed bool
}

// ReadFrame returns one PNG screenshot. The binary is base64 encoded on the
// device since the shell channel is text.
func (s *screen) ReadFrame(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, errors.New("adb screen is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := s.shell(s.serial, "screencap -p | base64")
	if err != nil {
		return nil, errors.Wrapf(err, "screencap on %s", s.serial)
	}
	encoded := strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, out)
	if encoded == "" {
		return nil, errors.Errorf("screencap on %s returned no data", s.serial)
	}
	frame, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrapf(err, "decode screencap from %s", s.serial)
	}
	return frame, nil
}

func (s *screen) Close() error {
	s.closed = true
	return nil
}
