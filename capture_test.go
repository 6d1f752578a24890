package camnotify

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"os"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestDriverCapturePassesPNGThrough(t *testing.T) {
	frame := pngFrame(t, 8, 6)
	driver := &fakeDriver{frames: map[int][]byte{0: frame}}
	client, err := NewDriverCapture(driver, CaptureOptions{Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewDriverCapture returned error: %v", err)
	}

	artifact, err := client.Capture(context.Background(), 0)
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if artifact.Format != "png" || artifact.Width != 8 || artifact.Height != 6 {
		t.Fatalf("unexpected artifact: format=%s %dx%d", artifact.Format, artifact.Width, artifact.Height)
	}
	if !bytes.Equal(artifact.Data, frame) {
		t.Fatalf("png frame must pass through unchanged")
	}
	if !artifact.CapturedAt.Equal(fixedClock()) {
		t.Fatalf("unexpected capture time %v", artifact.CapturedAt)
	}
	if driver.closeCount() != 1 {
		t.Fatalf("device must be released after capture")
	}
}

func TestDriverCaptureReencodesOtherFormats(t *testing.T) {
	driver := &fakeDriver{frames: map[int][]byte{0: gifFrame(t, 5, 3)}}
	client, err := NewDriverCapture(driver, CaptureOptions{})
	if err != nil {
		t.Fatalf("NewDriverCapture returned error: %v", err)
	}
	artifact, err := client.Capture(context.Background(), 0)
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if artifact.Format != "jpeg" {
		t.Fatalf("expected jpeg, got %s", artifact.Format)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(artifact.Data)); err != nil {
		t.Fatalf("artifact is not a jpeg: %v", err)
	}
	if artifact.Width != 5 || artifact.Height != 3 {
		t.Fatalf("unexpected size %dx%d", artifact.Width, artifact.Height)
	}
}

func TestDriverCaptureErrors(t *testing.T) {
	driver := &fakeDriver{
		frames:  map[int][]byte{0: nil, 1: []byte("not an image"), 2: pngFrame(t, 2, 2)},
		readErr: map[int]error{2: errors.New("select timeout")},
	}
	client, err := NewDriverCapture(driver, CaptureOptions{})
	if err != nil {
		t.Fatalf("NewDriverCapture returned error: %v", err)
	}
	ctx := context.Background()

	if _, err := client.Capture(ctx, 9); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	for _, idx := range []int{0, 1, 2} {
		if _, err := client.Capture(ctx, idx); !errors.Is(err, ErrFrameRead) {
			t.Fatalf("device %d: expected ErrFrameRead, got %v", idx, err)
		}
	}
	if driver.openCount() != driver.closeCount() {
		t.Fatalf("device leaked: opened=%d closed=%d", driver.openCount(), driver.closeCount())
	}
}

func TestDriverCaptureSpoolsAndDiscards(t *testing.T) {
	dir := t.TempDir()
	driver := &fakeDriver{frames: map[int][]byte{0: pngFrame(t, 2, 2)}}
	client, err := NewDriverCapture(driver, CaptureOptions{SpoolDir: dir, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewDriverCapture returned error: %v", err)
	}
	artifact, err := client.Capture(context.Background(), 0)
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if artifact.Path == "" {
		t.Fatalf("expected spooled path")
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		t.Fatalf("spool file missing: %v", err)
	}
	path := artifact.Path
	artifact.Discard()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected spool file removed, stat err=%v", err)
	}
	if artifact.Data != nil {
		t.Fatalf("expected payload dropped")
	}
}

func TestArtifactFileName(t *testing.T) {
	a := &ImageArtifact{Format: "png", DeviceIndex: 2, CapturedAt: fixedClock()}
	if got := a.FileName(); got != "capture_2_20260102T030405Z.png" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestNewDriverCaptureRequiresDriver(t *testing.T) {
	if _, err := NewDriverCapture(nil, CaptureOptions{}); err == nil {
		t.Fatalf("expected error for nil driver")
	}
}
