package camnotify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/httprunner/CamNotify/internal/storage"
)

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	cases := []Config{
		{Credential: "t-g1044ab8XYZ", DestinationID: "oc_5ad11d72", IntervalSeconds: 15, DeviceIndex: 2},
		{Credential: "", DestinationID: "", IntervalSeconds: 1, DeviceIndex: 0},
		{Credential: "tok with spaces=and#hash", DestinationID: "oc_x", IntervalSeconds: 86400, DeviceIndex: 15},
	}
	for _, name := range []string{"settings.sqlite", "settings.env"} {
		t.Run(name, func(t *testing.T) {
			for i, cfg := range cases {
				path := filepath.Join(t.TempDir(), name)
				store, err := OpenSettings(path)
				if err != nil {
					t.Fatalf("OpenSettings: %v", err)
				}
				if err := store.Save(ctx, cfg); err != nil {
					t.Fatalf("case %d: Save: %v", i, err)
				}
				if err := store.Close(); err != nil {
					t.Fatalf("case %d: Close: %v", i, err)
				}

				reopened, err := OpenSettings(path)
				if err != nil {
					t.Fatalf("case %d: reopen: %v", i, err)
				}
				got, err := reopened.Load(ctx)
				reopened.Close()
				if err != nil {
					t.Fatalf("case %d: Load: %v", i, err)
				}
				if got != cfg {
					t.Fatalf("case %d: round trip mismatch: got %+v want %+v", i, got, cfg)
				}
			}
		})
	}
}

func TestSettingsLoadDefaults(t *testing.T) {
	store, err := OpenSettings(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("OpenSettings: %v", err)
	}
	cfg, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSettingsLoadFallsBackOnBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camnotify.env")
	content := "MESSAGING_DESTINATION_ID=oc_keep\nSCHEDULE_INTERVAL_SECONDS=0\nSCHEDULE_DEVICE_INDEX=abc\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := NewKVSettings(storage.NewDotEnv(path))
	cfg, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DestinationID != "oc_keep" {
		t.Fatalf("expected destination kept, got %q", cfg.DestinationID)
	}
	if cfg.IntervalSeconds != DefaultIntervalSeconds || cfg.DeviceIndex != DefaultDeviceIndex {
		t.Fatalf("expected defaults for bad values, got %+v", cfg)
	}
}

type failingKV struct{}

func (failingKV) Load(ctx context.Context) (storage.Sections, error) {
	return nil, errors.New("read-only medium")
}

func (failingKV) Save(ctx context.Context, s storage.Sections) error {
	return errors.New("read-only medium")
}

func (failingKV) Path() string { return "/ro/settings.env" }
func (failingKV) Close() error { return nil }

func TestSettingsErrorsArePersistenceFailures(t *testing.T) {
	store := NewKVSettings(failingKV{})
	ctx := context.Background()
	if err := store.Save(ctx, DefaultConfig()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence from Save, got %v", err)
	}
	cfg, err := store.Load(ctx)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence from Load, got %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults alongside load error, got %+v", cfg)
	}
}
