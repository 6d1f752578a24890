package main

import (
	"context"
	"fmt"
	"strings"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/httprunner/CamNotify/internal/env"
	"github.com/httprunner/CamNotify/internal/providers/adb"
	"github.com/httprunner/CamNotify/internal/providers/v4l2"
	"github.com/httprunner/CamNotify/internal/storage"
	"github.com/rs/zerolog/log"
)

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func settingsPath() (string, error) {
	if path := firstNonEmpty(rootSettings, env.String(camnotify.EnvSettingsPath, "")); path != "" {
		return path, nil
	}
	return storage.DefaultPath()
}

func openSettings() (*camnotify.KVSettings, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	return camnotify.OpenSettings(path)
}

// loadSettings returns the stored config; a read failure falls back to the
// defaults with a warning.
func loadSettings(ctx context.Context, store camnotify.SettingsStore) camnotify.Config {
	cfg, err := store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Str("error_kind", camnotify.ErrorKind(err)).Msg("load settings failed, using defaults")
	}
	return cfg
}

func newDriver() (camnotify.Driver, error) {
	name := strings.ToLower(firstNonEmpty(rootDriver, env.String(camnotify.EnvDriver, ""), camnotify.DriverV4L2))
	switch name {
	case camnotify.DriverV4L2:
		return v4l2.New(v4l2Options()), nil
	case camnotify.DriverADB:
		return adb.NewDefaultDriver()
	default:
		return nil, fmt.Errorf("unknown capture driver %q (want %s or %s)", name, camnotify.DriverV4L2, camnotify.DriverADB)
	}
}

// v4l2Options reads the ffmpeg binary and grab timeout; a zero timeout keeps
// the driver default.
func v4l2Options() v4l2.Options {
	return v4l2.Options{
		FFmpeg:  env.String(camnotify.EnvFFmpeg, ""),
		Timeout: env.Duration(camnotify.EnvGrabTimeout, 0),
	}
}

type runtimeDeps struct {
	store     *camnotify.KVSettings
	catalog   *camnotify.ProbeCatalog
	scheduler *camnotify.Scheduler
}

func (d *runtimeDeps) Close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close settings store failed")
		}
	}
}

func buildRuntime(onResult func(camnotify.CycleResult)) (*runtimeDeps, error) {
	driver, err := newDriver()
	if err != nil {
		return nil, err
	}
	capture, err := camnotify.NewDriverCapture(driver, camnotify.CaptureOptions{
		SpoolDir: env.String(camnotify.EnvSpoolDir, ""),
	})
	if err != nil {
		return nil, err
	}
	store, err := openSettings()
	if err != nil {
		return nil, err
	}
	catalog := camnotify.NewProbeCatalog(driver, env.Int(camnotify.EnvMaxProbe, 0))
	sched, err := camnotify.NewScheduler(camnotify.SchedulerOptions{
		Catalog:  catalog,
		Capture:  capture,
		Upload:   camnotify.NewFeishuUploaderFromEnv(),
		Settings: store,
		Title:    env.String(camnotify.EnvTitle, camnotify.DefaultTitle),
		OnResult: onResult,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Debug().Str("settings", store.Path()).Msg("runtime ready")
	return &runtimeDeps{store: store, catalog: catalog, scheduler: sched}, nil
}

// configFlagNames are the per-command flags added by addConfigFlags.
var configFlagNames = []string{"credential", "destination", "interval", "device"}

func anyChanged(changed func(string) bool, names ...string) bool {
	for _, name := range names {
		if changed(name) {
			return true
		}
	}
	return false
}

// applyOverrides copies flag values that were explicitly set onto cfg.
func applyOverrides(cfg *camnotify.Config, credential, destination string, interval, device int, changed func(string) bool) {
	if changed("credential") {
		cfg.Credential = strings.TrimSpace(credential)
	}
	if changed("destination") {
		cfg.DestinationID = strings.TrimSpace(destination)
	}
	if changed("interval") {
		cfg.IntervalSeconds = interval
	}
	if changed("device") {
		cfg.DeviceIndex = device
	}
}
