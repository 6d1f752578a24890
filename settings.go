package camnotify

import (
	"context"
	"strconv"
	"strings"

	"github.com/httprunner/CamNotify/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Persisted section and key names.
const (
	SectionMessaging = "messaging"
	SectionSchedule  = "schedule"

	KeyCredential      = "credential"
	KeyDestinationID   = "destination_id"
	KeyIntervalSeconds = "interval_seconds"
	KeyDeviceIndex     = "device_index"
)

// SettingsStore loads and saves the operator configuration.
type SettingsStore interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// KVSettings maps Config onto key-value sections.
type KVSettings struct {
	kv storage.KV
}

// NewKVSettings wraps kv.
func NewKVSettings(kv storage.KV) *KVSettings {
	return &KVSettings{kv: kv}
}

// OpenSettings opens the store at path; the extension picks the backend.
func OpenSettings(path string) (*KVSettings, error) {
	kv, err := storage.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "open settings: %v", err)
	}
	return NewKVSettings(kv), nil
}

// Path returns the backing file.
func (s *KVSettings) Path() string {
	return s.kv.Path()
}

// Close releases the backing store.
func (s *KVSettings) Close() error {
	return s.kv.Close()
}

// Load returns the stored config. Missing or unusable values fall back to the
// defaults. A read failure returns the defaults together with an error
// wrapping ErrPersistence.
func (s *KVSettings) Load(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()
	sections, err := s.kv.Load(ctx)
	if err != nil {
		return cfg, errors.Wrapf(ErrPersistence, "load settings from %s: %v", s.kv.Path(), err)
	}
	if v, ok := sections.Get(SectionMessaging, KeyCredential); ok {
		cfg.Credential = v
	}
	if v, ok := sections.Get(SectionMessaging, KeyDestinationID); ok {
		cfg.DestinationID = v
	}
	cfg.IntervalSeconds = intSetting(sections, SectionSchedule, KeyIntervalSeconds, DefaultIntervalSeconds, 1)
	cfg.DeviceIndex = intSetting(sections, SectionSchedule, KeyDeviceIndex, DefaultDeviceIndex, 0)
	return cfg, nil
}

// Save writes all four values.
func (s *KVSettings) Save(ctx context.Context, cfg Config) error {
	sections := make(storage.Sections)
	sections.Set(SectionMessaging, KeyCredential, cfg.Credential)
	sections.Set(SectionMessaging, KeyDestinationID, cfg.DestinationID)
	sections.Set(SectionSchedule, KeyIntervalSeconds, strconv.Itoa(cfg.IntervalSeconds))
	sections.Set(SectionSchedule, KeyDeviceIndex, strconv.Itoa(cfg.DeviceIndex))
	if err := s.kv.Save(ctx, sections); err != nil {
		return errors.Wrapf(ErrPersistence, "save settings to %s: %v", s.kv.Path(), err)
	}
	return nil
}

func intSetting(sections storage.Sections, section, key string, fallback, min int) int {
	raw, ok := sections.Get(section, key)
	if !ok {
		return fallback
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || val < min {
		log.Warn().
			Str("section", section).
			Str("key", key).
			Str("value", raw).
			Int("fallback", fallback).
			Msg("unusable setting, using default")
		return fallback
	}
	return val
}
