package storage

import (
	"context"
	"encoding/base64"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// encodedPrefix marks a base64 value. Values the dotenv parser would alter
// (escapes, quotes, variable references, line breaks) are written encoded.
const encodedPrefix = "b64:"

// DotEnvKV stores sections in a dotenv file as SECTION_KEY="value" lines.
// Section names must not contain underscores; the first underscore splits
// the section from the key.
type DotEnvKV struct {
	path string
}

// NewDotEnv returns a store backed by the file at path. The file is created
// on first Save.
func NewDotEnv(path string) *DotEnvKV {
	return &DotEnvKV{path: path}
}

// Path returns the dotenv file.
func (d *DotEnvKV) Path() string { return d.path }

// Load parses the file. A missing file yields empty sections.
func (d *DotEnvKV) Load(ctx context.Context) (Sections, error) {
	out := make(Sections)
	values, err := godotenv.Read(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, errors.Wrapf(err, "storage: read dotenv %s failed", d.path)
	}
	for name, value := range values {
		section, key, ok := strings.Cut(name, "_")
		if !ok || section == "" || key == "" {
			log.Debug().Str("key", name).Msg("dotenv settings key without section ignored")
			continue
		}
		out.Set(strings.ToLower(section), strings.ToLower(key), decodeDotEnvValue(value))
	}
	return out, nil
}

// Save merges sections into the existing file and rewrites it atomically.
func (d *DotEnvKV) Save(ctx context.Context, sections Sections) error {
	merged := make(map[string]string)
	if existing, err := godotenv.Read(d.path); err == nil {
		for k, v := range existing {
			merged[k] = decodeDotEnvValue(v)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "storage: read dotenv %s failed", d.path)
	}
	for section, kv := range sections {
		if strings.Contains(section, "_") {
			return errors.Errorf("storage: section %q must not contain underscores", section)
		}
		for key, value := range kv {
			merged[strings.ToUpper(section+"_"+key)] = value
		}
	}

	content := encodeDotEnv(merged)
	parsed, err := godotenv.Unmarshal(content)
	if err != nil {
		return errors.Wrap(err, "storage: encoded dotenv does not parse")
	}
	for k, v := range merged {
		if got := decodeDotEnvValue(parsed[k]); got != v {
			return errors.Errorf("storage: encoded dotenv value for %s does not read back", k)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".settings-*.env")
	if err != nil {
		return errors.Wrap(err, "storage: create temp dotenv failed")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return errors.Wrap(err, "storage: write temp dotenv failed")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "storage: chmod temp dotenv failed")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "storage: close temp dotenv failed")
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return errors.Wrapf(err, "storage: replace dotenv %s failed", d.path)
	}
	log.Debug().Str("path", d.path).Int("keys", len(merged)).Msg("settings saved to dotenv")
	return nil
}

// Close is a no-op; the file is not held open.
func (d *DotEnvKV) Close() error { return nil }

func encodeDotEnv(values map[string]string) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(values)) {
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(encodeDotEnvValue(values[k]))
		b.WriteString("\"\n")
	}
	return b.String()
}

func encodeDotEnvValue(v string) string {
	if strings.HasPrefix(v, encodedPrefix) || strings.ContainsAny(v, "\\\"$\r\n") {
		return encodedPrefix + base64.StdEncoding.EncodeToString([]byte(v))
	}
	return v
}

// decodeDotEnvValue reverses encodeDotEnvValue. A hand-written value with
// the prefix that is not valid base64 is returned unchanged.
func decodeDotEnvValue(v string) string {
	raw, ok := strings.CutPrefix(v, encodedPrefix)
	if !ok {
		return v
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return v
	}
	return string(decoded)
}
