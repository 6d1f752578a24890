package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleSections() Sections {
	s := make(Sections)
	s.Set("messaging", "credential", "t-g1044ab8XYZ")
	s.Set("messaging", "destination_id", "oc_5ad11d72b830411d72b836c20")
	s.Set("schedule", "interval_seconds", "15")
	s.Set("schedule", "device_index", "2")
	return s
}

func assertSectionsEqual(t *testing.T, got, want Sections) {
	t.Helper()
	for section, kv := range want {
		for key, val := range kv {
			if g, ok := got.Get(section, key); !ok || g != val {
				t.Fatalf("%s.%s = %q (present=%v), want %q", section, key, g, ok, val)
			}
		}
	}
}

func TestOpenPicksBackendByExtension(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open(filepath.Join(dir, "nested", "settings.sqlite"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer kv.Close()
	if _, ok := kv.(*SQLiteKV); !ok {
		t.Fatalf("expected *SQLiteKV, got %T", kv)
	}

	kv2, err := Open(filepath.Join(dir, "settings.env"))
	if err != nil {
		t.Fatalf("Open dotenv: %v", err)
	}
	if _, ok := kv2.(*DotEnvKV); !ok {
		t.Fatalf("expected *DotEnvKV, got %T", kv2)
	}

	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")
	kv, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	empty, err := kv.Load(ctx)
	if err != nil {
		t.Fatalf("Load fresh db: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty sections, got %#v", empty)
	}

	if err := kv.Save(ctx, sampleSections()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	update := make(Sections)
	update.Set("schedule", "interval_seconds", "30")
	if err := kv.Save(ctx, update); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := sampleSections()
	want.Set("schedule", "interval_seconds", "30")
	assertSectionsEqual(t, got, want)
}

func TestDotEnvRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "camnotify.env")
	kv := NewDotEnv(path)

	missing, err := kv.Load(ctx)
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected empty sections, got %#v", missing)
	}

	if err := kv.Save(ctx, sampleSections()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(raw), "MESSAGING_DESTINATION_ID=") {
		t.Fatalf("expected flattened key in file, got:\n%s", raw)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	got, err := kv.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSectionsEqual(t, got, sampleSections())
}

func TestDotEnvRoundTripAwkwardValues(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "camnotify.env")
	kv := NewDotEnv(path)

	want := make(Sections)
	values := map[string]string{
		"trailing_backslash": `ends\`,
		"inner_backslash":    `a\nb`,
		"quoted":             `"quoted"`,
		"single":             `'single'`,
		"dollar":             "$HOME",
		"newline":            "a\nb",
		"carriage":           "a\r\nb",
		"leading_zero":       "007",
		"prefixed":           "b64:x",
		"hash":               "tok with spaces=and#hash",
		"padded":             "  padded  ",
		"empty":              "",
	}
	for key, val := range values {
		want.Set("edge", key, val)
	}
	if err := kv.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := kv.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSectionsEqual(t, got, want)

	// A second save re-reads the file first and must neither fail nor
	// double-encode values already on disk.
	more := make(Sections)
	more.Set("edge", "added", "x")
	if err := kv.Save(ctx, more); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = kv.Load(ctx)
	if err != nil {
		t.Fatalf("Load after second save: %v", err)
	}
	assertSectionsEqual(t, got, want)
	assertSectionsEqual(t, got, more)
}

func TestDotEnvSaveKeepsUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "camnotify.env")
	if err := os.WriteFile(path, []byte("FEISHU_TRANSPORT=http\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	kv := NewDotEnv(path)
	if err := kv.Save(ctx, sampleSections()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := kv.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, ok := got.Get("feishu", "transport"); !ok || v != "http" {
		t.Fatalf("expected unrelated key to survive, got %q", v)
	}
}

func TestDotEnvRejectsUnderscoreSection(t *testing.T) {
	kv := NewDotEnv(filepath.Join(t.TempDir(), "x.env"))
	bad := make(Sections)
	bad.Set("bad_section", "key", "v")
	if err := kv.Save(context.Background(), bad); err == nil {
		t.Fatalf("expected error for section with underscore")
	}
}
