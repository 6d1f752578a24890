package env

import (
	"testing"
	"time"
)

func TestGettersFallBack(t *testing.T) {
	t.Setenv("CAMNOTIFY_TEST_INT", "not-a-number")
	t.Setenv("CAMNOTIFY_TEST_DUR", "90s")
	t.Setenv("CAMNOTIFY_TEST_BOOL", "yes")
	t.Setenv("CAMNOTIFY_TEST_STR", "  value  ")

	if got := Int("CAMNOTIFY_TEST_INT", 7); got != 7 {
		t.Fatalf("Int fallback = %d, want 7", got)
	}
	if got := Duration("CAMNOTIFY_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("Duration = %s, want 90s", got)
	}
	if !Bool("CAMNOTIFY_TEST_BOOL", false) {
		t.Fatalf("Bool = false, want true")
	}
	if got := String("CAMNOTIFY_TEST_STR", "x"); got != "value" {
		t.Fatalf("String = %q, want trimmed value", got)
	}
	if got := String("CAMNOTIFY_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("String fallback = %q", got)
	}
}

func TestEnsureSkipsDotEnvUnderGoTest(t *testing.T) {
	if err := Ensure(); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if LoadedPath() != "" {
		t.Fatalf("expected no .env to be loaded under go test, got %s", LoadedPath())
	}
}
