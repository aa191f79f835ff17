package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8080" {
		t.Fatalf("expected 8080, got %q (%v)", p, err)
	}
	t.Setenv("TEST_PORT", "99999")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("TEST_TTL", "90")
	if d := Duration("TEST_TTL", time.Minute); d != 90*time.Second {
		t.Fatalf("expected 90s, got %s", d)
	}
	t.Setenv("TEST_TTL", "2h")
	if d := Duration("TEST_TTL", time.Minute); d != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", d)
	}
	t.Setenv("TEST_TTL", "nonsense")
	if d := Duration("TEST_TTL", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %s", d)
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %#v", got)
	}
	t.Setenv("TEST_BOOL", "yes")
	if !Bool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	if Bool("TEST_BOOL_UNSET", true) != true {
		t.Fatal("expected fallback true")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("DOTENV_ONLY_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOTENV_ONLY_KEY", "")
	os.Unsetenv("DOTENV_ONLY_KEY")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if v := os.Getenv("DOTENV_ONLY_KEY"); v != "from-file" {
		t.Fatalf("expected from-file, got %q", v)
	}
}
