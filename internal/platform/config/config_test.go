package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	kit "contribot/internal/platform/testkit"
)

func TestPrefixComposesKeys(t *testing.T) {
	gh := New().Prefix("CONTRIBOT_").Prefix("GITHUB_")
	if got := gh.Key("TOKEN"); got != "CONTRIBOT_GITHUB_TOKEN" {
		t.Fatalf("Key() = %q", got)
	}
}

func TestMustHelpers(t *testing.T) {
	c := New().Prefix("CT_")
	t.Setenv("CT_TOKEN", " abc ")
	t.Setenv("CT_PAGES", "10")
	t.Setenv("CT_DELAY", "2s")
	t.Setenv("CT_BAD", "x")

	if c.MustString("TOKEN") != "abc" {
		t.Fatal("MustString should trim")
	}
	if c.MustInt("PAGES") != 10 {
		t.Fatal("MustInt mismatch")
	}
	if c.MustDuration("DELAY") != 2*time.Second {
		t.Fatal("MustDuration mismatch")
	}
	kit.MustPanic(t, func() { c.MustString("MISSING") })
	kit.MustPanic(t, func() { c.MustInt("BAD") })
	kit.MustPanic(t, func() { c.MustDuration("BAD") })
}

func TestMayHelpersFallBack(t *testing.T) {
	c := New().Prefix("CT_")
	t.Setenv("CT_INT", "nope")
	t.Setenv("CT_BOOL", "maybe")
	t.Setenv("CT_DUR", "soon")
	t.Setenv("CT_CSV", " a, ,b ")

	if c.MayInt("INT", 7) != 7 || c.MayInt("UNSET", 3) != 3 {
		t.Fatal("MayInt should fall back")
	}
	if !c.MayBool("BOOL", true) {
		t.Fatal("MayBool should fall back")
	}
	if c.MayDuration("DUR", time.Minute) != time.Minute {
		t.Fatal("MayDuration should fall back")
	}
	if got := c.MayCSV("CSV", nil); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("MayCSV = %v", got)
	}
	if c.MayString("UNSET", "def") != "def" {
		t.Fatal("MayString should fall back")
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("CT_")
	t.Setenv("CT_QUEUE", "Redis")
	if got := c.MayEnum("QUEUE", "pg", "pg", "redis"); got != "redis" {
		t.Fatalf("MayEnum = %q", got)
	}
	if got := c.MayEnum("UNSET", "pg", "pg", "redis"); got != "pg" {
		t.Fatalf("MayEnum default = %q", got)
	}
	t.Setenv("CT_QUEUE", "kafka")
	kit.MustPanic(t, func() { c.MayEnum("QUEUE", "pg", "pg", "redis") })
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("CT_FROM_FILE=yes\nCT_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CT_PRESET", "env")
	t.Setenv("CT_FROM_FILE", "")
	_ = os.Unsetenv("CT_FROM_FILE")

	if err := LoadDotenv(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("CT_FROM_FILE") })

	if os.Getenv("CT_FROM_FILE") != "yes" {
		t.Fatal("value from file not loaded")
	}
	if os.Getenv("CT_PRESET") != "env" {
		t.Fatal("existing env must win over file")
	}
}
