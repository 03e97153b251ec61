package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "key")
	if err := os.WriteFile(file, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}
	t.Setenv("SKILL_GAP_TEST_SECRET", " from-env ")

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{name: "file wins", src: Source{File: file, Env: "SKILL_GAP_TEST_SECRET", Value: "inline"}, want: "from-file"},
		{name: "env over inline", src: Source{Env: "SKILL_GAP_TEST_SECRET", Value: "inline"}, want: "from-env"},
		{name: "inline when env is unset", src: Source{Env: "SKILL_GAP_TEST_UNSET", Value: " inline "}, want: "inline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}

	tests := []struct {
		name    string
		src     Source
		contain string
	}{
		{name: "empty file", src: Source{Name: "api key", File: empty}, contain: "is empty"},
		{name: "missing file", src: Source{Name: "api key", File: filepath.Join(dir, "nope")}, contain: "reading api key"},
		{name: "nothing configured", src: Source{Name: "api key", Env: "SKILL_GAP_TEST_UNSET"}, contain: "set SKILL_GAP_TEST_UNSET"},
		{name: "default name", src: Source{}, contain: "secret is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.contain) {
				t.Fatalf("expected error to contain %q, got %q", tt.contain, err)
			}
		})
	}
}

func TestProvided(t *testing.T) {
	t.Setenv("SKILL_GAP_TEST_SECRET", "x")

	if !(Source{Env: "SKILL_GAP_TEST_SECRET"}).Provided() {
		t.Fatal("expected env source to be provided")
	}
	if (Source{Env: "SKILL_GAP_TEST_UNSET"}).Provided() {
		t.Fatal("expected unset env source not to be provided")
	}
	if !(Source{File: "/any"}).Provided() {
		t.Fatal("expected file source to be provided")
	}
}
