package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NielsdaWheelz/stencil/internal/errors"
)

// isolate points config lookup at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("STENCIL_CONFIG_DIR", t.TempDir())
	t.Setenv("STENCIL_CACHE_DIR", t.TempDir())
}

func TestRun_NoArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := Run([]string{}, &stdout, &stderr)

	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.EUsage)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Error("expected usage in stdout")
	}
}

func TestRun_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := Run([]string{arg}, &stdout, &stderr); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, sub := range []string{"apply", "plan", "status", "rollback", "init", "doctor"} {
				if !strings.Contains(stdout.String(), sub) {
					t.Errorf("help does not list %q", sub)
				}
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	for _, arg := range []string{"-v", "--version"} {
		t.Run(arg, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := Run([]string{arg}, &stdout, &stderr); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(stdout.String(), "stencil ") {
				t.Errorf("version output = %q", stdout.String())
			}
		})
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"nope"}, "nope"},
		{"unknown flag", []string{"status", "--bogus"}, "bogus"},
		{"too many args", []string{"status", "a", "b"}, "accepts at most 1 arg"},
		{"missing recipe", []string{"apply"}, "recipe"},
		{"json without dry run", []string{"apply", "--recipe", "builtin:rails", "--json"}, "--dry-run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			var stdout, stderr bytes.Buffer
			err := Run(tt.args, &stdout, &stderr)
			if errors.GetCode(err) != errors.EUsage {
				t.Fatalf("code = %q, want %q (err: %v)", errors.GetCode(err), errors.EUsage, err)
			}
			if errors.ExitCode(err) != 2 {
				t.Errorf("exit code = %d, want 2", errors.ExitCode(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestRun_InitThenPlan(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := Run([]string{"init", dir, "--no-gitignore"}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stdout.String(), "recipe: created\n") {
		t.Errorf("init output = %q", stdout.String())
	}

	target := t.TempDir()
	stdout.Reset()
	err := Run([]string{"plan", target, "--recipe", filepath.Join(dir, "recipe.yaml"), "--no-color"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "recipe starter: ") {
		t.Errorf("plan output = %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(target, ".stencil")); !os.IsNotExist(err) {
		t.Error("plan must not write a journal")
	}
}

func TestRun_StatusWithoutJournal(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	err := Run([]string{"status", t.TempDir()}, &stdout, &stderr)
	if errors.GetCode(err) != errors.ENoJournal {
		t.Fatalf("code = %q, want %q", errors.GetCode(err), errors.ENoJournal)
	}
	if errors.ExitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1", errors.ExitCode(err))
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	isolate(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfg, []byte("ui:\n  color: purple\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	err := Run([]string{"status", "--config", cfg, t.TempDir()}, &stdout, &stderr)
	if errors.GetCode(err) != errors.EInvalidConfig {
		t.Fatalf("code = %q, want %q", errors.GetCode(err), errors.EInvalidConfig)
	}
}
