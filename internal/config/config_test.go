package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/stencil/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(New(filepath.Join(t.TempDir(), "config.yaml")))
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, DefaultRepository, cfg.Source.Repository)
	assert.Empty(t, cfg.Source.Paths)
	assert.False(t, cfg.Apply.Force)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ColorAuto, cfg.UI.Color)
	assert.Equal(t, Commands{Rails: "bin/rails", Bundle: "bundle", Git: "git"}, cfg.Commands)
}

func TestLoad_NoFileConfigured(t *testing.T) {
	cfg, err := Load(New(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRepository, cfg.Source.Repository)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `source:
  repository: https://example.com/templates.git
  paths:
    - /srv/templates
apply:
  force: true
commands:
  rails: bundle exec rails
`)
	cfg, err := Load(New(path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "https://example.com/templates.git", cfg.Source.Repository)
	assert.Equal(t, []string{"/srv/templates"}, cfg.Source.Paths)
	assert.True(t, cfg.Apply.Force)
	assert.Equal(t, "bundle exec rails", cfg.Commands.Rails)
	assert.Equal(t, "bundle", cfg.Commands.Bundle, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	t.Setenv("STENCIL_LOG_LEVEL", "debug")
	t.Setenv("STENCIL_SOURCE_REPOSITORY", "/local/templates")

	cfg, err := Load(New(path))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/local/templates", cfg.Source.Repository)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{name: "malformed yaml", content: "source: [unterminated\n"},
		{name: "bad colour", content: "ui:\n  color: rainbow\n", wantKey: KeyUIColor},
		{name: "bad level", content: "log:\n  level: loud\n", wantKey: KeyLogLevel},
		{name: "empty repository", content: "source:\n  repository: \"\"\n", wantKey: KeySourceRepository},
		{name: "empty command", content: "commands:\n  git: \" \"\n", wantKey: KeyCommandsGit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(writeConfig(t, tt.content)))
			require.Error(t, err)
			se, ok := errors.AsStencilError(err)
			require.True(t, ok)
			assert.Equal(t, errors.EInvalidConfig, se.Code)
			if tt.wantKey != "" {
				assert.Equal(t, tt.wantKey, se.Details["key"])
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestFirstValidationError(t *testing.T) {
	assert.Equal(t, "", FirstValidationError(nil))
	err := Validate(Config{})
	assert.Equal(t, "source.repository must be a non-empty URL or path", FirstValidationError(err))
	assert.Equal(t, os.ErrNotExist.Error(), FirstValidationError(os.ErrNotExist))
}
