package config

import (
	"log/slog"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
)

// Validate checks value constraints. Returns E_INVALID_CONFIG naming the key.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Source.Repository) == "" {
		return invalid(KeySourceRepository, "must be a non-empty URL or path")
	}
	for _, p := range cfg.Source.Paths {
		if strings.TrimSpace(p) == "" {
			return invalid(KeySourcePaths, "entries must be non-empty")
		}
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return invalid(KeyLogLevel, "must be one of debug, info, warn, error")
	}
	switch cfg.UI.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return invalid(KeyUIColor, "must be one of auto, always, never")
	}
	for key, cmd := range map[string]string{
		KeyCommandsRails:  cfg.Commands.Rails,
		KeyCommandsBundle: cfg.Commands.Bundle,
		KeyCommandsGit:    cfg.Commands.Git,
	} {
		if strings.TrimSpace(cmd) == "" {
			return invalid(key, "must be a non-empty command")
		}
	}
	return nil
}

func invalid(key, msg string) error {
	return errors.NewWithDetails(errors.EInvalidConfig, key+" "+msg, map[string]string{"key": key})
}

// ParseLevel maps a log.level value to a slog level. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}

// FirstValidationError returns the message of a coded error, or err.Error() otherwise.
func FirstValidationError(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := errors.AsStencilError(err); ok {
		return se.Msg
	}
	return err.Error()
}
