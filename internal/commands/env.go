// Package commands implements stencil's CLI commands.
package commands

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/NielsdaWheelz/stencil/internal/config"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/paths"
	"github.com/NielsdaWheelz/stencil/internal/render"
)

// Env carries what every command needs. The CLI builds the real one;
// tests inject stubs.
type Env struct {
	Runner exec.CommandRunner
	FS     fs.FS
	Config config.Config
	Dirs   paths.Dirs
	Logger *slog.Logger

	// Cwd resolves relative targets.
	Cwd string

	Stdout io.Writer
	Stderr io.Writer

	// Color enables styled status output.
	Color bool

	// MkdirTemp overrides where template clones go; nil uses the system temp dir.
	MkdirTemp func(dir, pattern string) (string, error)
}

func (e *Env) printer() *render.Printer {
	return render.NewPrinter(e.Stdout, e.Color)
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// resolveDir makes dir absolute against Cwd. Empty means Cwd.
func (e *Env) resolveDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.Cwd, dir)
	}
	info, err := e.FS.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", errors.NewWithDetails(errors.ETargetNotFound, "target directory does not exist",
			map[string]string{"target": dir})
	}
	return filepath.Clean(dir), nil
}
