package applier

import (
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/journal"
	"github.com/NielsdaWheelz/stencil/internal/step"
)

// Reporter receives one status line per observable action, Thor style:
// action is a short verb ("create", "insert", "run"), subject a path or command.
type Reporter interface {
	Status(action, subject string)
	Say(message string)
}

// NopReporter discards status lines.
type NopReporter struct{}

func (NopReporter) Status(string, string) {}
func (NopReporter) Say(string)            {}

// Workspace is the explicit context threaded through every step:
// where to write, where templates come from, and the collaborators used to do it.
type Workspace struct {
	// Target is the absolute project directory being mutated.
	Target string

	// Sources are template directories searched in order for copy sources.
	Sources []string

	// Vars are recipe variables used for interpolation and conditions.
	Vars map[string]string

	Runner   exec.CommandRunner
	FS       fs.FS
	Logger   *slog.Logger
	Reporter Reporter

	// Echo receives live output of commands. Nil keeps it captured only.
	Echo io.Writer
}

// Path resolves rel against the target. Absolute paths are returned cleaned.
func (w *Workspace) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(w.Target, rel)
}

// Rel returns abs relative to the target, or abs itself if it lies outside.
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.Target, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}

// ResolveFile turns a step file field into an absolute path.
// "latest:<glob>" picks the most recently modified match under the target.
func (w *Workspace) ResolveFile(file string) (string, error) {
	pattern, ok := strings.CutPrefix(file, step.LatestPrefix)
	if !ok {
		return w.Path(file), nil
	}

	matches, err := w.FS.Glob(w.Path(pattern))
	if err != nil {
		return "", errors.WrapWithDetails(errors.EInvalidRecipe, "invalid glob", err,
			map[string]string{"pattern": pattern})
	}

	type candidate struct {
		path  string
		mtime int64
	}
	var files []candidate
	for _, m := range matches {
		info, err := w.FS.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, candidate{path: m, mtime: info.ModTime().UnixNano()})
	}
	if len(files) == 0 {
		return "", errors.NewWithDetails(errors.EFileMissing, "no file matches pattern",
			map[string]string{"pattern": pattern})
	}
	// Newest first; name breaks ties so the choice is deterministic
	sort.Slice(files, func(i, j int) bool {
		if files[i].mtime != files[j].mtime {
			return files[i].mtime > files[j].mtime
		}
		return files[i].path > files[j].path
	})
	return files[0].path, nil
}

// FindSource locates rel in the template sources; first hit wins.
func (w *Workspace) FindSource(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		if ok, _ := fs.Exists(w.FS, rel); ok {
			return rel, nil
		}
	} else {
		for _, dir := range w.Sources {
			candidate := filepath.Join(dir, rel)
			if ok, _ := fs.Exists(w.FS, candidate); ok {
				return candidate, nil
			}
		}
	}
	return "", errors.NewWithDetails(errors.ESourceNotFound, "template source not found",
		map[string]string{"src": rel, "searched": strings.Join(w.Sources, ", ")})
}

// skipEntry reports template entries that are never copied.
func skipEntry(name string) bool {
	return name == ".git" || name == journal.DirName
}

func (w *Workspace) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}

func (w *Workspace) reporter() Reporter {
	if w.Reporter == nil {
		return NopReporter{}
	}
	return w.Reporter
}
