package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/git"
)

// TempPattern names clone directories.
const TempPattern = "stencil-template-*"

// Source is a local directory holding templates, and optionally the recipe file.
type Source struct {
	Location Location

	// Dir is the template directory to search for copy sources.
	Dir string

	// RecipePath is the recipe file, if the reference named one.
	RecipePath string

	cleanup func() error
}

// Cleanup removes the clone directory of a remote source. Safe to call on local sources.
func (s *Source) Cleanup() error {
	if s == nil || s.cleanup == nil {
		return nil
	}
	err := s.cleanup()
	s.cleanup = nil
	return err
}

// Fetcher makes locations available locally.
type Fetcher struct {
	Runner exec.CommandRunner
	FS     fs.FS
	Logger *slog.Logger

	// DefaultRepository is cloned for URLs that do not name a GitHub repository.
	DefaultRepository string

	// MkdirTemp creates the clone directory. Defaults to os.MkdirTemp in the system temp dir.
	MkdirTemp func(dir, pattern string) (string, error)
}

// Fetch resolves raw into a Source.
//
// Local references: a file yields its directory as the source and itself as
// the recipe; a directory is used as the source with no recipe file.
// Remote references are cloned into a temporary directory which the caller
// removes with Cleanup.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Source, error) {
	loc := Parse(raw, f.DefaultRepository)
	if loc.Remote {
		return f.clone(ctx, loc)
	}
	return f.local(loc)
}

// FetchRepository clones a repository URL, ignoring any file part.
func (f *Fetcher) FetchRepository(ctx context.Context, cloneURL, branch string) (*Source, error) {
	return f.clone(ctx, Location{Raw: cloneURL, Remote: true, CloneURL: cloneURL, Branch: branch})
}

func (f *Fetcher) local(loc Location) (*Source, error) {
	abs, err := filepath.Abs(loc.Raw)
	if err != nil {
		return nil, errors.Wrap(errors.ERecipeNotFound, "failed to resolve path", err)
	}
	info, err := f.FS.Stat(abs)
	if err != nil {
		return nil, errors.NewWithDetails(errors.ERecipeNotFound, "recipe or template path does not exist",
			map[string]string{"path": loc.Raw})
	}
	if info.IsDir() {
		return &Source{Location: loc, Dir: abs}, nil
	}
	return &Source{Location: loc, Dir: filepath.Dir(abs), RecipePath: abs}, nil
}

func (f *Fetcher) clone(ctx context.Context, loc Location) (*Source, error) {
	if loc.CloneURL == "" {
		return nil, errors.NewWithDetails(errors.ESourceFetch, "no repository to clone for URL",
			map[string]string{"url": loc.Raw})
	}
	mkdirTemp := f.MkdirTemp
	if mkdirTemp == nil {
		mkdirTemp = os.MkdirTemp
	}
	dir, err := mkdirTemp("", TempPattern)
	if err != nil {
		return nil, errors.Wrap(errors.ESourceFetch, "failed to create temp directory", err)
	}
	src := &Source{
		Location: loc,
		Dir:      dir,
		cleanup:  func() error { return f.FS.RemoveAll(dir) },
	}

	f.logger().Info("cloning template repository", "url", loc.CloneURL, "branch", loc.Branch, "dir", dir)
	if err := git.Clone(ctx, f.Runner, loc.CloneURL, dir); err != nil {
		_ = src.Cleanup()
		return nil, err
	}
	if strings.Count(loc.Ref, "/") > 1 {
		loc.Branch, loc.File = f.resolveRef(ctx, dir, loc.Ref)
		src.Location = loc
	}
	if loc.Branch != "" {
		if err := git.Checkout(ctx, f.Runner, dir, loc.Branch); err != nil {
			_ = src.Cleanup()
			return nil, err
		}
	}
	if loc.File != "" {
		candidate := filepath.Join(dir, filepath.FromSlash(loc.File))
		if ok, _ := fs.Exists(f.FS, candidate); ok {
			src.RecipePath = candidate
		}
	}
	return src, nil
}

// resolveRef picks the longest leading segments of ref that name a branch or
// tag in the clone. Falls back to the first segment.
func (f *Fetcher) resolveRef(ctx context.Context, dir, ref string) (branch, file string) {
	for n := strings.Count(ref, "/"); n > 1; n-- {
		b, p := splitRef(ref, n)
		if git.RefExists(ctx, f.Runner, dir, b) {
			return b, p
		}
	}
	return splitRef(ref, 1)
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}
