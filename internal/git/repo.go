// Package git provides the git operations stencil needs via CommandRunner:
// fetching template repositories and inspecting targets.
package git

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
)

// Bin is the git executable.
const Bin = "git"

// RepoRoot holds the absolute path to a git repository root.
type RepoRoot struct {
	Path string // absolute, clean, no trailing newline
}

// GetRepoRoot discovers the git repository root from the given working directory.
// Uses `git rev-parse --show-toplevel` via CommandRunner.
//
// Returns E_NO_REPO if:
//   - Not inside a git repository (exit code != 0)
//   - Git outputs empty stdout
//   - cwd is empty
func GetRepoRoot(ctx context.Context, cr exec.CommandRunner, cwd string) (RepoRoot, error) {
	if cwd == "" {
		return RepoRoot{}, errors.New(errors.ENoRepo, "working directory is empty")
	}

	result, err := cr.Run(ctx, Bin, []string{"rev-parse", "--show-toplevel"}, exec.RunOpts{Dir: cwd})
	if err != nil {
		return RepoRoot{}, errors.Wrap(errors.ENoRepo, "failed to run git rev-parse", err)
	}
	if result.ExitCode != 0 {
		return RepoRoot{}, errors.New(errors.ENoRepo, "not inside a git repository")
	}

	out := strings.TrimSpace(result.Stdout)
	if out == "" || strings.Contains(out, "\n") {
		return RepoRoot{}, errors.New(errors.ENoRepo, "git rev-parse returned unexpected output")
	}

	if !filepath.IsAbs(out) {
		out = filepath.Join(cwd, out)
	}
	return RepoRoot{Path: filepath.Clean(out)}, nil
}

// Clone clones url into dir quietly.
// Returns E_SOURCE_FETCH with git's stderr on failure.
func Clone(ctx context.Context, cr exec.CommandRunner, url, dir string) error {
	args := []string{"clone", "--quiet", url, dir}
	return run(ctx, cr, "", args, "failed to clone template repository", map[string]string{"url": url})
}

// Checkout checks out branch inside repoDir.
func Checkout(ctx context.Context, cr exec.CommandRunner, repoDir, branch string) error {
	args := []string{"checkout", "--quiet", branch}
	return run(ctx, cr, repoDir, args, "failed to check out template branch", map[string]string{"branch": branch})
}

// RefExists reports whether ref names a commit in repoDir, as a local
// branch or tag or as a branch of origin.
func RefExists(ctx context.Context, cr exec.CommandRunner, repoDir, ref string) bool {
	for _, name := range []string{ref, "origin/" + ref} {
		args := []string{"rev-parse", "--verify", "--quiet", name + "^{commit}"}
		result, err := cr.Run(ctx, Bin, args, exec.RunOpts{Dir: repoDir})
		if err == nil && result.ExitCode == 0 {
			return true
		}
	}
	return false
}

// Version returns the output of `git --version`, trimmed.
func Version(ctx context.Context, cr exec.CommandRunner) (string, error) {
	result, err := cr.Run(ctx, Bin, []string{"--version"}, exec.RunOpts{})
	if err != nil {
		return "", errors.Wrap(errors.EToolNotInstalled, "git not found", err)
	}
	if result.ExitCode != 0 {
		return "", errors.New(errors.EToolNotInstalled, "git --version failed")
	}
	return strings.TrimSpace(result.Stdout), nil
}

// IsClean checks if the working tree is clean (no uncommitted changes).
// Uses `git status --porcelain` via CommandRunner.
//
// Returns (true, nil) if the working tree is clean (stdout empty).
// Returns (false, nil) if there are uncommitted changes.
// Returns (false, error) only for execution failures.
func IsClean(ctx context.Context, cr exec.CommandRunner, repoRoot string) (bool, error) {
	result, err := cr.Run(ctx, Bin, []string{"status", "--porcelain"}, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return false, errors.Wrap(errors.EInternal, "failed to run git status --porcelain", err)
	}
	if result.ExitCode != 0 {
		return false, nil
	}
	return strings.TrimSpace(result.Stdout) == "", nil
}

func run(ctx context.Context, cr exec.CommandRunner, dir string, args []string, msg string, details map[string]string) error {
	result, err := cr.Run(ctx, Bin, args, exec.RunOpts{Dir: dir})
	if err != nil {
		return errors.WrapWithDetails(errors.ESourceFetch, msg, err, details)
	}
	if result.ExitCode != 0 {
		d := make(map[string]string, len(details)+1)
		for k, v := range details {
			d[k] = v
		}
		d["stderr"] = result.Stderr
		return errors.NewWithDetails(errors.ESourceFetch, msg, d)
	}
	return nil
}
