package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/git"
	"github.com/NielsdaWheelz/stencil/internal/scaffold"
)

// InitOpts holds options for the init command.
type InitOpts struct {
	Dir         string
	NoGitignore bool
	Force       bool
}

// InitResult holds the result of the init command for output formatting.
type InitResult struct {
	Dir            string
	RecipeState    string // "created" or "overwritten"
	FilesCreated   []string
	GitignorePath  string
	GitignoreState scaffold.GitignoreResult
}

// Init implements `stencil init`: writes a starter recipe into dir and
// ignores .stencil/ in the enclosing repository's .gitignore (or dir's own
// when dir is not in a repository).
func Init(ctx context.Context, env *Env, opts InitOpts) error {
	dir, err := env.resolveDir(opts.Dir)
	if err != nil {
		return err
	}

	created, err := scaffold.CreateStarter(env.FS, dir, opts.Force)
	if err != nil {
		return err
	}
	result := InitResult{Dir: dir, RecipeState: "created"}
	for _, f := range created.Overwritten {
		if f == scaffold.RecipeFile {
			result.RecipeState = "overwritten"
		}
	}
	for _, f := range created.Created {
		if f != scaffold.RecipeFile {
			result.FilesCreated = append(result.FilesCreated, filepath.ToSlash(f))
		}
	}

	if opts.NoGitignore {
		result.GitignoreState = scaffold.GitignoreSkipped
	} else {
		root := dir
		if repo, err := git.GetRepoRoot(ctx, env.Runner, dir); err == nil {
			root = repo.Path
		}
		result.GitignorePath = filepath.Join(root, ".gitignore")
		result.GitignoreState, err = scaffold.EnsureGitignore(env.FS, result.GitignorePath)
		if err != nil {
			return errors.WrapWithDetails(errors.EWriteFailed, "failed to update .gitignore", err,
				map[string]string{"file": result.GitignorePath})
		}
	}

	writeInitOutput(env.Stdout, result)
	if opts.NoGitignore {
		fmt.Fprintln(env.Stdout, "warning: gitignore_skipped")
	}
	return nil
}

// writeInitOutput writes the stable key: value output for init.
func writeInitOutput(w io.Writer, r InitResult) {
	fmt.Fprintf(w, "dir: %s\n", r.Dir)
	fmt.Fprintf(w, "recipe: %s\n", r.RecipeState)

	files := "none"
	if len(r.FilesCreated) > 0 {
		files = strings.Join(r.FilesCreated, ", ")
	}
	fmt.Fprintf(w, "templates_created: %s\n", files)
	if r.GitignorePath != "" {
		fmt.Fprintf(w, "gitignore_path: %s\n", r.GitignorePath)
	}
	fmt.Fprintf(w, "gitignore: %s\n", r.GitignoreState)
}
