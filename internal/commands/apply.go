package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/pipeline"
	"github.com/NielsdaWheelz/stencil/internal/recipe"
	"github.com/NielsdaWheelz/stencil/internal/render"
	"github.com/NielsdaWheelz/stencil/internal/repo"
	"github.com/NielsdaWheelz/stencil/internal/runservice"
)

// ApplyOpts holds options for apply and plan.
type ApplyOpts struct {
	// Target is the project directory (empty = cwd).
	Target string

	// Recipe is a recipe path, URL or builtin:<name>.
	Recipe string

	// Vars are raw key=value overrides.
	Vars []string

	Force  bool
	Resume bool
	DryRun bool

	// JSON prints the plan as JSON (dry runs only).
	JSON bool
}

// Apply implements `stencil apply`. Steps report progress on stdout as they
// run; with DryRun nothing is executed and the plan is printed instead.
func Apply(ctx context.Context, env *Env, opts ApplyOpts) error {
	if opts.JSON && !opts.DryRun {
		return usageError("--json requires --dry-run")
	}
	vars, err := recipe.ParseVars(opts.Vars)
	if err != nil {
		return err
	}
	target := opts.Target
	if target == "" {
		target = env.Cwd
	} else if !filepath.IsAbs(target) {
		target = filepath.Join(env.Cwd, target)
	}

	if !opts.DryRun {
		warnDirtyTarget(ctx, env, target)
	}

	printer := env.printer()
	svc := runservice.New(runservice.Deps{
		Runner:    env.Runner,
		FS:        env.FS,
		Config:    env.Config,
		Logger:    env.logger(),
		Reporter:  printer,
		Echo:      env.Stdout,
		MkdirTemp: env.MkdirTemp,
	})
	st, err := pipeline.New(svc, env.logger()).Run(ctx, pipeline.Opts{
		Target:    target,
		RecipeRef: opts.Recipe,
		Vars:      vars,
		Force:     opts.Force,
		Resume:    opts.Resume,
		DryRun:    opts.DryRun,
	})
	for _, w := range st.Warnings {
		fmt.Fprintf(env.Stderr, "warning: %s\n", w.Message)
	}
	if err != nil {
		if st.Result != nil {
			fmt.Fprintf(env.Stderr, "\napplied %d step(s) before the failure (run %s)\n", st.Result.Applied(), st.Result.RunID)
			fmt.Fprintf(env.Stderr, "fix the problem and resume with: %s\n", resumeHint(opts))
			fmt.Fprintf(env.Stderr, "or undo the changed files with: stencil rollback %s\n", st.Target)
		}
		return err
	}

	if opts.DryRun {
		if opts.JSON {
			return render.WriteJSON(env.Stdout, render.PlanSteps(st.Plan))
		}
		printer.WritePlan(st.Recipe.Name, st.Plan)
		return nil
	}

	fmt.Fprintf(env.Stdout, "\n%s: %d of %d step(s) applied (run %s)\n",
		st.Recipe.Name, st.Result.Applied(), len(st.Result.Steps), st.Result.RunID)
	return nil
}

// Plan implements `stencil plan`: apply with --dry-run.
func Plan(ctx context.Context, env *Env, opts ApplyOpts) error {
	opts.DryRun = true
	return Apply(ctx, env, opts)
}

// warnDirtyTarget prints a warning when target has uncommitted changes.
// Git failures only log; they never stop an apply.
func warnDirtyTarget(ctx context.Context, env *Env, target string) {
	state, err := repo.Inspect(ctx, env.Runner, target)
	if err != nil {
		env.logger().Debug("git state check failed", "target", target, "error", err)
		return
	}
	if msg := state.DirtyWarning(); msg != "" {
		env.logger().Info("target not clean", "code", repo.WarnDirtyTarget, "repo_root", state.RepoRoot)
		fmt.Fprintf(env.Stderr, "warning: %s\n", msg)
	}
}

func resumeHint(opts ApplyOpts) string {
	parts := []string{"stencil apply"}
	if opts.Target != "" {
		parts = append(parts, opts.Target)
	}
	parts = append(parts, "--recipe", exec.ShellEscapePosix(opts.Recipe))
	for _, v := range opts.Vars {
		parts = append(parts, "--var", exec.ShellEscapePosix(v))
	}
	if opts.Force {
		parts = append(parts, "--force")
	}
	parts = append(parts, "--resume")
	return strings.Join(parts, " ")
}

// usageError is returned for bad flag combinations.
func usageError(msg string) error {
	return errors.New(errors.EUsage, msg)
}
