// Package pipeline orchestrates `stencil apply`: resolve the target, load the
// recipe and its template sources, resolve variables, then apply or plan.
// Stages run in a fixed order and stop at the first error; coded errors pass
// through unchanged.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/NielsdaWheelz/stencil/internal/applier"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/recipe"
)

// Opts are the apply inputs as given on the command line.
type Opts struct {
	// Target is the project directory; relative paths resolve against cwd.
	Target string

	// RecipeRef is a recipe path, URL or "builtin:<name>".
	RecipeRef string

	// Vars are --var overrides; they win over every other variable source.
	Vars map[string]string

	Force  bool
	Resume bool
	DryRun bool
}

// Warning is a non-fatal note collected while running.
type Warning struct {
	Code    string
	Message string
}

// State accumulates what each stage resolves.
type State struct {
	Opts Opts

	// Populated by CheckTarget.
	Target string

	// Populated by LoadRecipe.
	Recipe  *recipe.Recipe
	Sources []string

	// Populated by ResolveVars.
	Vars map[string]string

	// Populated by Apply: Plan on dry runs, Result otherwise.
	Plan   []applier.PlannedStep
	Result *applier.Result

	Warnings []Warning

	cleanups []func() error
}

// AddCleanup registers fn to run when the pipeline finishes, success or not.
func (st *State) AddCleanup(fn func() error) {
	st.cleanups = append(st.cleanups, fn)
}

// Warn records a warning.
func (st *State) Warn(code, msg string) {
	st.Warnings = append(st.Warnings, Warning{Code: code, Message: msg})
}

// Service implements the stages. Implementations are injected so the
// pipeline can be tested without git or a real filesystem.
type Service interface {
	// CheckTarget resolves and verifies the target directory.
	CheckTarget(ctx context.Context, st *State) error

	// LoadRecipe loads the recipe and makes its template sources available locally.
	LoadRecipe(ctx context.Context, st *State) error

	// ResolveVars merges recipe defaults, detected values and overrides.
	ResolveVars(ctx context.Context, st *State) error

	// Apply runs the recipe against the target, or plans it on dry runs.
	Apply(ctx context.Context, st *State) error
}

// Stage names, reported in E_INTERNAL details.
const (
	StageCheckTarget = "CheckTarget"
	StageLoadRecipe  = "LoadRecipe"
	StageResolveVars = "ResolveVars"
	StageApply       = "Apply"
)

// Pipeline runs the stages in order.
type Pipeline struct {
	svc    Service
	logger *slog.Logger
}

// New creates a pipeline over svc. logger may be nil.
func New(svc Service, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{svc: svc, logger: logger}
}

// Run executes CheckTarget, LoadRecipe, ResolveVars and Apply in that order.
//
// The returned state is never nil and holds whatever was resolved before a
// failure. A non-coded error from a stage becomes E_INTERNAL with the stage
// name in the "step" detail. Registered cleanups always run; their failures
// are logged, not returned.
func (p *Pipeline) Run(ctx context.Context, opts Opts) (*State, error) {
	st := &State{Opts: opts}
	defer p.cleanup(st)

	stages := []struct {
		name string
		fn   func(context.Context, *State) error
	}{
		{StageCheckTarget, p.svc.CheckTarget},
		{StageLoadRecipe, p.svc.LoadRecipe},
		{StageResolveVars, p.svc.ResolveVars},
		{StageApply, p.svc.Apply},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return st, errors.Wrap(errors.EInternal, "interrupted", err)
		}
		p.logger.Debug("pipeline stage", "stage", s.name)
		if err := s.fn(ctx, st); err != nil {
			return st, wrapStageError(err, s.name)
		}
	}
	return st, nil
}

func (p *Pipeline) cleanup(st *State) {
	for i := len(st.cleanups) - 1; i >= 0; i-- {
		if err := st.cleanups[i](); err != nil {
			p.logger.Warn("cleanup failed", "error", err)
		}
	}
	st.cleanups = nil
}

// wrapStageError leaves coded errors alone and wraps anything else as E_INTERNAL.
func wrapStageError(err error, stage string) error {
	if _, ok := errors.AsStencilError(err); ok {
		return err
	}
	return errors.WrapWithDetails(errors.EInternal, "internal error", err,
		map[string]string{"step": stage})
}
