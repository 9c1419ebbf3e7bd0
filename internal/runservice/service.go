// Package runservice is the production implementation of pipeline.Service:
// it finds the target, fetches recipes and template sources, resolves
// variables and drives the applier.
package runservice

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/stencil/internal/applier"
	"github.com/NielsdaWheelz/stencil/internal/config"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/pipeline"
	"github.com/NielsdaWheelz/stencil/internal/recipe"
	"github.com/NielsdaWheelz/stencil/internal/source"
)

// RecipeFileNames are looked up, in order, when a recipe reference is a directory.
var RecipeFileNames = []string{"recipe.yaml", "recipe.yml", "recipe.toml", "template.rb"}

// Warning codes.
const (
	WarnNoRailsVersion = "W_NO_RAILS_VERSION"
)

// Service implements pipeline.Service.
type Service struct {
	cr       exec.CommandRunner
	fsys     fs.FS
	cfg      config.Config
	logger   *slog.Logger
	reporter applier.Reporter
	echo     io.Writer
	fetcher  *source.Fetcher
	nowFunc  func() time.Time
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Runner   exec.CommandRunner
	FS       fs.FS
	Config   config.Config
	Logger   *slog.Logger
	Reporter applier.Reporter

	// Echo receives live command output; nil keeps it captured.
	Echo io.Writer

	// MkdirTemp overrides where clones go; nil uses the system temp dir.
	MkdirTemp func(dir, pattern string) (string, error)
}

// New creates a Service.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		cr:       d.Runner,
		fsys:     d.FS,
		cfg:      d.Config,
		logger:   logger,
		reporter: d.Reporter,
		echo:     d.Echo,
		fetcher: &source.Fetcher{
			Runner:            d.Runner,
			FS:                d.FS,
			Logger:            logger,
			DefaultRepository: d.Config.Source.Repository,
			MkdirTemp:         d.MkdirTemp,
		},
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the time source for testing.
func (s *Service) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

var _ pipeline.Service = (*Service)(nil)

// CheckTarget makes the target absolute and requires it to be a directory.
func (s *Service) CheckTarget(_ context.Context, st *pipeline.State) error {
	target := st.Opts.Target
	if target == "" {
		target = "."
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return errors.Wrap(errors.ETargetNotFound, "failed to resolve target", err)
	}
	info, err := s.fsys.Stat(abs)
	if err != nil || !info.IsDir() {
		return errors.NewWithDetails(errors.ETargetNotFound, "target directory does not exist",
			map[string]string{"target": abs})
	}
	st.Target = abs
	return nil
}

// LoadRecipe resolves the recipe reference.
//
// Built-in recipes take their templates from source.repository. Files and
// URLs take them from the directory the recipe lives in. source.paths are
// searched after either.
func (s *Service) LoadRecipe(ctx context.Context, st *pipeline.State) error {
	ref := st.Opts.RecipeRef
	if ref == "" {
		return errors.New(errors.EUsage, "--recipe is required")
	}
	cmds := s.commands()

	var src *source.Source
	var err error
	if recipe.IsBuiltin(ref) {
		st.Recipe, err = recipe.Builtin(ref, cmds)
		if err != nil {
			return err
		}
		if st.Opts.DryRun {
			// Planning never reads templates.
			st.Sources = s.cfg.Source.Paths
			return nil
		}
		src, err = s.fetchRepository(ctx, s.cfg.Source.Repository)
		if err != nil {
			return err
		}
		st.AddCleanup(src.Cleanup)
	} else {
		src, err = s.fetcher.Fetch(ctx, ref)
		if err != nil {
			return err
		}
		st.AddCleanup(src.Cleanup)

		path := src.RecipePath
		if path == "" {
			path, err = s.findRecipeFile(src.Dir)
			if err != nil {
				return err
			}
		}
		st.Recipe, err = recipe.Load(s.fsys, path, cmds)
		if err != nil {
			return err
		}
	}

	st.Sources = append([]string{src.Dir}, s.cfg.Source.Paths...)
	s.logger.Debug("recipe loaded", "recipe", st.Recipe.Name, "steps", len(st.Recipe.Steps), "sources", st.Sources)
	return nil
}

// fetchRepository clones a URL or uses a local directory as-is.
func (s *Service) fetchRepository(ctx context.Context, repo string) (*source.Source, error) {
	if source.IsURL(repo) {
		return s.fetcher.FetchRepository(ctx, repo, "")
	}
	src, err := s.fetcher.Fetch(ctx, repo)
	if err != nil {
		return nil, errors.WithDetail(err, "key", config.KeySourceRepository)
	}
	return src, nil
}

func (s *Service) findRecipeFile(dir string) (string, error) {
	for _, name := range RecipeFileNames {
		p := filepath.Join(dir, name)
		if ok, _ := fs.Exists(s.fsys, p); ok {
			return p, nil
		}
	}
	return "", errors.NewWithDetails(errors.ERecipeNotFound, "no recipe file in directory", map[string]string{
		"dir":    dir,
		"looked": "recipe.yaml, recipe.yml, recipe.toml, template.rb",
	})
}

// ResolveVars layers, lowest first: recipe defaults, values detected from the
// target (rails_version, app_name, target), then --var overrides.
func (s *Service) ResolveVars(_ context.Context, st *pipeline.State) error {
	detected := map[string]string{
		"app_name": filepath.Base(st.Target),
		"target":   st.Target,
	}
	if v, ok := recipe.DetectRailsVersion(s.fsys, st.Target); ok {
		detected["rails_version"] = v
	} else if _, wanted := st.Recipe.Vars["rails_version"]; wanted {
		st.Warn(WarnNoRailsVersion, "rails version not found in Gemfile.lock; using "+st.Recipe.Vars["rails_version"])
	}
	st.Vars = recipe.MergeVars(st.Recipe.Vars, detected, st.Opts.Vars)
	return nil
}

// Apply runs the recipe, or plans it when Opts.DryRun is set.
func (s *Service) Apply(ctx context.Context, st *pipeline.State) error {
	a := applier.New(&applier.Workspace{
		Target:   st.Target,
		Sources:  st.Sources,
		Vars:     st.Vars,
		Runner:   s.cr,
		FS:       s.fsys,
		Logger:   s.logger,
		Reporter: s.reporter,
		Echo:     s.echo,
	})
	a.SetNowFunc(s.nowFunc)

	if st.Opts.DryRun {
		plan, err := a.Plan(st.Recipe.Steps, st.Opts.Resume)
		st.Plan = plan
		return err
	}
	res, err := a.Apply(ctx, st.Recipe.Steps, applier.Options{
		Recipe: st.Recipe.Name,
		Force:  st.Opts.Force || s.cfg.Apply.Force,
		Resume: st.Opts.Resume,
	})
	st.Result = res
	return err
}

func (s *Service) commands() recipe.Commands {
	return recipe.Commands{
		Rails:  s.cfg.Commands.Rails,
		Bundle: s.cfg.Commands.Bundle,
		Git:    s.cfg.Commands.Git,
	}
}
