// Package cli builds stencil's command tree and dispatches to internal/commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/stencil/internal/commands"
	"github.com/NielsdaWheelz/stencil/internal/config"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/logging"
	"github.com/NielsdaWheelz/stencil/internal/paths"
	"github.com/NielsdaWheelz/stencil/internal/render"
	"github.com/NielsdaWheelz/stencil/internal/version"
)

// app carries global flags and the output streams for one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	logLevel   string
	verbose    bool
	noColor    bool

	// ran is set once a command body starts; errors before that are usage errors.
	ran bool
}

// Run parses arguments and dispatches to the appropriate subcommand.
// Returns an error if the command fails; the caller should print the error and exit.
func Run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return nil
	}
	if _, ok := errors.AsStencilError(err); ok {
		return err
	}
	if a.ran {
		return errors.Wrap(errors.EInternal, err.Error(), err)
	}
	if cmd == nil {
		cmd = root
	}
	fmt.Fprint(stderr, cmd.UsageString())
	return errors.Wrap(errors.EUsage, err.Error(), err)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stencil",
		Short: "Apply project templates to an existing application",
		Long: `stencil applies a recipe of file edits and commands to a project directory.

Recipes copy template files, insert or replace text, and run generators.
Progress is journaled under .stencil/ so a failed apply can be resumed
or its file changes rolled back.

Examples:
  stencil apply --recipe builtin:rails          # apply the Rails template to .
  stencil plan ../blog --recipe ./recipe.yaml   # list what would change
  stencil apply --recipe ./recipe.yaml --resume # continue after a failure
  stencil rollback                              # undo the last apply`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return errors.New(errors.EUsage, "no command specified")
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("stencil {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: <config dir>/config.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		a.applyCmd(),
		a.planCmd(),
		a.statusCmd(),
		a.rollbackCmd(),
		a.initCmd(),
		a.doctorCmd(),
	)
	return root
}

func (a *app) applyCmd() *cobra.Command {
	var opts commands.ApplyOpts
	cmd := &cobra.Command{
		Use:   "apply [target]",
		Short: "Apply a recipe to a project directory",
		Long: `Apply a recipe to target (default: current directory).

--recipe accepts a recipe file, a directory containing one, a git URL
(https://host/owner/repo/blob/<branch>/recipe.yaml selects a branch) or
builtin:rails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd)
			if err != nil {
				return err
			}
			opts.Target = firstArg(args)
			return commands.Apply(cmd.Context(), env, opts)
		},
	}
	recipeFlags(cmd, &opts)
	f := cmd.Flags()
	f.BoolVarP(&opts.Force, "force", "f", false, "overwrite files that differ from the template")
	f.BoolVar(&opts.Resume, "resume", false, "skip steps the last run completed")
	f.BoolVarP(&opts.DryRun, "dry-run", "n", false, "print the plan without changing anything")
	return cmd
}

func (a *app) planCmd() *cobra.Command {
	var opts commands.ApplyOpts
	cmd := &cobra.Command{
		Use:   "plan [target]",
		Short: "List the steps a recipe would run (apply --dry-run)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd)
			if err != nil {
				return err
			}
			opts.Target = firstArg(args)
			return commands.Plan(cmd.Context(), env, opts)
		},
	}
	recipeFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "mark steps the last run completed")
	return cmd
}

func recipeFlags(cmd *cobra.Command, opts *commands.ApplyOpts) {
	f := cmd.Flags()
	f.StringVarP(&opts.Recipe, "recipe", "r", "", "recipe path, git URL or builtin:<name> (required)")
	f.StringArrayVar(&opts.Vars, "var", nil, "set a recipe variable (key=value, repeatable)")
	f.BoolVar(&opts.JSON, "json", false, "print the plan as JSON")
	_ = cmd.MarkFlagRequired("recipe")
}

func (a *app) statusCmd() *cobra.Command {
	var opts commands.StatusOpts
	cmd := &cobra.Command{
		Use:   "status [target]",
		Short: "Show the journal of the last apply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd)
			if err != nil {
				return err
			}
			opts.Target = firstArg(args)
			return commands.Status(cmd.Context(), env, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the journal as JSON")
	return cmd
}

func (a *app) rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [target]",
		Short: "Restore files changed by the last apply",
		Long: `Restore files changed by the last apply and remove files it created.
Commands the recipe ran are listed; their effects are not undone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd)
			if err != nil {
				return err
			}
			return commands.Rollback(cmd.Context(), env, commands.RollbackOpts{Target: firstArg(args)})
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var opts commands.InitOpts
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter recipe and ignore .stencil/",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd)
			if err != nil {
				return err
			}
			opts.Dir = firstArg(args)
			return commands.Init(cmd.Context(), env, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.NoGitignore, "no-gitignore", false, "do not modify .gitignore")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing recipe.yaml")
	return cmd
}

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites and show resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.env(cmd)
			if err != nil {
				return err
			}
			return commands.Doctor(cmd.Context(), env)
		},
	}
}

// env loads configuration and builds the real collaborators for cmd.
func (a *app) env(cmd *cobra.Command) (*commands.Env, error) {
	a.ran = true

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to get home directory", err)
	}
	dirs := paths.ResolveDirs(paths.OSEnv{}, home)

	file := a.configFile
	if file == "" {
		file = dirs.ConfigFile()
	}
	v := config.New(file)
	if f := cmd.Flag("log-level"); f != nil {
		_ = v.BindPFlag(config.KeyLogLevel, f)
	}
	if f := cmd.Flag("force"); f != nil && cmd.Name() == "apply" {
		_ = v.BindPFlag(config.KeyApplyForce, f)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to get working directory", err)
	}
	out, _ := a.stdout.(*os.File)

	return &commands.Env{
		Runner: exec.NewRealRunner(),
		FS:     fs.NewRealFS(),
		Config: cfg,
		Dirs:   dirs,
		Logger: logging.New(a.stderr, cfg.Log.Level, a.verbose),
		Cwd:    cwd,
		Stdout: a.stdout,
		Stderr: a.stderr,
		Color:  render.ColorEnabled(cfg.UI.Color, a.noColor, out),
	}, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
