package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/git"
	"github.com/NielsdaWheelz/stencil/internal/repo"
)

// missing is reported for optional tools that could not be run.
const missing = "missing"

// DoctorReport holds all the data for doctor output.
type DoctorReport struct {
	// Config and directories
	ConfigFile       string
	ConfigFileExists bool
	ConfigDir        string
	CacheDir         string

	// Resolved configuration
	SourceRepository string
	SourcePaths      []string
	LogLevel         string
	UIColor          string
	ApplyForce       bool

	// Tooling
	GitVersion    string
	BundleVersion string
	RailsVersion  string

	// Working directory
	Cwd      string
	RepoRoot string
	Clean    bool
}

// Doctor implements `stencil doctor`: verifies git is installed, reports
// whether the configured bundle and rails commands run, and prints the
// resolved configuration and paths.
//
// Only a missing git fails (E_TOOL_NOT_INSTALLED); templates are fetched
// with it. bundle and rails are needed by recipe steps, not by stencil.
func Doctor(ctx context.Context, env *Env) error {
	gitVersion, err := git.Version(ctx, env.Runner)
	if err != nil {
		return err
	}

	cfg := env.Config
	report := DoctorReport{
		ConfigFile:       cfg.File,
		ConfigFileExists: cfg.File != "",
		ConfigDir:        env.Dirs.ConfigDir,
		CacheDir:         env.Dirs.CacheDir,
		SourceRepository: cfg.Source.Repository,
		SourcePaths:      cfg.Source.Paths,
		LogLevel:         cfg.Log.Level,
		UIColor:          cfg.UI.Color,
		ApplyForce:       cfg.Apply.Force,
		GitVersion:       gitVersion,
		BundleVersion:    toolVersion(ctx, env.Runner, cfg.Commands.Bundle, env.Cwd),
		RailsVersion:     toolVersion(ctx, env.Runner, cfg.Commands.Rails, env.Cwd),
		Cwd:              env.Cwd,
	}
	if report.ConfigFile == "" {
		report.ConfigFile = env.Dirs.ConfigFile()
	}

	state, err := repo.Inspect(ctx, env.Runner, env.Cwd)
	if err != nil {
		env.logger().Debug("git state check failed", "cwd", env.Cwd, "error", err)
	}
	report.RepoRoot = state.RepoRoot
	report.Clean = state.Clean

	writeDoctorOutput(env.Stdout, report)
	return nil
}

// toolVersion runs `<cmdline> --version` in dir and returns the first line
// of its output, or "missing" when it cannot be run.
func toolVersion(ctx context.Context, cr exec.CommandRunner, cmdline, dir string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return missing
	}
	args := append(fields[1:len(fields):len(fields)], "--version")
	result, err := cr.Run(ctx, fields[0], args, exec.RunOpts{Dir: dir})
	if err != nil || result.ExitCode != 0 {
		return missing
	}
	line, _, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\n")
	if line == "" {
		return missing
	}
	return strings.TrimSpace(line)
}

// writeDoctorOutput writes the stable key: value output.
func writeDoctorOutput(w io.Writer, r DoctorReport) {
	configFile := r.ConfigFile
	if configFile != "" && !r.ConfigFileExists {
		configFile += " (not found, using defaults)"
	}
	fmt.Fprintf(w, "config_file: %s\n", configFile)
	fmt.Fprintf(w, "config_dir: %s\n", r.ConfigDir)
	fmt.Fprintf(w, "cache_dir: %s\n", r.CacheDir)

	fmt.Fprintf(w, "source_repository: %s\n", r.SourceRepository)
	fmt.Fprintf(w, "source_paths: %s\n", listStr(r.SourcePaths))
	fmt.Fprintf(w, "apply_force: %s\n", boolStr(r.ApplyForce))
	fmt.Fprintf(w, "log_level: %s\n", r.LogLevel)
	fmt.Fprintf(w, "ui_color: %s\n", r.UIColor)

	fmt.Fprintf(w, "git_version: %s\n", r.GitVersion)
	fmt.Fprintf(w, "bundle_version: %s\n", r.BundleVersion)
	fmt.Fprintf(w, "rails_version: %s\n", r.RailsVersion)

	fmt.Fprintf(w, "cwd: %s\n", r.Cwd)
	if r.RepoRoot != "" {
		fmt.Fprintf(w, "repo_root: %s\n", r.RepoRoot)
		fmt.Fprintf(w, "repo_clean: %s\n", boolStr(r.Clean))
	} else {
		fmt.Fprintln(w, "repo_root: none")
	}

	fmt.Fprintln(w, "status: ok")
}

func listStr(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
