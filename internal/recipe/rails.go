package recipe

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/step"
)

// Commands are the executables Rails actions shell out to.
type Commands struct {
	Rails  string
	Bundle string
	Git    string
}

// DefaultCommands returns bin/rails, bundle and git.
func DefaultCommands() Commands {
	return Commands{Rails: "bin/rails", Bundle: "bundle", Git: "git"}
}

func (c Commands) withDefaults() Commands {
	d := DefaultCommands()
	if c.Rails == "" {
		c.Rails = d.Rails
	}
	if c.Bundle == "" {
		c.Bundle = d.Bundle
	}
	if c.Git == "" {
		c.Git = d.Git
	}
	return c
}

// Anchors Rails generators rely on.
const (
	applicationSentinel = "class Application < Rails::Application\n"
	environmentSentinel = "Rails.application.configure do\n"
	routesSentinel      = "Rails.application.routes.draw do\n"
)

// Gem appends `gem 'name', 'requirement'` to the Gemfile.
func Gem(name, requirement string) step.Step {
	line := fmt.Sprintf("gem '%s'", name)
	if requirement != "" {
		line += fmt.Sprintf(", '%s'", requirement)
	}
	return step.AppendLine("Gemfile", line).Named("gem " + name)
}

// GemFromGitHub appends a gem sourced from a GitHub repository, optionally pinned to a branch.
func GemFromGitHub(name, repo, branch string) step.Step {
	line := fmt.Sprintf("gem '%s', github: '%s'", name, repo)
	if branch != "" {
		line += fmt.Sprintf(", branch: '%s'", branch)
	}
	return step.AppendLine("Gemfile", line).Named("gem " + name)
}

// Environment adds a configuration line to config/application.rb, or to
// config/environments/<env>.rb when env is set.
func Environment(line, env string) step.Step {
	if env == "" {
		return step.InsertText("config/application.rb", applicationSentinel, "    "+line+"\n", step.After)
	}
	return step.InsertText(filepath.ToSlash(filepath.Join("config", "environments", env+".rb")),
		environmentSentinel, "  "+line+"\n", step.After)
}

// Route adds a routing line at the top of the routes block.
func Route(code string) step.Step {
	return step.InsertText("config/routes.rb", routesSentinel, "  "+code+"\n", step.After)
}

// Generate runs a Rails generator.
func (c Commands) Generate(what string, args ...string) step.Step {
	return command(c.Rails, append([]string{"generate", what}, args...)...)
}

// RailsCommand runs `bin/rails <command>`.
func (c Commands) RailsCommand(cmd string) step.Step {
	return command(c.Rails, strings.Fields(cmd)...)
}

// BundleInstall installs the Gemfile's gems.
func (c Commands) BundleInstall() step.Step {
	return command(c.Bundle, "install")
}

// GitInit initialises a repository in the target.
func (c Commands) GitInit() step.Step {
	return command(c.Git, "init")
}

// GitAdd stages path.
func (c Commands) GitAdd(path string) step.Step {
	return command(c.Git, "add", path)
}

// GitCommit commits the index with message.
func (c Commands) GitCommit(message string) step.Step {
	return command(c.Git, "commit", "-m", message)
}

// command splits a configured executable such as "bundle exec rails" into argv.
func command(executable string, args ...string) step.Step {
	fields := strings.Fields(executable)
	return step.RunCommand(fields[0], append(fields[1:], args...)...)
}

// InjectIntoFile inserts text right after the first occurrence of after.
func InjectIntoFile(file, text, after string) step.Step {
	return step.InsertText(file, after, text, step.After)
}

// InsertIntoFileBefore inserts text right before the first occurrence of before.
func InsertIntoFileBefore(file, text, before string) step.Step {
	return step.InsertText(file, before, text, step.Before)
}

// section labels each step "<name>: <step label>".
func section(name string, steps ...step.Step) []step.Step {
	out := make([]step.Step, len(steps))
	for i, s := range steps {
		out[i] = s.Named(name + ": " + s.Label())
	}
	return out
}

const omniauthProviders = `  if Rails.application.secrets.facebook_app_id.present? && Rails.application.secrets.facebook_app_secret.present?
    config.omniauth :facebook, Rails.application.secrets.facebook_app_id, Rails.application.secrets.facebook_app_secret, scope: 'email,user_posts'
  end

  if Rails.application.secrets.twitter_app_id.present? && Rails.application.secrets.twitter_app_secret.present?
    config.omniauth :twitter, Rails.application.secrets.twitter_app_id, Rails.application.secrets.twitter_app_secret
  end

  if Rails.application.secrets.github_app_id.present? && Rails.application.secrets.github_app_secret.present?
    config.omniauth :github, Rails.application.secrets.github_app_id, Rails.application.secrets.github_app_secret
  end

`

const sidekiqRoutes = `  authenticate :user, lambda { |u| u.admin? } do
    mount Sidekiq::Web => '/sidekiq'
  end

`

// DefaultRailsVersion is assumed when the target's Gemfile.lock does not say.
const DefaultRailsVersion = "5.2.0"

// Rails returns the built-in recipe that turns a fresh Rails app into one
// with Devise users, Bootstrap, Sidekiq, Foreman, Webpacker and OmniAuth.
// Template files (app/, config/, lib/, Procfile) come from the template source.
func Rails(cmds Commands) *Recipe {
	c := cmds.withDefaults()

	var steps []step.Step
	add := func(s []step.Step) { steps = append(steps, s...) }

	add(section("add_gems",
		Gem("data-confirm-modal", "~> 1.6.2"),
		Gem("devise", "~> 4.4.3"),
		GemFromGitHub("devise-bootstrapped", "excid3/devise-bootstrapped", "bootstrap4"),
		Gem("devise_masquerade", "~> 0.6.0"),
		Gem("font-awesome-sass", "~> 4.7"),
		GemFromGitHub("gravatar_image_tag", "mdeering/gravatar_image_tag", ""),
		Gem("jquery-rails", "~> 4.3.1"),
		Gem("bootstrap", "~> 4.0.0"),
		Gem("mini_magick", "~> 4.8"),
		Gem("webpacker", "~> 3.4"),
		Gem("sidekiq", "~> 5.0"),
		Gem("foreman", "~> 0.84.0"),
		Gem("omniauth-facebook", "~> 4.0"),
		Gem("omniauth-twitter", "~> 1.4"),
		Gem("omniauth-github", "~> 1.3"),
	))
	add(section("bundle", c.BundleInstall()))

	add(section("set_application_name",
		Environment("config.application_name = Rails.application.class.parent_name", ""),
		step.Say("You can change application name inside: ./config/application.rb"),
	))

	add(section("stop_spring", step.RunShell("spring stop")))

	add(section("add_users",
		c.Generate("devise:install"),
		Environment("config.action_mailer.default_url_options = { host: 'localhost', port: 5000 }", "development"),
		Route("root to: 'home#show'"),
		c.Generate("devise:views:bootstrapped"),
		c.Generate("devise", "User", "name", "announcements_last_read_at:datetime", "admin:boolean"),
		step.RegexReplace(step.LatestPrefix+"db/migrate/*", `:admin`, ":admin, default: false"),
		step.RegexReplace("config/initializers/devise.rb", `  # config.secret_key = .+`,
			"  config.secret_key = Rails.application.credentials.secret_key_base").
			If(`satisfies(rails_version, '> 5.2')`),
		InjectIntoFile("app/models/user.rb", "omniauthable, :masqueradable, :", "devise :"),
	))

	add(section("add_bootstrap",
		step.RemoveFile("app/assets/stylesheets/application.css"),
		InjectIntoFile("app/assets/javascripts/application.js",
			"\n//= require jquery\n//= require popper\n//= require bootstrap\n//= require data-confirm-modal",
			"//= require rails-ujs"),
	))

	add(section("add_sidekiq",
		Environment("config.active_job.queue_adapter = :sidekiq", ""),
		InsertIntoFileBefore("config/routes.rb", "require 'sidekiq/web'\n\n", "Rails.application.routes.draw do"),
		InjectIntoFile("config/routes.rb", sidekiqRoutes, routesSentinel),
	))

	add(section("add_foreman", step.CopyFile("Procfile", "Procfile", false)))

	add(section("add_webpack", c.RailsCommand("webpacker:install")))

	add(section("add_multiple_authentication",
		InjectIntoFile("config/routes.rb", `, controllers: { omniauth_callbacks: "users/omniauth_callbacks" }`, "  devise_for :users"),
		c.Generate("model", "Service", "user:references", "provider", "uid", "access_token",
			"access_token_secret", "refresh_token", "expires_at:datetime", "auth:text"),
		InsertIntoFileBefore("config/initializers/devise.rb", omniauthProviders, "  # ==> Warden configuration"),
	))

	add(section("copy_templates",
		step.CopyDirectory("app", "app", true),
		step.CopyDirectory("config", "config", true),
		step.CopyDirectory("lib", "lib", true),
	))

	add(section("migrate",
		c.RailsCommand("db:create"),
		c.RailsCommand("db:migrate"),
	))

	add(section("git",
		c.GitInit(),
		c.GitAdd("."),
		c.GitCommit("Initial commit"),
	))

	return &Recipe{
		Name:        "rails",
		Description: "Devise, Bootstrap 4, Sidekiq, Foreman, Webpacker and OmniAuth for a new Rails app",
		Vars:        map[string]string{"rails_version": DefaultRailsVersion},
		Steps:       steps,
	}
}

var lockedRails = regexp.MustCompile(`(?m)^    rails \(([^)]+)\)\r?$`)

// DetectRailsVersion reads the locked rails version from target's Gemfile.lock.
func DetectRailsVersion(fsys fs.FS, target string) (string, bool) {
	data, err := fsys.ReadFile(filepath.Join(target, "Gemfile.lock"))
	if err != nil {
		return "", false
	}
	m := lockedRails.FindSubmatch(data)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}
