// Package scaffold writes the starter recipe created by `stencil init` and
// keeps .stencil/ out of version control.
package scaffold

// RecipeFile is the starter recipe's file name.
const RecipeFile = "recipe.yaml"

// StarterRecipe shows the common step kinds against a Rails-shaped project.
// Template paths are relative to the recipe's directory.
const StarterRecipe = `# stencil recipe: apply with
#   stencil apply <target> --recipe recipe.yaml --var owner=you
name: starter
description: example recipe; edit to taste
vars:
  owner: nobody
  environment: development
steps:
  - kind: append_text
    name: add sidekiq gem
    file: Gemfile
    text: "gem 'sidekiq', '~> 5.0'\n"
  - kind: insert_text
    name: use sidekiq for active job
    file: config/application.rb
    anchor: "class Application < Rails::Application\n"
    text: "    config.active_job.queue_adapter = :sidekiq\n"
    position: after
    once: true
  - kind: copy_file
    name: notice
    src: templates/NOTICE.md.tt
    dst: NOTICE.md
  - kind: regex_replace
    file: config/database.yml
    pattern: "pool: \\d+"
    replacement: "pool: 10"
    when: "environment == 'production'"
  - kind: run_command
    command: bundle
    args: [install]
  - kind: say
    message: "done; owner is {{ owner }}"
`

// NoticeTemplate is rendered with recipe variables by the copy_file step above.
const NoticeTemplate = `# {{ app_name|capfirst }}

Maintained by {{ owner }}.
`
