package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/step"
)

const yamlRecipe = `name: sidekiq
description: add sidekiq
vars:
  queue: default
steps:
  - kind: append_text
    file: Gemfile
    text: "gem 'sidekiq'\n"
  - kind: insert_text
    name: routes
    file: config/routes.rb
    anchor: "Rails.application.routes.draw do"
    text: "require 'sidekiq/web'\n\n"
    position: before
    once: true
  - kind: run_command
    command: bundle
    args: [install]
    when: "queue != ''"
`

const tomlRecipe = `name = "sidekiq"

[vars]
queue = "default"

[[steps]]
kind = "append_text"
file = "Gemfile"
text = "gem 'sidekiq'\n"

[[steps]]
kind = "insert_text"
name = "routes"
file = "config/routes.rb"
anchor = "Rails.application.routes.draw do"
text = "require 'sidekiq/web'\n\n"
position = "before"
once = true

[[steps]]
kind = "run_command"
command = "bundle"
args = ["install"]
when = "queue != ''"
`

func TestParse_YAMLAndTOMLAgree(t *testing.T) {
	y, err := Parse([]byte(yamlRecipe), FormatYAML)
	require.NoError(t, err)
	tm, err := Parse([]byte(tomlRecipe), FormatTOML)
	require.NoError(t, err)

	y.Description = ""
	assert.Equal(t, y, tm)
	require.Len(t, y.Steps, 3)
	assert.Equal(t, step.KindInsertText, y.Steps[1].Kind)
	assert.Equal(t, step.Before, y.Steps[1].Position)
	assert.True(t, y.Steps[1].Once)
	assert.Equal(t, []string{"install"}, y.Steps[2].Args)
	require.NoError(t, y.Validate())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nstepz: []\n"), FormatYAML)
	assert.Equal(t, errors.EInvalidRecipe, errors.GetCode(err))

	_, err = Parse([]byte("name = \"x\"\nstepz = 1\n"), FormatTOML)
	require.Error(t, err)
	assert.Equal(t, errors.EInvalidRecipe, errors.GetCode(err))

	_, err = Parse(nil, FormatYAML)
	assert.Equal(t, errors.EInvalidRecipe, errors.GetCode(err))
}

func TestValidate_ReportsStepIndex(t *testing.T) {
	tests := []struct {
		name    string
		recipe  Recipe
		wantIdx string
		wantMsg string
	}{
		{
			name: "bad position",
			recipe: Recipe{Steps: []step.Step{
				step.Say("hi"),
				step.InsertText("a", "b", "c", "middle"),
			}},
			wantIdx: "1",
			wantMsg: "position must be",
		},
		{
			name: "bad regex",
			recipe: Recipe{Steps: []step.Step{
				step.RegexReplace("a", "(", "x"),
			}},
			wantIdx: "0",
			wantMsg: "invalid pattern",
		},
		{
			name: "bad when",
			recipe: Recipe{Steps: []step.Step{
				step.Say("a"), step.Say("b"), step.Say("c").If("((("),
			}},
			wantIdx: "2",
			wantMsg: "invalid when expression",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.recipe.Validate()
			require.Error(t, err)
			se, ok := errors.AsStencilError(err)
			require.True(t, ok)
			assert.Equal(t, errors.EInvalidRecipe, se.Code)
			assert.Equal(t, tt.wantIdx, se.Details["step_index"])
			assert.Contains(t, se.Msg, tt.wantMsg)
		})
	}

	err := (&Recipe{}).Validate()
	assert.Equal(t, errors.EInvalidRecipe, errors.GetCode(err))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sidekiq-setup.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlRecipe[len("name: sidekiq\n"):]), 0o644))

	r, err := Load(fs.NewRealFS(), path, Commands{})
	require.NoError(t, err)
	assert.Equal(t, "sidekiq-setup", r.Name, "name defaults to file name")

	r, err = Load(fs.NewRealFS(), filepath.Join(dir, "template.rb"), Commands{})
	require.NoError(t, err)
	assert.Equal(t, "rails", r.Name)

	_, err = Load(fs.NewRealFS(), filepath.Join(dir, "missing.toml"), Commands{})
	assert.Equal(t, errors.ERecipeNotFound, errors.GetCode(err))

	_, err = Load(fs.NewRealFS(), filepath.Join(dir, "recipe.json"), Commands{})
	assert.Equal(t, errors.EInvalidRecipe, errors.GetCode(err))
}

func TestBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("builtin:rails"))
	assert.False(t, IsBuiltin("rails.yaml"))

	r, err := Builtin("builtin:rails", Commands{})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	_, err = Builtin("builtin:django", Commands{})
	assert.Equal(t, errors.ERecipeNotFound, errors.GetCode(err))
}

func TestParseVars(t *testing.T) {
	vars, err := ParseVars([]string{"app_name=blog", "greeting=a=b", "app_name=shop"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app_name": "shop", "greeting": "a=b"}, vars)

	_, err = ParseVars([]string{"novalue"})
	assert.Equal(t, errors.EInvalidVariable, errors.GetCode(err))
	_, err = ParseVars([]string{"1bad=x"})
	assert.Equal(t, errors.EInvalidVariable, errors.GetCode(err))
}

func TestMergeVars(t *testing.T) {
	got := MergeVars(
		map[string]string{"a": "1", "b": "1"},
		nil,
		map[string]string{"b": "2"},
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
	assert.Equal(t, []string{"a", "b"}, SortedVarNames(got))
}
