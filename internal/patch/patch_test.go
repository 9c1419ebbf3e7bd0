package patch

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/stencil/internal/step"
)

const applicationJS = `//= require rails-ujs
//= require activestorage
//= require turbolinks
//= require_tree .
`

const bootstrapRequires = "\n//= require jquery\n//= require popper\n//= require bootstrap\n//= require data-confirm-modal"

func TestInsert_AfterAnchorLine(t *testing.T) {
	out, err := Insert(applicationJS, "//= require rails-ujs", bootstrapRequires, step.After)
	require.NoError(t, err)

	want := []string{
		"//= require rails-ujs",
		"//= require jquery",
		"//= require popper",
		"//= require bootstrap",
		"//= require data-confirm-modal",
		"//= require activestorage",
		"//= require turbolinks",
		"//= require_tree .",
		"",
	}
	assert.Equal(t, want, strings.Split(out, "\n"))
}

func TestInsert_Before(t *testing.T) {
	routes := "Rails.application.routes.draw do\nend\n"
	out, err := Insert(routes, "Rails.application.routes.draw do", "require 'sidekiq/web'\n\n", step.Before)
	require.NoError(t, err)
	assert.Equal(t, "require 'sidekiq/web'\n\nRails.application.routes.draw do\nend\n", out)
}

func TestInsert_FirstOccurrenceOnly(t *testing.T) {
	out, err := Insert("a X b X c", "X", "!", step.After)
	require.NoError(t, err)
	assert.Equal(t, "a X! b X c", out)
}

func TestInsert_AnchorMissing(t *testing.T) {
	out, err := Insert("nothing here", "devise :", "x", step.After)
	assert.ErrorIs(t, err, ErrAnchorNotFound)
	assert.Equal(t, "nothing here", out)
}

func TestInsert_NotIdempotent(t *testing.T) {
	once, err := Insert(applicationJS, "//= require rails-ujs", bootstrapRequires, step.After)
	require.NoError(t, err)
	twice, err := Insert(once, "//= require rails-ujs", bootstrapRequires, step.After)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(once, "//= require popper"))
	assert.Equal(t, 2, strings.Count(twice, "//= require popper"), "second application duplicates the block")
}

func TestInserted(t *testing.T) {
	out, err := Insert(applicationJS, "//= require rails-ujs", bootstrapRequires, step.After)
	require.NoError(t, err)

	assert.True(t, Inserted(out, "//= require rails-ujs", bootstrapRequires, step.After))
	assert.False(t, Inserted(applicationJS, "//= require rails-ujs", bootstrapRequires, step.After))
	assert.False(t, Inserted(out, "missing anchor", bootstrapRequires, step.After))

	before, err := Insert("draw do\n", "draw do", "require 'x'\n", step.Before)
	require.NoError(t, err)
	assert.True(t, Inserted(before, "draw do", "require 'x'\n", step.Before))
}

func TestReplaceFirst(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		pattern     string
		repl        string
		want        string
		wantMatched bool
	}{
		{
			name:        "literal",
			content:     "t.boolean :admin\nt.boolean :admin\n",
			pattern:     `:admin`,
			repl:        ":admin, default: false",
			want:        "t.boolean :admin, default: false\nt.boolean :admin\n",
			wantMatched: true,
		},
		{
			name:        "line pattern",
			content:     "  # config.secret_key = 'abc'\n  config.x = 1\n",
			pattern:     `  # config.secret_key = .+`,
			repl:        "  config.secret_key = Rails.application.credentials.secret_key_base",
			want:        "  config.secret_key = Rails.application.credentials.secret_key_base\n  config.x = 1\n",
			wantMatched: true,
		},
		{
			name:        "group expansion",
			content:     "port: 3000",
			pattern:     `port: (\d+)`,
			repl:        "port: ${1}0",
			want:        "port: 30000",
			wantMatched: true,
		},
		{
			name:    "no match is unchanged",
			content: "byte for byte\r\n\tunchanged",
			pattern: `does-not-occur`,
			repl:    "x",
			want:    "byte for byte\r\n\tunchanged",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, matched := ReplaceFirst(tt.content, regexp.MustCompile(tt.pattern), tt.repl)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestEnsureLine(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		want        string
		wantChanged bool
	}{
		{"empty", "", ".stencil/\n", true},
		{"append", "/tmp\n", "/tmp\n.stencil/\n", true},
		{"append adds newline", "/tmp", "/tmp\n.stencil/\n", true},
		{"present", "/tmp\n.stencil/\n", "/tmp\n.stencil/\n", false},
		{"present no newline", "/tmp\n.stencil/", "/tmp\n.stencil/\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := EnsureLine(tt.content, ".stencil/")
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}
