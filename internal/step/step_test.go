package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{"copy directory ok", CopyDirectory("app", "app", true), ""},
		{"copy directory no src", Step{Kind: KindCopyDirectory}, "src is required"},
		{"insert ok", InsertText("Gemfile", "source", "gem 'x'\n", After), ""},
		{"insert bad position", InsertText("Gemfile", "source", "x", "around"), "position must be"},
		{"insert no anchor", InsertText("Gemfile", "", "x", After), "anchor is required"},
		{"insert no text", InsertText("Gemfile", "a", "", After), "text is required"},
		{"append ok", AppendText("Gemfile", "gem 'sidekiq', '~> 5.0'\n"), ""},
		{"append no text", Step{Kind: KindAppendText, File: "Gemfile"}, "text is required"},
		{"replace ok", RegexReplace("a.rb", `:admin`, ":admin, default: false"), ""},
		{"replace bad regex", RegexReplace("a.rb", `(`, "x"), "invalid pattern"},
		{"run argv ok", RunCommand("bin/rails", "db:create"), ""},
		{"run shell ok", RunShell("spring stop"), ""},
		{"run empty", Step{Kind: KindRunCommand}, "command or shell is required"},
		{"run both", Step{Kind: KindRunCommand, Command: "a", Shell: "b"}, "mutually exclusive"},
		{"remove ok", RemoveFile("app/assets/stylesheets/application.css"), ""},
		{"say empty", Step{Kind: KindSay}, "message is required"},
		{"missing kind", Step{}, "kind is required"},
		{"unknown kind", Step{Kind: "teleport"}, `unknown kind "teleport"`},
		{"unknown kind lists supported", Step{Kind: "teleport"}, "supported: copy_directory, copy_file, insert_text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{CopyDirectory("app", "app", true), "app -> app"},
		{InsertText("config/routes.rb", "a", "b", Before), "config/routes.rb"},
		{RunCommand("bin/rails", "generate", "devise:install"), "bin/rails generate devise:install"},
		{RunShell("spring stop"), "spring stop"},
		{RunShell("spring stop").Named("stop_spring"), "stop_spring"},
		{Say("hello"), "hello"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.Label())
	}
}

func TestBuilders_DoNotMutateReceiver(t *testing.T) {
	base := InsertText("a", "b", "c", After)
	guarded := base.OnlyOnce().If("true").Named("n")

	assert.False(t, base.Once)
	assert.Empty(t, base.When)
	assert.Empty(t, base.Name)
	assert.True(t, guarded.Once)
	assert.Equal(t, "true", guarded.When)
	assert.Equal(t, "n", guarded.Name)
}

func TestAppendLine(t *testing.T) {
	s := AppendLine("Gemfile", "gem 'devise'")
	assert.Equal(t, "gem 'devise'\n", s.Text)
	assert.True(t, s.Line)
	assert.Equal(t, "gem 'devise'\n", AppendLine("Gemfile", "gem 'devise'\n").Text)
	assert.NoError(t, s.Validate())
}

func TestMutates(t *testing.T) {
	assert.True(t, CopyDirectory("a", "a", false).Mutates())
	assert.True(t, RemoveFile("a").Mutates())
	assert.True(t, AppendText("a", "b").Mutates())
	assert.False(t, RunShell("ls").Mutates())
	assert.False(t, Say("x").Mutates())
}

func TestDigest(t *testing.T) {
	a := []Step{RunShell("a"), RunShell("b")}
	b := []Step{RunShell("a"), RunShell("b")}
	c := []Step{RunShell("b"), RunShell("a")}

	assert.Equal(t, Digest(a), Digest(b))
	assert.NotEqual(t, Digest(a), Digest(c), "order is part of the digest")
	assert.Len(t, Digest(nil), 64)
}
