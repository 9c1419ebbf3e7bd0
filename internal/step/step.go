// Package step defines the declarative instructions a recipe is made of.
// Steps are plain values; executing them is the applier's job.
package step

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies what a step does.
type Kind string

const (
	KindCopyDirectory Kind = "copy_directory"
	KindCopyFile      Kind = "copy_file"
	KindInsertText    Kind = "insert_text"
	KindAppendText    Kind = "append_text"
	KindRegexReplace  Kind = "regex_replace"
	KindRunCommand    Kind = "run_command"
	KindRemoveFile    Kind = "remove_file"
	KindSay           Kind = "say"
)

// Kinds lists every supported kind in documentation order.
var Kinds = []Kind{
	KindCopyDirectory,
	KindCopyFile,
	KindInsertText,
	KindAppendText,
	KindRegexReplace,
	KindRunCommand,
	KindRemoveFile,
	KindSay,
}

// Position says on which side of the anchor InsertText places its text.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

// LatestPrefix marks a file field as a glob resolved to the most recently
// modified match, e.g. "latest:db/migrate/*".
const LatestPrefix = "latest:"

// Step is one ordered, file- or process-mutating instruction.
// Only the fields relevant to Kind are set.
type Step struct {
	Kind Kind   `yaml:"kind" toml:"kind" json:"kind"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	When string `yaml:"when,omitempty" toml:"when,omitempty" json:"when,omitempty"`

	// copy_directory, copy_file
	Src   string `yaml:"src,omitempty" toml:"src,omitempty" json:"src,omitempty"`
	Dst   string `yaml:"dst,omitempty" toml:"dst,omitempty" json:"dst,omitempty"`
	Force bool   `yaml:"force,omitempty" toml:"force,omitempty" json:"force,omitempty"`

	// insert_text, append_text, regex_replace, remove_file
	File string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"`

	// insert_text, append_text
	Anchor   string   `yaml:"anchor,omitempty" toml:"anchor,omitempty" json:"anchor,omitempty"`
	Text     string   `yaml:"text,omitempty" toml:"text,omitempty" json:"text,omitempty"`
	Position Position `yaml:"position,omitempty" toml:"position,omitempty" json:"position,omitempty"`
	Once     bool     `yaml:"once,omitempty" toml:"once,omitempty" json:"once,omitempty"`

	// append_text: Text starts on a line of its own even when file lacks a
	// trailing newline.
	Line bool `yaml:"line,omitempty" toml:"line,omitempty" json:"line,omitempty"`

	// regex_replace
	Pattern     string `yaml:"pattern,omitempty" toml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty" toml:"replacement,omitempty" json:"replacement,omitempty"`

	// run_command: either Command+Args (argv) or Shell (a shell line)
	Command string   `yaml:"command,omitempty" toml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" toml:"args,omitempty" json:"args,omitempty"`
	Shell   string   `yaml:"shell,omitempty" toml:"shell,omitempty" json:"shell,omitempty"`
	Dir     string   `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"`

	// say
	Message string `yaml:"message,omitempty" toml:"message,omitempty" json:"message,omitempty"`
}

// CopyDirectory copies src (relative to the template sources) to dst (relative to the target).
func CopyDirectory(src, dst string, force bool) Step {
	return Step{Kind: KindCopyDirectory, Src: src, Dst: dst, Force: force}
}

// CopyFile copies a single template file.
func CopyFile(src, dst string, force bool) Step {
	return Step{Kind: KindCopyFile, Src: src, Dst: dst, Force: force}
}

// InsertText inserts text next to the first occurrence of anchor in file.
func InsertText(file, anchor, text string, pos Position) Step {
	return Step{Kind: KindInsertText, File: file, Anchor: anchor, Text: text, Position: pos}
}

// AppendText appends text to the end of file.
func AppendText(file, text string) Step {
	return Step{Kind: KindAppendText, File: file, Text: text}
}

// AppendLine appends line to file as a line of its own.
func AppendLine(file, line string) Step {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	return Step{Kind: KindAppendText, File: file, Text: line, Line: true}
}

// RegexReplace replaces the first match of pattern in file.
func RegexReplace(file, pattern, replacement string) Step {
	return Step{Kind: KindRegexReplace, File: file, Pattern: pattern, Replacement: replacement}
}

// RunCommand executes command with args in the target directory.
func RunCommand(command string, args ...string) Step {
	return Step{Kind: KindRunCommand, Command: command, Args: args}
}

// RunShell executes line through the shell in the target directory.
func RunShell(line string) Step {
	return Step{Kind: KindRunCommand, Shell: line}
}

// RemoveFile deletes file from the target.
func RemoveFile(file string) Step {
	return Step{Kind: KindRemoveFile, File: file}
}

// Say prints a notice to the user.
func Say(message string) Step {
	return Step{Kind: KindSay, Message: message}
}

// Named returns a copy of s labelled name.
func (s Step) Named(name string) Step {
	s.Name = name
	return s
}

// If returns a copy of s guarded by the condition expression.
func (s Step) If(expr string) Step {
	s.When = expr
	return s
}

// OnlyOnce returns a copy of s with the check-before-insert guard enabled.
func (s Step) OnlyOnce() Step {
	s.Once = true
	return s
}

// Label is a short human description used in progress output and the journal.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case KindCopyDirectory, KindCopyFile:
		return s.Src + " -> " + s.Dst
	case KindInsertText, KindAppendText, KindRegexReplace, KindRemoveFile:
		return s.File
	case KindRunCommand:
		if s.Shell != "" {
			return s.Shell
		}
		return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
	case KindSay:
		return s.Message
	}
	return string(s.Kind)
}

// Validate checks that the fields required by the step's kind are present.
func (s Step) Validate() error {
	switch s.Kind {
	case KindCopyDirectory, KindCopyFile:
		if s.Src == "" {
			return fmt.Errorf("%s: src is required", s.Kind)
		}
	case KindInsertText:
		if s.File == "" {
			return fmt.Errorf("%s: file is required", s.Kind)
		}
		if s.Anchor == "" {
			return fmt.Errorf("%s: anchor is required", s.Kind)
		}
		if s.Text == "" {
			return fmt.Errorf("%s: text is required", s.Kind)
		}
		if s.Position != Before && s.Position != After {
			return fmt.Errorf("%s: position must be %q or %q, got %q", s.Kind, Before, After, s.Position)
		}
	case KindAppendText:
		if s.File == "" {
			return fmt.Errorf("%s: file is required", s.Kind)
		}
		if s.Text == "" {
			return fmt.Errorf("%s: text is required", s.Kind)
		}
	case KindRegexReplace:
		if s.File == "" {
			return fmt.Errorf("%s: file is required", s.Kind)
		}
		if s.Pattern == "" {
			return fmt.Errorf("%s: pattern is required", s.Kind)
		}
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("%s: invalid pattern: %w", s.Kind, err)
		}
	case KindRunCommand:
		if s.Command == "" && s.Shell == "" {
			return fmt.Errorf("%s: command or shell is required", s.Kind)
		}
		if s.Command != "" && s.Shell != "" {
			return fmt.Errorf("%s: command and shell are mutually exclusive", s.Kind)
		}
	case KindRemoveFile:
		if s.File == "" {
			return fmt.Errorf("%s: file is required", s.Kind)
		}
	case KindSay:
		if s.Message == "" {
			return fmt.Errorf("%s: message is required", s.Kind)
		}
	case "":
		return fmt.Errorf("kind is required")
	default:
		names := make([]string, len(Kinds))
		for i, k := range Kinds {
			names[i] = string(k)
		}
		return fmt.Errorf("unknown kind %q (supported: %s)", s.Kind, strings.Join(names, ", "))
	}
	return nil
}

// Mutates reports whether the step writes to the working tree through the applier
// (and therefore has file backups). Commands mutate the tree out of band.
func (s Step) Mutates() bool {
	switch s.Kind {
	case KindCopyDirectory, KindCopyFile, KindInsertText, KindAppendText, KindRegexReplace, KindRemoveFile:
		return true
	}
	return false
}

// Digest returns a stable hex digest of an ordered step list.
// Resume uses it to refuse continuing a journal written for a different recipe.
func Digest(steps []Step) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, s := range steps {
		// Step contains only strings, bools and string slices; Encode cannot fail.
		_ = enc.Encode(s)
	}
	return hex.EncodeToString(h.Sum(nil))
}
