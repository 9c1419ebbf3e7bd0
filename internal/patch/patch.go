// Package patch implements the pure text transforms behind insert_text and
// regex_replace. Nothing here touches the filesystem.
package patch

import (
	"errors"
	"regexp"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/step"
)

// ErrAnchorNotFound is returned when the anchor substring does not occur in the content.
var ErrAnchorNotFound = errors.New("anchor not found")

// Insert places text immediately before or after the first occurrence of anchor.
// The anchor must match exactly; no whitespace normalisation is applied.
// Insert is not idempotent: applying it to its own output inserts text again.
func Insert(content, anchor, text string, pos step.Position) (string, error) {
	idx := strings.Index(content, anchor)
	if idx < 0 {
		return content, ErrAnchorNotFound
	}
	at := idx
	if pos == step.After {
		at = idx + len(anchor)
	}
	return content[:at] + text + content[at:], nil
}

// Inserted reports whether text already sits on the requested side of the
// first occurrence of anchor. It backs the once guard.
func Inserted(content, anchor, text string, pos step.Position) bool {
	idx := strings.Index(content, anchor)
	if idx < 0 {
		return false
	}
	if pos == step.After {
		return strings.HasPrefix(content[idx+len(anchor):], text)
	}
	return strings.HasSuffix(content[:idx], text)
}

// ReplaceFirst replaces the first match of re in content with repl.
// repl may reference capture groups as $1 or ${name}.
// When re does not match, content is returned unchanged and matched is false.
func ReplaceFirst(content string, re *regexp.Regexp, repl string) (out string, matched bool) {
	loc := re.FindStringSubmatchIndex(content)
	if loc == nil {
		return content, false
	}
	var b strings.Builder
	b.Grow(len(content) + len(repl))
	b.WriteString(content[:loc[0]])
	b.Write(re.ExpandString(nil, repl, content, loc))
	b.WriteString(content[loc[1]:])
	return b.String(), true
}

// EnsureLine appends line to content unless an identical (trimmed) line exists.
// The result always ends with a newline. changed reports whether content differs.
func EnsureLine(content, line string) (out string, changed bool) {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == strings.TrimSpace(line) {
			if content != "" && !strings.HasSuffix(content, "\n") {
				return content + "\n", true
			}
			return content, false
		}
	}
	out = content
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + line + "\n", true
}
