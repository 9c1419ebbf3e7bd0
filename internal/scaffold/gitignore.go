package scaffold

import (
	"os"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/journal"
	"github.com/NielsdaWheelz/stencil/internal/patch"
)

var ignoreEntry = journal.DirName + "/"

// GitignoreResult indicates what happened to .gitignore.
type GitignoreResult string

const (
	GitignoreUpdated   GitignoreResult = "updated"
	GitignoreUnchanged GitignoreResult = "unchanged"
	GitignoreSkipped   GitignoreResult = "skipped"
)

// EnsureGitignore ensures .stencil/ is ignored.
// Creates the file if missing, never duplicates the entry and leaves the
// file ending in a newline. ".stencil" without the slash counts as present.
func EnsureGitignore(fsys fs.FS, gitignorePath string) (GitignoreResult, error) {
	content, err := fsys.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	text := string(content)
	out, changed := text, false
	if hasEntry(text) {
		if text != "" && !strings.HasSuffix(text, "\n") {
			out, changed = text+"\n", true
		}
	} else {
		out, changed = patch.EnsureLine(text, ignoreEntry)
	}
	if !changed {
		return GitignoreUnchanged, nil
	}
	if err := fs.WriteFileAtomic(fsys, gitignorePath, []byte(out), 0o644); err != nil {
		return "", err
	}
	return GitignoreUpdated, nil
}

func hasEntry(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case journal.DirName, ignoreEntry, "/" + journal.DirName, "/" + ignoreEntry:
			return true
		}
	}
	return false
}
