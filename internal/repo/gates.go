// Package repo inspects the version-control state of a target directory
// before stencil changes it.
package repo

import (
	"context"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/git"
)

// WarnDirtyTarget is the warning code for a target with uncommitted changes.
const WarnDirtyTarget = "W_DIRTY_TARGET"

// TargetState describes the git state of a target directory.
type TargetState struct {
	// InRepo is false when the target is not inside a git work tree.
	InRepo bool

	// RepoRoot is the work tree root; empty when InRepo is false.
	RepoRoot string

	// Clean reports no uncommitted changes. Always false outside a repo.
	Clean bool
}

// Inspect resolves the repository enclosing target and whether its working
// tree is clean. A target outside any repository is not an error.
//
// Error codes:
//   - E_INTERNAL: git could not be run to check the working tree
func Inspect(ctx context.Context, cr exec.CommandRunner, target string) (TargetState, error) {
	root, err := git.GetRepoRoot(ctx, cr, target)
	if err != nil {
		if errors.GetCode(err) == errors.ENoRepo {
			return TargetState{}, nil
		}
		return TargetState{}, err
	}

	clean, err := git.IsClean(ctx, cr, root.Path)
	if err != nil {
		return TargetState{}, err
	}
	return TargetState{InRepo: true, RepoRoot: root.Path, Clean: clean}, nil
}

// DirtyWarning returns the message printed before applying to a target
// whose working tree has uncommitted changes, or "" when none is due.
func (s TargetState) DirtyWarning() string {
	if !s.InRepo || s.Clean {
		return ""
	}
	return "target has uncommitted changes; commit them first so the recipe's result can be reviewed with git diff"
}
