package commands

import (
	"context"
	"fmt"

	"github.com/NielsdaWheelz/stencil/internal/applier"
	"github.com/NielsdaWheelz/stencil/internal/journal"
	"github.com/NielsdaWheelz/stencil/internal/lock"
	"github.com/NielsdaWheelz/stencil/internal/render"
	"github.com/NielsdaWheelz/stencil/internal/status"
)

// StatusOpts holds options for the status command.
type StatusOpts struct {
	Target string
	JSON   bool
}

// Status implements `stencil status`: prints the target's apply journal.
// Returns E_NO_JOURNAL if nothing was applied there yet.
func Status(_ context.Context, env *Env, opts StatusOpts) error {
	target, err := env.resolveDir(opts.Target)
	if err != nil {
		return err
	}
	store := journal.NewStore(env.FS, target, nil)
	j, err := store.Load()
	if err != nil {
		return err
	}
	derived := status.Derive(j, status.Snapshot{LockHeld: lock.NewTargetLock(store.Dir()).Held()})
	if opts.JSON {
		return render.WriteJSON(env.Stdout, statusJSON{Target: target, State: derived.State, Journal: j})
	}
	fmt.Fprintf(env.Stdout, "target:   %s\n", target)
	fmt.Fprintf(env.Stdout, "state:    %s\n", derived.State)
	if err := render.WriteJournal(env.Stdout, j); err != nil {
		return err
	}
	if derived.Next != "" {
		fmt.Fprintf(env.Stdout, "\nnext: %s\n", derived.Next)
	}
	return nil
}

type statusJSON struct {
	Target  string           `json:"target"`
	State   string           `json:"state"`
	Journal *journal.Journal `json:"journal"`
}

// RollbackOpts holds options for the rollback command.
type RollbackOpts struct {
	Target string
}

// Rollback implements `stencil rollback`: restores files changed by the last
// run. Commands that ran are listed as not undone.
func Rollback(_ context.Context, env *Env, opts RollbackOpts) error {
	target, err := env.resolveDir(opts.Target)
	if err != nil {
		return err
	}
	a := applier.New(&applier.Workspace{
		Target:   target,
		Runner:   env.Runner,
		FS:       env.FS,
		Logger:   env.logger(),
		Reporter: env.printer(),
	})
	res, err := a.Rollback()
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "\nrolled back run %s: %d restored, %d removed\n", res.RunID, len(res.Restored), len(res.Removed))
	if len(res.NotUndone) > 0 {
		fmt.Fprintln(env.Stderr, "warning: commands cannot be undone; their effects remain:")
		for _, c := range res.NotUndone {
			fmt.Fprintf(env.Stderr, "  %s\n", c)
		}
	}
	return nil
}
