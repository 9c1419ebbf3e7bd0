package applier

import (
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/journal"
	"github.com/NielsdaWheelz/stencil/internal/step"
)

// RollbackResult lists what a rollback did.
type RollbackResult struct {
	RunID    string
	Restored []string
	Removed  []string

	// NotUndone names executed run_command steps; their side effects remain.
	NotUndone []string
}

// Rollback restores the files touched by the journaled run in reverse step order.
// Files the run created are removed. The journal is marked rolled_back.
func (a *Applier) Rollback() (*RollbackResult, error) {
	unlock, err := a.acquire("rollback")
	if err != nil {
		return nil, err
	}
	defer unlock()

	j, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if j.Status == journal.RunRolledBack {
		return nil, errors.NewWithDetails(errors.ENoJournal, "last run was already rolled back",
			map[string]string{"run_id": j.RunID})
	}

	res := &RollbackResult{RunID: j.RunID}
	for i := len(j.Steps) - 1; i >= 0; i-- {
		rec := j.Steps[i]
		if rec.Kind == string(step.KindRunCommand) && rec.Status == journal.StepApplied {
			res.NotUndone = append(res.NotUndone, rec.Name)
			continue
		}
		dir := a.store.StepBackupDir(j.RunID, rec.Index)
		for b := len(rec.Backups) - 1; b >= 0; b-- {
			if err := a.restore(dir, rec.Backups[b], res); err != nil {
				return res, errors.WithDetail(err, "step", rec.Name)
			}
		}
	}

	j.Status = journal.RunRolledBack
	j.FinishedAt = a.store.Timestamp()
	if err := a.store.Save(j); err != nil {
		return res, err
	}
	a.ws.logger().Info("rollback completed", "run_id", j.RunID,
		"restored", len(res.Restored), "removed", len(res.Removed))
	return res, nil
}

func (a *Applier) restore(backupDir string, b journal.Backup, res *RollbackResult) error {
	abs := a.ws.Path(b.Path)

	if !b.Existed {
		err := a.ws.FS.Remove(abs)
		if err != nil && !os.IsNotExist(err) {
			return errors.WrapWithDetails(errors.ERollbackFailed, "failed to remove created file", err,
				map[string]string{"file": b.Path})
		}
		a.pruneEmptyDirs(filepath.Dir(abs))
		a.ws.reporter().Status("remove", b.Path)
		res.Removed = append(res.Removed, b.Path)
		return nil
	}

	data, err := a.ws.FS.ReadFile(filepath.Join(backupDir, b.Path))
	if err != nil {
		return errors.WrapWithDetails(errors.ERollbackFailed, "backup is missing", err,
			map[string]string{"file": b.Path})
	}
	if err := a.ws.FS.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.WrapWithDetails(errors.ERollbackFailed, "failed to recreate directory", err,
			map[string]string{"file": b.Path})
	}
	mode := b.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := fs.WriteFileAtomic(a.ws.FS, abs, data, mode); err != nil {
		return errors.WrapWithDetails(errors.ERollbackFailed, "failed to restore file", err,
			map[string]string{"file": b.Path})
	}
	a.ws.reporter().Status("restore", b.Path)
	res.Restored = append(res.Restored, b.Path)
	return nil
}

// pruneEmptyDirs removes now-empty directories from dir up to the target.
func (a *Applier) pruneEmptyDirs(dir string) {
	target := filepath.Clean(a.ws.Target)
	for dir != target && len(dir) > len(target) {
		entries, err := a.ws.FS.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := a.ws.FS.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
