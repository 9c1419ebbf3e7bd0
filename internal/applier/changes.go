package applier

import (
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/journal"
)

// changeSet funnels every file mutation of one step so the original content
// is backed up before the first write to each path.
type changeSet struct {
	ws      *Workspace
	dir     string // backup directory for this step
	seen    map[string]bool
	backups []journal.Backup
	changed []string
}

func newChangeSet(ws *Workspace, backupDir string) *changeSet {
	return &changeSet{ws: ws, dir: backupDir, seen: make(map[string]bool)}
}

// seed carries over backups recorded by an earlier attempt of the step.
// The earliest backup of a path wins, so it is never taken again.
func (c *changeSet) seed(prior []journal.Backup) {
	for _, b := range prior {
		if c.seen[b.Path] {
			continue
		}
		c.seen[b.Path] = true
		c.backups = append(c.backups, b)
	}
}

// touch records the pre-step state of abs once per step.
func (c *changeSet) touch(abs string) error {
	rel := c.ws.Rel(abs)
	if c.seen[rel] {
		return nil
	}
	c.seen[rel] = true

	info, err := c.ws.FS.Stat(abs)
	if os.IsNotExist(err) {
		c.backups = append(c.backups, journal.Backup{Path: rel, Existed: false})
		return nil
	}
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to stat file for backup", err,
			map[string]string{"file": rel})
	}

	data, err := c.ws.FS.ReadFile(abs)
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to read file for backup", err,
			map[string]string{"file": rel})
	}
	dst := filepath.Join(c.dir, rel)
	if err := c.ws.FS.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to create backup directory", err)
	}
	if err := c.ws.FS.WriteFile(dst, data, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write backup", err,
			map[string]string{"file": rel})
	}
	c.backups = append(c.backups, journal.Backup{Path: rel, Existed: true, Mode: info.Mode().Perm()})
	return nil
}

// write replaces abs with data atomically, creating parent directories.
func (c *changeSet) write(abs string, data []byte, perm os.FileMode) error {
	if err := c.touch(abs); err != nil {
		return err
	}
	if err := c.ws.FS.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.WrapWithDetails(errors.EWriteFailed, "failed to create directory", err,
			map[string]string{"file": c.ws.Rel(abs)})
	}
	if err := fs.WriteFileAtomic(c.ws.FS, abs, data, perm); err != nil {
		return errors.WrapWithDetails(errors.EWriteFailed, "failed to write file", err,
			map[string]string{"file": c.ws.Rel(abs)})
	}
	c.changed = append(c.changed, c.ws.Rel(abs))
	return nil
}

// remove deletes abs.
func (c *changeSet) remove(abs string) error {
	if err := c.touch(abs); err != nil {
		return err
	}
	if err := c.ws.FS.Remove(abs); err != nil {
		return errors.WrapWithDetails(errors.EWriteFailed, "failed to remove file", err,
			map[string]string{"file": c.ws.Rel(abs)})
	}
	c.changed = append(c.changed, c.ws.Rel(abs))
	return nil
}
