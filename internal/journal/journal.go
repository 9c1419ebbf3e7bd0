// Package journal persists apply progress under <target>/.stencil/ so a run
// can be inspected, resumed after a failure, or rolled back.
// Files are written atomically via temp file + rename.
package journal

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/fs"
)

// SchemaVersion is the journal.json schema version.
const SchemaVersion = "1.0"

// DirName is the per-target state directory.
const DirName = ".stencil"

// Run statuses.
const (
	RunRunning    = "running"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunRolledBack = "rolled_back"
)

// Step statuses.
const (
	StepApplied   = "applied"
	StepUnchanged = "unchanged"
	StepSkipped   = "skipped"
	StepFailed    = "failed"
)

// Journal is the persisted record of one apply run.
type Journal struct {
	SchemaVersion string       `json:"schema_version"`
	RunID         string       `json:"run_id"`
	Recipe        string       `json:"recipe"`
	Digest        string       `json:"digest"`
	StepCount     int          `json:"step_count"`
	Status        string       `json:"status"`
	StartedAt     string       `json:"started_at"`
	FinishedAt    string       `json:"finished_at,omitempty"`
	Steps         []StepRecord `json:"steps"`
}

// StepRecord is the outcome of one executed (or skipped) step.
type StepRecord struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Status     string   `json:"status"`
	ErrorCode  string   `json:"error_code,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at"`
	DurationMs int64    `json:"duration_ms"`
	Changed    []string `json:"changed,omitempty"`
	Backups    []Backup `json:"backups,omitempty"`
}

// Backup records the pre-step state of one file touched by a step.
// When Existed is false the file was created by the step and rollback removes it.
type Backup struct {
	Path    string      `json:"path"` // relative to target
	Existed bool        `json:"existed"`
	Mode    os.FileMode `json:"mode,omitempty"`
}

// Done reports whether the step finished and need not run again on resume.
func (r StepRecord) Done() bool {
	return r.Status == StepApplied || r.Status == StepUnchanged || r.Status == StepSkipped
}

// Record returns the record for step index, if any.
func (j *Journal) Record(index int) (StepRecord, bool) {
	for _, r := range j.Steps {
		if r.Index == index {
			return r, true
		}
	}
	return StepRecord{}, false
}

// Put inserts or replaces the record for rec.Index, keeping records ordered by index.
func (j *Journal) Put(rec StepRecord) {
	for i, r := range j.Steps {
		if r.Index == rec.Index {
			j.Steps[i] = rec
			return
		}
		if r.Index > rec.Index {
			j.Steps = append(j.Steps[:i], append([]StepRecord{rec}, j.Steps[i:]...)...)
			return
		}
	}
	j.Steps = append(j.Steps, rec)
}

// Completed returns how many records are done.
func (j *Journal) Completed() int {
	n := 0
	for _, r := range j.Steps {
		if r.Done() {
			n++
		}
	}
	return n
}

// NewRunID returns "<yyyymmddhhmmss>-<rand4>" in UTC time.
// Example: "20260109013207-a3f2"
// Error only if crypto/rand read fails.
func NewRunID(now time.Time) (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return now.UTC().Format("20060102150405") + "-" + hex.EncodeToString(b), nil
}

// Store handles persistence of the journal and step backups for one target.
type Store struct {
	FS     fs.FS            // filesystem interface for stubbing
	Target string           // absolute target directory
	Now    func() time.Time // injectable clock for deterministic tests
}

// NewStore creates a new Store for target.
func NewStore(filesystem fs.FS, target string, now func() time.Time) *Store {
	return &Store{FS: filesystem, Target: target, Now: now}
}

// Dir returns <target>/.stencil.
func (s *Store) Dir() string {
	return filepath.Join(s.Target, DirName)
}

// JournalPath returns <target>/.stencil/journal.json.
func (s *Store) JournalPath() string {
	return filepath.Join(s.Dir(), "journal.json")
}

// BackupsDir returns <target>/.stencil/backups.
func (s *Store) BackupsDir() string {
	return filepath.Join(s.Dir(), "backups")
}

// StepBackupDir returns the backup directory for one step of a run.
// Format: <target>/.stencil/backups/<run_id>/<index>/
func (s *Store) StepBackupDir(runID string, index int) string {
	return filepath.Join(s.BackupsDir(), runID, strconv.Itoa(index))
}

// Timestamp formats the store clock as RFC3339 UTC.
func (s *Store) Timestamp() string {
	return s.Now().UTC().Format(time.RFC3339)
}

// Load reads the journal.
// Returns E_NO_JOURNAL if it does not exist and E_JOURNAL_CORRUPT if it cannot be parsed.
func (s *Store) Load() (*Journal, error) {
	data, err := s.FS.ReadFile(s.JournalPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(errors.ENoJournal, "no apply journal found; run 'stencil apply' first",
				map[string]string{"path": s.JournalPath()})
		}
		return nil, errors.Wrap(errors.EJournalCorrupt, "failed to read journal", err)
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, errors.WrapWithDetails(errors.EJournalCorrupt, "journal is not valid JSON", err,
			map[string]string{"path": s.JournalPath()})
	}
	if j.SchemaVersion != SchemaVersion {
		return nil, errors.NewWithDetails(errors.EJournalCorrupt, "unsupported journal schema version",
			map[string]string{"schema_version": j.SchemaVersion})
	}
	return &j, nil
}

// Save writes the journal atomically, creating the state directory if needed.
func (s *Store) Save(j *Journal) error {
	if err := s.FS.MkdirAll(s.Dir(), 0o755); err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to create state directory", err)
	}
	if err := fs.WriteJSONAtomic(s.FS, s.JournalPath(), j, 0o644); err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to write journal", err)
	}
	return nil
}

// ClearBackups removes backups of previous runs.
func (s *Store) ClearBackups() error {
	if err := s.FS.RemoveAll(s.BackupsDir()); err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to clear old backups", err)
	}
	return nil
}
