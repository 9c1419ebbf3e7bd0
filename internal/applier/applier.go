// Package applier executes an ordered list of steps against a target
// directory. Steps run in order and the first failure stops the run.
// Progress is journaled after every step so a run can be resumed or rolled back.
package applier

import (
	"context"
	"strconv"
	"time"

	"github.com/NielsdaWheelz/stencil/internal/condition"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/journal"
	"github.com/NielsdaWheelz/stencil/internal/lock"
	"github.com/NielsdaWheelz/stencil/internal/step"
	"github.com/NielsdaWheelz/stencil/internal/tmpl"
)

// Options controls one apply run.
type Options struct {
	// Recipe is the recipe name stored in the journal.
	Recipe string

	// Force overwrites existing files in every copy step.
	Force bool

	// Resume continues the journaled run, skipping completed steps.
	Resume bool
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Step     step.Step
	Status   string // journal.Step* constant
	Resumed  bool   // completed by an earlier run
	Changed  []string
	Duration time.Duration
	Err      error
}

// Result is the outcome of an apply run.
type Result struct {
	RunID string
	Steps []StepResult
}

// Applied returns the number of steps that changed something in this run.
func (r *Result) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == journal.StepApplied && !s.Resumed {
			n++
		}
	}
	return n
}

// Applier runs steps inside one workspace.
type Applier struct {
	ws    *Workspace
	store *journal.Store
	lock  lock.TargetLock
	now   func() time.Time
}

// New returns an Applier for ws with the journal under the target's state directory.
func New(ws *Workspace) *Applier {
	store := journal.NewStore(ws.FS, ws.Target, time.Now)
	return &Applier{
		ws:    ws,
		store: store,
		lock:  lock.NewTargetLock(store.Dir()),
		now:   time.Now,
	}
}

// SetNowFunc overrides the time source for testing.
func (a *Applier) SetNowFunc(fn func() time.Time) {
	a.now = fn
	a.store.Now = fn
}

// Store exposes the journal store.
func (a *Applier) Store() *journal.Store {
	return a.store
}

// Apply executes steps in order.
//
// Behavior:
//   - holds the target lock for the whole run (E_LOCKED if held elsewhere)
//   - saves the journal after every step
//   - short-circuits on the first failing step; later steps never execute
//   - errors carry "step" and "step_index" details; non-coded errors become E_INTERNAL
//   - with Resume, steps recorded as done are not executed again
//
// The returned Result is non-nil whenever a run was started, even on error.
func (a *Applier) Apply(ctx context.Context, steps []step.Step, opts Options) (*Result, error) {
	if err := a.checkTarget(); err != nil {
		return nil, err
	}

	unlock, err := a.acquire("apply")
	if err != nil {
		return nil, err
	}
	defer unlock()

	j, err := a.begin(steps, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: j.RunID}
	log := a.ws.logger().With("run_id", j.RunID)
	log.Info("apply started", "recipe", opts.Recipe, "steps", len(steps), "resume", opts.Resume)

	for i, s := range steps {
		prev, hasPrev := j.Record(i)
		if hasPrev && prev.Done() {
			a.ws.reporter().Status("skip", s.Label()+" (done)")
			res.Steps = append(res.Steps, StepResult{Index: i, Step: s, Status: prev.Status, Resumed: true, Changed: prev.Changed})
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, a.fail(j, wrapStepError(errors.Wrap(errors.EInternal, "apply canceled", err), i, s))
		}

		sr, rec := a.runStep(ctx, i, s, j.RunID, prev.Backups, opts)
		res.Steps = append(res.Steps, sr)
		j.Put(rec)

		if sr.Err != nil {
			log.Error("step failed", "index", i, "step", s.Label(), "error", sr.Err)
			return res, a.fail(j, sr.Err)
		}
		if err := a.store.Save(j); err != nil {
			return res, err
		}
	}

	j.Status = journal.RunCompleted
	j.FinishedAt = a.store.Timestamp()
	if err := a.store.Save(j); err != nil {
		return res, err
	}
	log.Info("apply completed", "applied", res.Applied())
	return res, nil
}

func (a *Applier) checkTarget() error {
	info, err := a.ws.FS.Stat(a.ws.Target)
	if err != nil || !info.IsDir() {
		return errors.NewWithDetails(errors.ETargetNotFound, "target directory does not exist",
			map[string]string{"target": a.ws.Target})
	}
	return nil
}

func (a *Applier) acquire(cmd string) (func() error, error) {
	unlock, err := a.lock.Lock(cmd)
	if err != nil {
		if locked, ok := err.(*lock.ErrLocked); ok {
			return nil, errors.WrapWithDetails(errors.ELocked, locked.Error(), err,
				map[string]string{"lock": locked.Path})
		}
		return nil, errors.Wrap(errors.EPersistFailed, "failed to acquire target lock", err)
	}
	return unlock, nil
}

// begin loads the journal to resume or starts a fresh one.
func (a *Applier) begin(steps []step.Step, opts Options) (*journal.Journal, error) {
	digest := step.Digest(steps)

	if opts.Resume {
		j, err := a.store.Load()
		if err != nil {
			return nil, err
		}
		if j.Digest != digest || j.StepCount != len(steps) {
			return nil, errors.NewWithDetails(errors.EJournalMismatch,
				"journal was written for a different recipe; rerun without --resume",
				map[string]string{"journal_recipe": j.Recipe, "recipe": opts.Recipe})
		}
		j.Status = journal.RunRunning
		j.FinishedAt = ""
		return j, a.store.Save(j)
	}

	runID, err := journal.NewRunID(a.now())
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to generate run_id", err)
	}
	if err := a.store.ClearBackups(); err != nil {
		return nil, err
	}
	j := &journal.Journal{
		SchemaVersion: journal.SchemaVersion,
		RunID:         runID,
		Recipe:        opts.Recipe,
		Digest:        digest,
		StepCount:     len(steps),
		Status:        journal.RunRunning,
		StartedAt:     a.store.Timestamp(),
		Steps:         []journal.StepRecord{},
	}
	return j, a.store.Save(j)
}

// fail marks the run failed and returns cause. A journal write error is
// logged rather than replacing the step error.
func (a *Applier) fail(j *journal.Journal, cause error) error {
	j.Status = journal.RunFailed
	j.FinishedAt = a.store.Timestamp()
	if err := a.store.Save(j); err != nil {
		a.ws.logger().Warn("failed to save journal", "error", err)
	}
	return cause
}

// runStep executes step i. prior holds backups from an earlier failed attempt
// of the same step in this run; they are kept so rollback still sees the
// pre-run state of files that attempt touched.
func (a *Applier) runStep(ctx context.Context, i int, s step.Step, runID string, prior []journal.Backup, opts Options) (StepResult, journal.StepRecord) {
	start := a.now()
	sr := StepResult{Index: i, Step: s}
	rec := journal.StepRecord{
		Index:     i,
		Name:      s.Label(),
		Kind:      string(s.Kind),
		StartedAt: a.store.Timestamp(),
	}
	finish := func(status string, err error) (StepResult, journal.StepRecord) {
		sr.Status, rec.Status = status, status
		sr.Duration = a.now().Sub(start)
		rec.DurationMs = sr.Duration.Milliseconds()
		if err != nil {
			err = wrapStepError(err, i, s)
			sr.Err = err
			rec.ErrorCode = string(errors.GetCode(err))
			rec.Error = err.Error()
		}
		return sr, rec
	}

	run, err := condition.Evaluate(s.When, a.ws.Vars)
	if err != nil {
		return finish(journal.StepFailed, errors.WrapWithDetails(errors.EInvalidRecipe, "invalid when expression", err,
			map[string]string{"when": s.When}))
	}
	if !run {
		a.ws.reporter().Status("skip", s.Label())
		return finish(journal.StepSkipped, nil)
	}

	rendered, err := renderStep(s, a.ws.Vars)
	if err != nil {
		return finish(journal.StepFailed, err)
	}

	a.ws.logger().Debug("step", "index", i, "kind", s.Kind, "label", s.Label())
	cs := newChangeSet(a.ws, a.store.StepBackupDir(runID, i))
	cs.seed(prior)
	err = a.execute(ctx, rendered, cs, opts.Force || rendered.Force)
	sr.Changed, rec.Changed = cs.changed, cs.changed
	rec.Backups = cs.backups
	if err != nil {
		return finish(journal.StepFailed, err)
	}

	status := journal.StepUnchanged
	if len(cs.changed) > 0 || !s.Mutates() {
		status = journal.StepApplied
	}
	return finish(status, nil)
}

// renderStep interpolates recipe variables into the step's text fields.
// Regex patterns are left alone since brace quantifiers clash with template syntax.
func renderStep(s step.Step, vars map[string]string) (step.Step, error) {
	var err error
	fields := []*string{&s.Src, &s.Dst, &s.File, &s.Anchor, &s.Text, &s.Replacement,
		&s.Command, &s.Shell, &s.Dir, &s.Message}
	for _, f := range fields {
		if *f, err = tmpl.Render(*f, vars); err != nil {
			return s, errors.Wrap(errors.ERenderFailed, "failed to render step", err)
		}
	}
	if s.Args, err = tmpl.RenderAll(s.Args, vars); err != nil {
		return s, errors.Wrap(errors.ERenderFailed, "failed to render step arguments", err)
	}
	return s, nil
}

// wrapStepError ensures the error is a *StencilError that names the step.
// Non-stencil errors are wrapped as E_INTERNAL.
func wrapStepError(err error, index int, s step.Step) error {
	if err == nil {
		return nil
	}
	err = errors.WithDetail(err, "step", s.Label())
	return errors.WithDetail(err, "step_index", strconv.Itoa(index))
}
