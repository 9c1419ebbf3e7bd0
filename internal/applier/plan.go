package applier

import (
	"github.com/NielsdaWheelz/stencil/internal/condition"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/step"
)

// PlannedStep is one step as apply would see it.
type PlannedStep struct {
	Index int
	Step  step.Step // rendered with recipe variables
	Skip  bool      // when evaluated false
	Done  bool      // recorded done in the journal (resume only)
}

// Plan resolves conditions and variables without touching the target.
// With resume, steps the journal records as done are flagged.
func (a *Applier) Plan(steps []step.Step, resume bool) ([]PlannedStep, error) {
	var done map[int]bool
	if resume {
		j, err := a.store.Load()
		if err != nil {
			return nil, err
		}
		if j.Digest != step.Digest(steps) {
			return nil, errors.New(errors.EJournalMismatch, "journal was written for a different recipe")
		}
		done = make(map[int]bool, len(j.Steps))
		for _, r := range j.Steps {
			done[r.Index] = r.Done()
		}
	}

	out := make([]PlannedStep, 0, len(steps))
	for i, s := range steps {
		run, err := condition.Evaluate(s.When, a.ws.Vars)
		if err != nil {
			return nil, wrapStepError(errors.WrapWithDetails(errors.EInvalidRecipe, "invalid when expression", err,
				map[string]string{"when": s.When}), i, s)
		}
		rendered, err := renderStep(s, a.ws.Vars)
		if err != nil {
			return nil, wrapStepError(err, i, s)
		}
		out = append(out, PlannedStep{Index: i, Step: rendered, Skip: !run, Done: done[i]})
	}
	return out, nil
}
