package render

import (
	"fmt"
	"io"

	"github.com/NielsdaWheelz/stencil/internal/applier"
)

// PlanStep is the --json shape of one planned step.
type PlanStep struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Skip  bool   `json:"skip"`
	Done  bool   `json:"done"`
}

// PlanSteps converts planned steps to their JSON shape.
func PlanSteps(planned []applier.PlannedStep) []PlanStep {
	out := make([]PlanStep, len(planned))
	for i, p := range planned {
		out[i] = PlanStep{Index: p.Index, Kind: string(p.Step.Kind), Label: p.Step.Label(), Skip: p.Skip, Done: p.Done}
	}
	return out
}

// WritePlan lists steps in order, marking ones that would not run.
func (p *Printer) WritePlan(recipe string, planned []applier.PlannedStep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "recipe %s: %d steps\n", recipe, len(planned))
	width := len(fmt.Sprint(len(planned)))
	for _, s := range planned {
		note := ""
		switch {
		case s.Done:
			note = " " + p.Muted("(done)")
		case s.Skip:
			note = " " + p.Muted("(skipped: "+s.Step.When+")")
		}
		fmt.Fprintf(p.w, "%*d. %-15s %s%s\n", width, s.Index+1, s.Step.Kind, s.Step.Label(), note)
	}
}

// WritePlan writes a plan without colour.
func WritePlan(w io.Writer, recipe string, planned []applier.PlannedStep) {
	NewPrinter(w, false).WritePlan(recipe, planned)
}
