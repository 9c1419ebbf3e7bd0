package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/journal"
)

// NameMaxLen caps step names in human tables.
const NameMaxLen = 60

// JSONEnvelope is the stable shape of --json output.
type JSONEnvelope struct {
	SchemaVersion string `json:"schema_version"`
	Data          any    `json:"data"`
}

// WriteJSON writes data wrapped in a versioned envelope, indented.
func WriteJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(JSONEnvelope{SchemaVersion: "1.0", Data: data})
}

// WriteJournal writes a run header followed by one row per recorded step.
func WriteJournal(w io.Writer, j *journal.Journal) error {
	fmt.Fprintf(w, "run:      %s\n", j.RunID)
	fmt.Fprintf(w, "recipe:   %s\n", j.Recipe)
	fmt.Fprintf(w, "status:   %s\n", j.Status)
	fmt.Fprintf(w, "started:  %s\n", j.StartedAt)
	if j.FinishedAt != "" {
		fmt.Fprintf(w, "finished: %s\n", j.FinishedAt)
	}
	fmt.Fprintf(w, "progress: %d/%d steps done\n", j.Completed(), j.StepCount)
	if len(j.Steps) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(j.Steps)+1)
	rows = append(rows, []string{"#", "STATUS", "STEP", "CHANGED"})
	for _, r := range j.Steps {
		rows = append(rows, []string{
			strconv.Itoa(r.Index),
			r.Status,
			truncate(r.Name, NameMaxLen),
			strings.Join(r.Changed, ", "),
		})
	}
	if err := writeTable(w, rows); err != nil {
		return err
	}

	for _, r := range j.Steps {
		if r.Status == journal.StepFailed {
			fmt.Fprintf(w, "\nstep %d failed: %s %s\n", r.Index, r.ErrorCode, r.Error)
		}
	}
	return nil
}

// writeTable left-aligns columns; the last column is not padded.
func writeTable(w io.Writer, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)+2))
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

// truncate shortens s to max bytes, marking the cut with "...".
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
