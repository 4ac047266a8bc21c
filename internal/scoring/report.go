package scoring

import "time"

type Outcome string

const (
	OutcomeScored  Outcome = "scored"
	OutcomeSkipped Outcome = "skipped"
	OutcomeNoTasks Outcome = "no_tasks"
	OutcomeClaimed Outcome = "claimed"
	OutcomeFailed  Outcome = "failed"
)

type CellResult struct {
	KRCode     string        `json:"kr_code"`
	Person     string        `json:"person"`
	Outcome    Outcome       `json:"outcome"`
	RunID      string        `json:"run_id,omitempty"`
	TaskCount  int           `json:"task_count"`
	Scored     int           `json:"scored"`
	Totals     map[int64]int `json:"totals,omitempty"`
	Error      string        `json:"error,omitempty"`
	DurationMS int64         `json:"duration_ms"`

	err error
}

// Err returns the underlying failure for OutcomeFailed cells.
func (r CellResult) Err() error {
	return r.err
}

type RunReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Cells      []CellResult    `json:"cells"`
	Counts     map[Outcome]int `json:"counts"`
}

func newReport(start time.Time) *RunReport {
	return &RunReport{StartedAt: start, Cells: []CellResult{}, Counts: map[Outcome]int{}}
}

func (r *RunReport) add(c CellResult) {
	r.Cells = append(r.Cells, c)
	r.Counts[c.Outcome]++
}

func (r *RunReport) Failed() []CellResult {
	var failed []CellResult
	for _, c := range r.Cells {
		if c.Outcome == OutcomeFailed {
			failed = append(failed, c)
		}
	}
	return failed
}
