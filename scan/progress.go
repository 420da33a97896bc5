package scan

import (
	"sync"

	"github.com/fyxxlabs/sitescan/models"
)

// Progress percentages at the start of each phase.
const (
	pctFetchHome = 5
	pctDiscover  = 15
	pctExtract   = 25
	pctExtracted = 70
	pctScore     = 75
	pctAI        = 80
)

// reporter serialises progress events and keeps the percentage monotonic.
// Only a terminal step may report 100, and nothing is reported after it.
type reporter struct {
	mu   sync.Mutex
	sink models.ProgressSink
	last int
	done bool
}

func newReporter(sink models.ProgressSink) *reporter {
	return &reporter{sink: sink}
}

func (r *reporter) report(percent int, step models.Step, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}

	terminal := step == models.StepDone || step == models.StepFailed
	switch {
	case terminal:
		percent = 100
		r.done = true
	case percent > 99:
		percent = 99
	}
	percent = max(percent, r.last)
	r.last = percent

	if r.sink != nil {
		r.sink(models.Progress{Percent: percent, Step: step, Message: message})
	}
}
