package models

// Step names the orchestrator phase a progress event belongs to.
type Step string

const (
	StepFetchHome     Step = "FETCH_HOME"
	StepDiscoverPages Step = "DISCOVER_PAGES"
	StepExtract       Step = "EXTRACT"
	StepScore         Step = "SCORE"
	StepAISummary     Step = "AI_SUMMARY"
	StepDone          Step = "DONE"
	StepFailed        Step = "FAILED"
)

// Progress is one event emitted to the caller-supplied progress sink.
type Progress struct {
	Percent int    `json:"percent"`
	Step    Step   `json:"step"`
	Message string `json:"message"`
}

// ProgressSink receives progress events. Implementations must not block
// for long; they run on the scan goroutine.
type ProgressSink func(Progress)
