package domain

import "strings"

// Mode selects whether the current submission is audio or text.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeText  Mode = "text"
)

// Variant selects the run-model flow bound to the trigger.
type Variant string

const (
	// VariantFull runs the model server and then the backend pipeline.
	VariantFull Variant = "full"
	// VariantSingle runs the model server only with richer result rendering.
	VariantSingle Variant = "single"
)

// ParseVariant maps free-form input to a known variant.
func ParseVariant(raw string) (Variant, bool) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case VariantFull:
		return VariantFull, true
	case VariantSingle:
		return VariantSingle, true
	default:
		return "", false
	}
}

// Submission is built per click from the most recently displayed document.
type Submission struct {
	Mode Mode   `json:"mode"`
	Text string `json:"text,omitempty"`
}

// RunStatus tracks the trigger's run through its stages.
type RunStatus string

const (
	RunStatusIdle            RunStatus = "idle"
	RunStatusDetecting       RunStatus = "detecting"
	RunStatusRunningModel    RunStatus = "running_model"
	RunStatusRunningPipeline RunStatus = "running_pipeline"
	RunStatusDone            RunStatus = "done"
	RunStatusFailed          RunStatus = "failed"
	RunStatusCancelled       RunStatus = "cancelled"
)

// Run stores the current run identity and lifecycle status.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelServerURL string  `json:"modelServerUrl"`
	PipelineURL    string  `json:"pipelineUrl"`
	Variant        Variant `json:"variant"`
	// RequestTimeoutSeconds bounds each remote call; zero waits forever.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
}
