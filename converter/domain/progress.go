package domain

// Stage is one state of the conversion state machine
type Stage string

const (
	StageIdle           Stage = "idle"
	StageParsing        Stage = "parsing"
	StageGenerating     Stage = "generating"
	StageAwaitingReview Stage = "awaiting-preview"
	StageCreatingOutput Stage = "creating-output"
	StageDone           Stage = "done"
	StageError          Stage = "error"
)

// HelpText returns the default progress message for a stage
func (s Stage) HelpText() string {
	switch s {
	case StageIdle:
		return "Upload a PDF to begin."
	case StageParsing:
		return "Extracting text and images from your PDF..."
	case StageGenerating:
		return "AI is analyzing content and crafting your slides..."
	case StageAwaitingReview:
		return "Content is ready. Check the preview to continue."
	case StageCreatingOutput:
		return "Assembling your presentation file..."
	case StageDone:
		return "Your presentation is ready!"
	case StageError:
		return "An error occurred. Please review the message and try again."
	}
	return ""
}

// Progress is everything a surrounding UI needs to render pipeline status.
// Percent is only meaningful while generating.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent,omitempty"`
	Error   string `json:"error,omitempty"`
}
