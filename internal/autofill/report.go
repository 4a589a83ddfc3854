package autofill

import (
	"fmt"
	"time"
)

// Outcome classifies a finished fill pass.
type Outcome string

const (
	OutcomeNoData    Outcome = "no-data"
	OutcomeNoMatches Outcome = "no-matches"
	OutcomeFilled    Outcome = "filled"
	OutcomeError     Outcome = "error"
)

// Level is the severity a notification is shown with.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

func (o Outcome) Level() Level {
	switch o {
	case OutcomeFilled:
		return LevelSuccess
	case OutcomeNoMatches:
		return LevelInfo
	case OutcomeNoData:
		return LevelWarning
	}
	return LevelError
}

// Result counts filled fields and fields skipped because they already
// held a value.
type Result struct {
	Filled  int `json:"filled"`
	Skipped int `json:"skipped"`
}

// FilledField describes one fill without its value.
type FilledField struct {
	Ref   string `json:"ref"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Label string `json:"label"`
	Facet Facet  `json:"facet"`
}

// Report is what one fill pass produced.
type Report struct {
	PassID    string `json:"passId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	TabID   string  `json:"tabId,omitempty"`
	URL     string  `json:"url,omitempty"`
	Outcome Outcome `json:"outcome"`
	Result
	Message    string        `json:"message"`
	Error      string        `json:"error,omitempty"`
	Fields     []FilledField `json:"fields,omitempty"`
	Failed     int           `json:"failed,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	DurationMs int64         `json:"durationMs"`
}

const (
	msgNoData    = "No saved form data found. Add some with `typeless pairs add`."
	msgNoMatches = "No matching form fields found on this page."
	msgError     = "An error occurred while filling the form."
)

func filledMessage(r Result) string {
	return fmt.Sprintf("Successfully filled %d field(s). %d field(s) skipped (already filled).", r.Filled, r.Skipped)
}

// Notice is the banner content for a report.
type Notice struct {
	Message  string        `json:"message"`
	Level    Level         `json:"level"`
	Duration time.Duration `json:"-"`
}

// NoticeDuration is how long a banner stays on the page.
const NoticeDuration = 4 * time.Second

// NotificationID is the element id of the on-page banner. A new banner
// replaces any element carrying it.
const NotificationID = "typeless-notification"

func (r Report) Notice() Notice {
	return Notice{Message: r.Message, Level: r.Outcome.Level(), Duration: NoticeDuration}
}

// Colors returns the banner background and border colors for l.
func (l Level) Colors() (background, border string) {
	switch l {
	case LevelSuccess:
		return "#48bb78", "#38a169"
	case LevelWarning:
		return "#ed8936", "#dd6b20"
	case LevelError:
		return "#f56565", "#e53e3e"
	}
	return "#4299e1", "#3182ce"
}
