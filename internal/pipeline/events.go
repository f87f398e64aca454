package pipeline

import "time"

// Stage identifies one step of a report run.
type Stage string

const (
	StageCompanyInfo     Stage = "company_info"
	StageNews            Stage = "news"
	StageRecommendations Stage = "recommendations"
	StageUpgrades        Stage = "upgrades_downgrades"
	StageHistory         Stage = "history"
	StageGenerate        Stage = "generate"
	StagePDF             Stage = "pdf"
)

// State is the progress of a stage.
type State string

const (
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

type stageText struct {
	title   string // "Company Info"
	noun    string // used in error notices
	running string
	done    string
}

var stageTexts = map[Stage]stageText{
	StageCompanyInfo:     {"Company Info", "company info", "Getting Company Info", "Company Info available"},
	StageNews:            {"Company News", "company news", "Getting Company News", "Company News available"},
	StageRecommendations: {"Analyst Recommendations", "analyst recommendations", "Getting Analyst Recommendations", "Analyst Recommendations available"},
	StageUpgrades:        {"Upgrades/Downgrades", "upgrades/downgrades", "Getting Upgrades/Downgrades", "Upgrades/Downgrades checked"},
	StageHistory:         {"Historical Data", "historical data", "Getting Historical Data", "Historical Data retrieved successfully"},
	StageGenerate:        {"Report", "the report", "Generating Report", "Report generated"},
	StagePDF:             {"PDF", "the PDF", "Generating PDF", "PDF ready"},
}

// Noun names what the stage retrieves, as used in error notices.
func (s Stage) Noun() string {
	if t, ok := stageTexts[s]; ok {
		return t.noun
	}
	return string(s)
}

// Label is the status line shown for the stage in state.
func (s Stage) Label(state State) string {
	t, ok := stageTexts[s]
	if !ok {
		return string(s) + " " + string(state)
	}
	switch state {
	case StateRunning:
		return t.running
	case StateComplete:
		return t.done
	default:
		return t.title + " unavailable"
	}
}

// Event reports a stage transition.
type Event struct {
	Stage  Stage     `json:"stage"`
	State  State     `json:"state"`
	Label  string    `json:"label"`
	Detail string    `json:"detail,omitempty"`
	Ticker string    `json:"ticker"`
	Time   time.Time `json:"time"`
}

// Observer receives events synchronously from the goroutine running the
// pipeline. It must not block.
type Observer func(Event)
