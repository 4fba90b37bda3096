package output

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line):
// - run.started
// - finding
// - run.finished
//
// JSON mode remains an aggregate of Finding values.
type Event struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id,omitempty"`
	Command string `json:"command,omitempty"`
	*Finding
	Findings int `json:"findings,omitempty"`
	Wrongs   int `json:"wrongs,omitempty"`
	ExitCode int `json:"exit_code,omitempty"`
}

const (
	EventRunStarted  = "run.started"
	EventFinding     = "finding"
	EventRunFinished = "run.finished"
)

func eventFromFinding(f Finding) Event {
	return Event{Type: EventFinding, Finding: &f}
}
