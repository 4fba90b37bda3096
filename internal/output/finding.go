package output

// Status is the outcome of one check.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusWarn  Status = "WARN"
	StatusInfo  Status = "INFO"
	StatusError Status = "ERROR"
)

// Finding is one reportable outcome of a command.
type Finding struct {
	Check   string `json:"check"`
	Subject string `json:"subject,omitempty"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	// Metadata carries structured detail (paths, counts, lists).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Wrong reports whether the finding counts against the run.
func (f Finding) Wrong() bool {
	return f.Status == StatusFail
}

// Summary is a human-readable block. Only the text console renders it.
type Summary struct {
	Title string
	Lines []string
}
