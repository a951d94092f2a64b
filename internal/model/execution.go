package model

// ExecutionRequest represents one run of a code buffer against the
// execution backend. Constructed per run, never persisted.
type ExecutionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin"`
}

// ExecutionStatus is the backend's classification of a submission.
// IDs 1 and 2 mean queued and running; anything >= 3 is terminal.
type ExecutionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Terminal reports whether the status will no longer change.
func (s ExecutionStatus) Terminal() bool {
	return s.ID >= 3
}

// ExecutionResult is the terminal outcome of a submission, extracted
// verbatim from the backend's final response.
type ExecutionResult struct {
	Stdout        string          `json:"stdout"`
	Stderr        string          `json:"stderr"`
	CompileOutput string          `json:"compile_output"`
	Time          string          `json:"time,omitempty"`
	Memory        int             `json:"memory,omitempty"`
	Status        ExecutionStatus `json:"status"`
}
