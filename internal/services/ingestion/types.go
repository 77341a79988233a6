package ingestion

// ProgressFunc receives per-item progress while an ingestion run walks
// its candidate list. Callers pass nil when they do not track progress.
type ProgressFunc func(total, processed, created int)

// Result summarizes an ingestion run. Errors holds one message per
// failed item; a run with some failures and some created articles is
// still a success.
type Result struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Success returns true when at least one item survived or nothing failed
func (r *Result) Success() bool {
	return r.Created > 0 || len(r.Errors) == 0
}

func (r *Result) addError(message string) {
	r.Errors = append(r.Errors, message)
}
