package models

// Status is the outcome of verifying one block.
type Status string

// Verification status constants
const (
	StatusPassed  Status = "PASSED"  // Output matched, or nothing to check and no fault
	StatusFailed  Status = "FAILED"  // Output differs from the annotation
	StatusSkipped Status = "SKIPPED" // Disabled example, never executed
	StatusFault   Status = "FAULT"   // Evaluation raised a fault (runtime error, panic, timeout)
)

// VerificationResult is the immutable outcome of one block.
type VerificationResult struct {
	Document       string     `json:"document"`
	BlockID        string     `json:"block"`
	Ordinal        int        `json:"ordinal"`
	Lines          LineRange  `json:"lines"`
	Status         Status     `json:"status"`
	ActualOutput   []string   `json:"actual,omitempty"`
	ExpectedOutput []string   `json:"expected,omitempty"`
	Diff           string     `json:"diff,omitempty"`
	Fault          *EvalFault `json:"fault,omitempty"`
}

// IsFailure reports whether the result should fail the run.
func (r VerificationResult) IsFailure() bool {
	return r.Status == StatusFailed || r.Status == StatusFault
}

// MismatchError describes a Failed result. It is carried by value in the
// report and never returned up the call stack.
type MismatchError struct {
	Document string
	BlockID  string
	Lines    LineRange
	Diff     string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return e.Document + ":" + e.Lines.String() + " (" + e.BlockID + "): output mismatch\n" + e.Diff
}

// Mismatch returns the MismatchError for a failed result, or nil.
func (r VerificationResult) Mismatch() *MismatchError {
	if r.Status != StatusFailed {
		return nil
	}
	return &MismatchError{Document: r.Document, BlockID: r.BlockID, Lines: r.Lines, Diff: r.Diff}
}
