package models

// DocumentRun is the raw outcome of verifying one document.
type DocumentRun struct {
	Path      string
	Results   []VerificationResult
	Anomalies []ExtractionAnomaly
	Canceled  bool // Run stopped before the last block
}

// Counts holds per-status totals.
type Counts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Faults  int `json:"faults"`
}

// Total returns the number of counted results.
func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Skipped + c.Faults
}

// Checked returns the number of executed blocks.
func (c Counts) Checked() int {
	return c.Passed + c.Failed + c.Faults
}

// Add increments the counter matching status.
func (c *Counts) Add(status Status) {
	switch status {
	case StatusPassed:
		c.Passed++
	case StatusFailed:
		c.Failed++
	case StatusSkipped:
		c.Skipped++
	case StatusFault:
		c.Faults++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Passed += other.Passed
	c.Failed += other.Failed
	c.Skipped += other.Skipped
	c.Faults += other.Faults
}

// DocumentReport summarizes one document.
type DocumentReport struct {
	Path      string               `json:"document"`
	Results   []VerificationResult `json:"-"`
	Counts    Counts               `json:"counts"`
	PassRate  float64              `json:"pass_rate"`
	Anomalies int                  `json:"anomalies"`
	Canceled  bool                 `json:"canceled,omitempty"`
}

// Report is the corpus-level summary produced by the aggregator.
type Report struct {
	Documents []DocumentReport
	Totals    Counts
	Failures  []VerificationResult // Document order, then block order
	Canceled  bool
}

// OK reports whether every result passed or was skipped. A canceled run is
// never OK because its remaining blocks were not verified.
func (r Report) OK() bool {
	return r.Totals.Failed == 0 && r.Totals.Faults == 0 && !r.Canceled
}
