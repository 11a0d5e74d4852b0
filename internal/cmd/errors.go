package cmd

import (
	"errors"
	"fmt"

	"github.com/harrison/playcheck/internal/config"
	"github.com/harrison/playcheck/internal/models"
)

// Exit statuses of the playcheck binary.
const (
	ExitOK     = 0 // every block Passed or Skipped
	ExitFailed = 1 // at least one Failed or Fault block, or the run was interrupted
	ExitConfig = 2 // configuration or invocation error
)

// VerificationFailedError is returned by verify when the report is not OK.
// The report has already been written when it is returned.
type VerificationFailedError struct {
	Failed   int
	Faults   int
	Canceled bool
}

// Error implements the error interface
func (e *VerificationFailedError) Error() string {
	if e.Canceled && e.Failed == 0 && e.Faults == 0 {
		return "verification incomplete: run canceled before every block was verified"
	}
	msg := fmt.Sprintf("verification failed: %d failed, %d faults", e.Failed, e.Faults)
	if e.Canceled {
		msg += " (run canceled)"
	}
	return msg
}

// reportError returns the error verify ends with for rep, nil when every
// block ran and passed or was skipped.
func reportError(rep models.Report) error {
	if rep.OK() {
		return nil
	}
	return &VerificationFailedError{Failed: rep.Totals.Failed, Faults: rep.Totals.Faults, Canceled: rep.Canceled}
}

// ExitCode maps an error returned by the root command onto an exit status.
// Anything other than a verification failure is a configuration error, an
// argument error from cobra, or a setup failure before verification.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var vf *VerificationFailedError
	if errors.As(err, &vf) {
		return ExitFailed
	}
	return ExitConfig
}

// configErr wraps err as a ConfigError unless it already is one.
func configErr(field, reason string, err error) error {
	if config.IsConfigError(err) {
		return err
	}
	return config.NewConfigError(field, reason, err)
}
