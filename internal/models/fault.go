package models

import (
	"context"
	"errors"
	"fmt"
)

// FaultKind classifies an evaluation fault.
type FaultKind string

const (
	FaultCompile  FaultKind = "compile"
	FaultRuntime  FaultKind = "runtime"
	FaultPanic    FaultKind = "panic"
	FaultTimeout  FaultKind = "timeout"
	FaultCanceled FaultKind = "canceled"
)

// EvalFault is a runtime-level failure raised while executing a snippet.
// It aborts the block, never the run.
type EvalFault struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewEvalFault creates an EvalFault of the given kind.
func NewEvalFault(kind FaultKind, msg string, err error) *EvalFault {
	return &EvalFault{Kind: kind, Message: msg, Err: err}
}

// Error implements the error interface.
func (f *EvalFault) Error() string {
	if f.Err != nil && f.Message == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying error.
func (f *EvalFault) Unwrap() error {
	return f.Err
}

// AsEvalFault converts any error into an EvalFault. Existing faults are
// returned as-is; context errors map to timeout/canceled; everything else is
// a runtime fault.
func AsEvalFault(err error) *EvalFault {
	if err == nil {
		return nil
	}
	var fault *EvalFault
	if errors.As(err, &fault) {
		return fault
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewEvalFault(FaultTimeout, "evaluation exceeded the snippet timeout", err)
	case errors.Is(err, context.Canceled):
		return NewEvalFault(FaultCanceled, "evaluation canceled", err)
	}
	return NewEvalFault(FaultRuntime, err.Error(), err)
}
