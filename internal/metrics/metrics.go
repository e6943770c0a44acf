package metrics

import (
	"time"

	"github.com/ruralpay/cartable/internal/errs"
)

// Collector receives workflow measurements.
type Collector interface {
	RecordDecision(decision, outcome string, duration time.Duration)
	RecordOTPVerification(result string)
	RecordOTPIssued(intent string)
	RecordBatchItem(outcome string)
	RecordBankSubmission(result string, duration time.Duration)
	RecordTransition(to string)
	RecordCircuitState(name string, state CircuitState)
	RecordExpired(count int)
}

// CircuitState mirrors gobreaker states without importing it here.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Outcome turns an error into a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return errs.KindOf(err).String()
}

// NoOp drops every measurement.
type NoOp struct{}

func (NoOp) RecordDecision(string, string, time.Duration) {}
func (NoOp) RecordOTPVerification(string) {}
func (NoOp) RecordOTPIssued(string) {}
func (NoOp) RecordBatchItem(string) {}
func (NoOp) RecordBankSubmission(string, time.Duration) {}
func (NoOp) RecordTransition(string) {}
func (NoOp) RecordCircuitState(string, CircuitState) {}
func (NoOp) RecordExpired(int) {}
