package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels for submission preconditions. Match with errors.Is against any
// wrapped SubmissionError.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNonce             = errors.New("nonce conflict")
)

// ValidationError reports malformed user input or missing configuration.
// It is raised before any chain interaction.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Invalid is a shorthand constructor for ValidationError.
func Invalid(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// SubmissionKind classifies why the node refused a transaction.
type SubmissionKind string

const (
	SubmissionInsufficientFunds SubmissionKind = "insufficient_funds"
	SubmissionNonce             SubmissionKind = "nonce"
	SubmissionMalformed         SubmissionKind = "malformed"
	SubmissionTransport         SubmissionKind = "transport"
)

// SubmissionError is returned when a transaction could not be accepted by
// the node. The remote message is kept verbatim.
type SubmissionError struct {
	Kind    SubmissionKind
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected (%s): %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInsufficientFunds) and errors.Is(err, ErrNonce)
// see through the kind.
func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrInsufficientFunds:
		return e.Kind == SubmissionInsufficientFunds
	case ErrNonce:
		return e.Kind == SubmissionNonce
	}
	return false
}

// RevertError is an on-chain rejection. Reason is empty when the node did
// not return revert data.
type RevertError struct {
	TxHash string
	Reason string
}

// CallRevertedError is the name used by contract call sites.
type CallRevertedError = RevertError

func (e *RevertError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "execution reverted"
	}
	if e.TxHash == "" {
		return fmt.Sprintf("reverted: %s", reason)
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash, reason)
}

// TimeoutError means no confirmation was observed in time. The transaction
// may still be included later; its outcome is unknown.
type TimeoutError struct {
	TxHash  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no confirmation for transaction %s within %s (outcome unknown)", e.TxHash, e.Timeout)
}

// QueryError wraps a failed read-only call.
type QueryError struct {
	Contract string
	Method   string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s.%s failed: %v", e.Contract, e.Method, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// DeployError wraps any failure of a contract-creation transaction.
type DeployError struct {
	Contract string
	Err      error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy %s failed: %v", e.Contract, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// VerificationError is a post-deployment cross-reference mismatch. It is
// never corrected automatically.
type VerificationError struct {
	Mismatches []string
}

func (e *VerificationError) Error() string {
	return "deployment verification failed: " + strings.Join(e.Mismatches, "; ")
}

// NotFoundError is returned by artifact stores for absent keys and by the
// chain client for unknown transaction hashes.
type NotFoundError struct {
	What string
	Key  string
}

func (e *NotFoundError) Error() string {
	what := e.What
	if what == "" {
		what = "deployment record"
	}
	return fmt.Sprintf("%s %q not found", what, e.Key)
}

// StepError tags a deployment failure with the protocol step that raised it.
type StepError struct {
	Step     int
	Name     string
	Contract string
	Err      error
}

func (e *StepError) Error() string {
	if e.Contract == "" {
		return fmt.Sprintf("step %d (%s): %v", e.Step, e.Name, e.Err)
	}
	return fmt.Sprintf("step %d (%s, %s): %v", e.Step, e.Name, e.Contract, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PartialQueryError describes a failed optional query. Stats keep it inside
// the affected metric; it is never returned from an aggregate call.
type PartialQueryError struct {
	Metric string
	Err    error
}

func (e *PartialQueryError) Error() string {
	return fmt.Sprintf("metric %s unavailable: %v", e.Metric, e.Err)
}

func (e *PartialQueryError) Unwrap() error { return e.Err }

// Exit statuses used by the command line tools.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitValidation   = 2
	ExitSubmission   = 3
	ExitRevert       = 4
	ExitTimeout      = 5
	ExitVerification = 6
	ExitNotFound     = 7
)

// ExitCode maps an error to a process exit status. Any non-nil error yields
// a non-zero status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		validation   *ValidationError
		submission   *SubmissionError
		revert       *RevertError
		timeout      *TimeoutError
		verification *VerificationError
		notFound     *NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return ExitValidation
	case errors.As(err, &verification):
		return ExitVerification
	case errors.As(err, &timeout):
		return ExitTimeout
	case errors.As(err, &revert):
		return ExitRevert
	case errors.As(err, &submission):
		return ExitSubmission
	case errors.As(err, &notFound):
		return ExitNotFound
	}
	return ExitFailure
}
