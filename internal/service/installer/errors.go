package installer

import (
	"errors"
	"net/url"
)

// Kind classifies why a run failed.
type Kind int

const (
	// KindUnknown covers failures outside the taxonomy below.
	KindUnknown Kind = iota
	// KindRemote means an unreachable host, a non-success status or a broken transfer.
	KindRemote
	// KindParse means the version pattern or the checksum line was not found.
	KindParse
	// KindIntegrity means the archive digest or contents were not what was published.
	KindIntegrity
	// KindFilesystem means a local read, write, extraction or link operation failed.
	KindFilesystem
)

// Process exit codes per failure kind.
const (
	ExitOK         = 0
	ExitUnknown    = 1
	ExitRemote     = 3
	ExitParse      = 4
	ExitIntegrity  = 5
	ExitFilesystem = 6
)

// String returns the short name used in logs.
func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindParse:
		return "parse"
	case KindIntegrity:
		return "integrity"
	case KindFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

// StepError is returned by every step of a run.
type StepError struct {
	// Step describes the failed step, e.g. "version resolution failed".
	Step string
	// Kind classifies the failure.
	Kind Kind
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(step string, kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return &StepError{Step: step, Kind: kind, Err: err}
}

// KindOf returns the Kind of the first StepError in err's chain.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}

	return KindUnknown
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch KindOf(err) {
	case KindRemote:
		return ExitRemote
	case KindParse:
		return ExitParse
	case KindIntegrity:
		return ExitIntegrity
	case KindFilesystem:
		return ExitFilesystem
	default:
		return ExitUnknown
	}
}

// Describe returns the headline logged for a failed run.
func Describe(err error) string {
	switch KindOf(err) {
	case KindRemote:
		return "Update failed: the vendor site could not be reached or answered unexpectedly"
	case KindParse:
		return "Update failed: the vendor content could not be parsed"
	case KindIntegrity:
		return "Update failed: the downloaded archive did not pass verification"
	case KindFilesystem:
		return "Update failed: a local filesystem operation failed"
	default:
		return "Update failed"
	}
}

// transferKind separates network failures from local write failures during a download.
func transferKind(err error) Kind {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, errBadHTTPStatus) || errors.Is(err, errTransferInterrupted) {
		return KindRemote
	}

	return KindFilesystem
}
