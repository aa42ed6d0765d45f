package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/shadow/internal/change"
)

// Error is returned synchronously by engine operations.
//
// Errors carry a Code for programmatic matching, the operation that failed,
// and the path of the node the operation went through (when there is one).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("set", "observe", "from", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Path is the path of the node the operation was invoked on.
	Path change.Path
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates a bad target, observer, option or index.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeRevokedAccess indicates an operation through a revoked root.
	ErrCodeRevokedAccess ErrorCode = "REVOKED_ACCESS"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrInvalidArgument = &Error{Code: ErrCodeInvalidArgument}
	ErrRevokedAccess   = &Error{Code: ErrCodeRevokedAccess}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	return b.String()
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsInvalidArgument returns true if the error is an invalid argument error.
// Uses errors.As to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeInvalidArgument
	}
	return false
}

// IsRevokedAccess returns true if the error is a revoked access error.
// Uses errors.As to handle wrapped errors.
func IsRevokedAccess(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeRevokedAccess
	}
	return false
}

func invalidArgument(op string, path change.Path, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidArgument,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}

func revokedAccess(op string, path change.Path) *Error {
	return &Error{
		Code:    ErrCodeRevokedAccess,
		Op:      op,
		Message: "root has been revoked",
		Path:    path,
	}
}

// ObserverError reports an observer that returned an error or panicked
// during delivery. It never reaches the mutator; it is handed to the
// process-wide error handler and delivery continues with the next observer.
type ObserverError struct {
	// RootID identifies the root whose flush was being delivered.
	RootID string

	// Records is the number of records in the failed delivery.
	Records int

	// Err is the error returned by the observer, if any.
	Err error

	// Panic is the recovered panic value, if the observer panicked.
	Panic any
}

// Error implements the error interface.
func (e *ObserverError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("observer panicked (root=%s, records=%d): %v", e.RootID, e.Records, e.Panic)
	}
	return fmt.Sprintf("observer failed (root=%s, records=%d): %v", e.RootID, e.Records, e.Err)
}

// Unwrap returns the observer's error.
func (e *ObserverError) Unwrap() error {
	return e.Err
}

// IsObserverError returns true if the error is an ObserverError.
func IsObserverError(err error) bool {
	var oe *ObserverError
	return errors.As(err, &oe)
}

var (
	errorHandlerMu sync.RWMutex
	errorHandler   = defaultErrorHandler
)

func defaultErrorHandler(err error) {
	attrs := []any{"error", err}
	var oe *ObserverError
	if errors.As(err, &oe) {
		attrs = append(attrs, "root", oe.RootID, "records", oe.Records)
	}
	slog.Error("observer failed", attrs...)
}

// SetErrorHandler installs the process-wide handler for observer failures
// and returns the previous one. Passing nil restores the default handler,
// which logs through slog.
func SetErrorHandler(h func(error)) func(error) {
	errorHandlerMu.Lock()
	defer errorHandlerMu.Unlock()

	prev := errorHandler
	if h == nil {
		h = defaultErrorHandler
	}
	errorHandler = h
	return prev
}

func reportError(err error) {
	errorHandlerMu.RLock()
	h := errorHandler
	errorHandlerMu.RUnlock()
	h(err)
}
