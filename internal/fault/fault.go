// Package fault defines the error taxonomy shared across gridsync.
//
// Components return *Error values carrying a Code; only the reconcile
// orchestrator decides what a user sees. Nothing in gridsync retries.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes errors.
type Code string

const (
	// CodeConfiguration indicates an unusable configuration. Fatal at startup.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeNoData indicates the backend holds no rows for a dataset. Callers
	// treat it as an empty table so the first rows can be created.
	CodeNoData Code = "NO_DATA"

	// CodeBackend indicates a non-2xx response or transport failure.
	CodeBackend Code = "BACKEND"

	// CodeIndexOutOfRange indicates an edit addressed a row position that
	// does not exist in the current snapshot.
	CodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"
)

// urlMarker separates a backend's reason from the request URL in error text.
const urlMarker = "for url:"

// Error is the structured error type returned by gridsync components.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Dataset names the affected dataset, when known.
	Dataset string

	// Operation names the failed persistence operation (create, update, delete).
	Operation string

	// Status is the HTTP status for backend errors, zero otherwise.
	Status int

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.Dataset != "" && e.Operation != "":
		fmt.Fprintf(&b, " (dataset=%s, operation=%s)", e.Dataset, e.Operation)
	case e.Dataset != "":
		fmt.Fprintf(&b, " (dataset=%s)", e.Dataset)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the message as shown to a user: everything before the
// "for url:" marker, trimmed.
func (e *Error) Reason() string {
	return DisplayMessage(e.Message)
}

// DisplayMessage truncates a backend error message before "for url:".
func DisplayMessage(msg string) string {
	if i := strings.Index(msg, urlMarker); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

// Configuration creates a configuration error.
func Configuration(msg string, err error) *Error {
	return &Error{Code: CodeConfiguration, Message: msg, Err: err}
}

// NoData creates the error returned when a dataset has no rows.
func NoData(dataset string) *Error {
	return &Error{Code: CodeNoData, Message: "No Data", Dataset: dataset}
}

// Backend creates a backend error for a dataset operation.
func Backend(dataset, operation string, status int, msg string, err error) *Error {
	return &Error{
		Code:      CodeBackend,
		Message:   msg,
		Dataset:   dataset,
		Operation: operation,
		Status:    status,
		Err:       err,
	}
}

// IndexOutOfRange creates an error for a row position outside the snapshot.
func IndexOutOfRange(section string, pos, length int) *Error {
	return &Error{
		Code:    CodeIndexOutOfRange,
		Message: fmt.Sprintf("%s position %d out of range for snapshot of %d rows", section, pos, length),
		Details: map[string]string{
			"section":  section,
			"position": fmt.Sprintf("%d", pos),
			"rows":     fmt.Sprintf("%d", length),
		},
	}
}

// Is reports whether err is a *Error with the given code.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return Is(err, CodeConfiguration) }

// IsNoData reports whether err signals an empty dataset.
func IsNoData(err error) bool { return Is(err, CodeNoData) }

// IsBackend reports whether err is a backend error.
func IsBackend(err error) bool { return Is(err, CodeBackend) }

// IsIndexOutOfRange reports whether err is a stale position error.
func IsIndexOutOfRange(err error) bool { return Is(err, CodeIndexOutOfRange) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
