// Package errors defines the stable error code system for stencil.
package errors

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Recipe loading and validation
	ERecipeNotFound  Code = "E_RECIPE_NOT_FOUND"
	EInvalidRecipe   Code = "E_INVALID_RECIPE"
	EInvalidConfig   Code = "E_INVALID_CONFIG"
	ESourceFetch     Code = "E_SOURCE_FETCH"
	ESourceNotFound  Code = "E_SOURCE_NOT_FOUND"
	ETargetNotFound  Code = "E_TARGET_NOT_FOUND"
	ENoRepo          Code = "E_NO_REPO"
	ERecipeExists    Code = "E_RECIPE_EXISTS"
	EInvalidVariable Code = "E_INVALID_VARIABLE"

	// Step execution
	EAnchorNotFound Code = "E_ANCHOR_NOT_FOUND"
	EFileMissing    Code = "E_FILE_MISSING"
	ECommandFailed  Code = "E_COMMAND_FAILED"
	ECommandStart   Code = "E_COMMAND_START"
	ERenderFailed   Code = "E_RENDER_FAILED"
	EWriteFailed    Code = "E_WRITE_FAILED"

	// Journal, resume and rollback
	ENoJournal        Code = "E_NO_JOURNAL"
	EJournalCorrupt   Code = "E_JOURNAL_CORRUPT"
	EJournalMismatch  Code = "E_JOURNAL_MISMATCH"
	EPersistFailed    Code = "E_PERSIST_FAILED"
	ERollbackFailed   Code = "E_ROLLBACK_FAILED"
	ELocked           Code = "E_LOCKED"
	EToolNotInstalled Code = "E_TOOL_NOT_INSTALLED"
)

// StencilError is the standard error type for stencil errors.
type StencilError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *StencilError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StencilError) Unwrap() error {
	return e.Cause
}

// New creates a new StencilError with the given code and message.
func New(code Code, msg string) error {
	return &StencilError{Code: code, Msg: msg}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) error {
	return &StencilError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// NewWithDetails creates a new StencilError with code, message, and details.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &StencilError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new StencilError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &StencilError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new StencilError wrapping an underlying error with details.
// Details map is copied (nil if empty).
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &StencilError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// WithDetail returns err with key=value merged into its details.
// Non-stencil errors are wrapped as E_INTERNAL first.
func WithDetail(err error, key, value string) error {
	if err == nil {
		return nil
	}
	se, ok := AsStencilError(err)
	if !ok {
		return &StencilError{Code: EInternal, Msg: "internal error", Cause: err, Details: map[string]string{key: value}}
	}
	details := copyDetails(se.Details)
	if details == nil {
		details = make(map[string]string, 1)
	}
	details[key] = value
	return &StencilError{Code: se.Code, Msg: se.Msg, Cause: se.Cause, Details: details}
}

// GetCode extracts the error code from an error, or empty string if not a StencilError.
func GetCode(err error) Code {
	var se *StencilError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// AsStencilError returns (*StencilError, true) if err is or wraps a StencilError.
func AsStencilError(err error) (*StencilError, bool) {
	var se *StencilError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// detailStderr is printed last and verbatim; it carries captured command output.
const detailStderr = "stderr"

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
//	<key>: <value>      (sorted details, if any)
//	<captured stderr>   (if any)
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	se, ok := AsStencilError(err)
	if !ok {
		fmt.Fprintln(w, err.Error())
		return
	}
	fmt.Fprintf(w, "error_code: %s\n", se.Code)
	fmt.Fprintln(w, se.Msg)

	keys := make([]string, 0, len(se.Details))
	for k := range se.Details {
		if k == detailStderr {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, se.Details[k])
	}

	if out := strings.TrimRight(se.Details[detailStderr], "\n"); out != "" {
		fmt.Fprintln(w, out)
	}
}
