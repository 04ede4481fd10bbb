// Package errors defines the structured error type used to report decoding
// failures with enough context to find the document and unit that caused
// them.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a decoding failure.
type ErrorCode string

const (
	// ErrorConfiguration covers fatal setup problems: an oracle returning no
	// decision, beam width below one, a missing feature dependency.
	ErrorConfiguration ErrorCode = "CONFIGURATION"

	// ErrorDataQuality covers recoverable input problems such as an invalid
	// ground-truth letter. These are counted, not raised to the user.
	ErrorDataQuality ErrorCode = "DATA_QUALITY"

	// ErrorLogic marks broken internal invariants (an empty beam).
	ErrorLogic ErrorCode = "LOGIC"

	// ErrorStorage covers persistence failures.
	ErrorStorage ErrorCode = "STORAGE"
)

// DecodeError is a failure located in a document.
type DecodeError struct {
	Code     ErrorCode
	Message  string
	Document string
	Image    string
	Group    int64
	Unit     int
	Cause    error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var loc []string
	if e.Document != "" {
		loc = append(loc, "document="+e.Document)
	}
	if e.Image != "" {
		loc = append(loc, "image="+e.Image)
	}
	if e.Group != 0 {
		loc = append(loc, fmt.Sprintf("group=%d", e.Group))
	}
	if e.Unit >= 0 {
		loc = append(loc, fmt.Sprintf("unit=%d", e.Unit))
	}
	if len(loc) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(loc, " "))
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// At returns a copy of e located at the given document, image, group and
// unit. Empty or zero arguments keep the existing value.
func (e *DecodeError) At(document, image string, group int64, unit int) *DecodeError {
	c := *e
	if document != "" {
		c.Document = document
	}
	if image != "" {
		c.Image = image
	}
	if group != 0 {
		c.Group = group
	}
	if unit >= 0 {
		c.Unit = unit
	}
	return &c
}

func newError(code ErrorCode, msg string, cause error) *DecodeError {
	return &DecodeError{Code: code, Message: msg, Unit: -1, Cause: cause}
}

// NewConfigurationError reports a fatal configuration problem.
func NewConfigurationError(msg string, cause error) *DecodeError {
	return newError(ErrorConfiguration, msg, cause)
}

// NewLogicError reports a broken internal invariant.
func NewLogicError(msg string, cause error) *DecodeError {
	return newError(ErrorLogic, msg, cause)
}

// NewDataQualityError reports a recoverable input problem.
func NewDataQualityError(msg string, cause error) *DecodeError {
	return newError(ErrorDataQuality, msg, cause)
}

// NewStorageError reports a persistence failure.
func NewStorageError(msg string, cause error) *DecodeError {
	return newError(ErrorStorage, msg, cause)
}

// CodeOf returns the code of the first DecodeError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var de *DecodeError
	if stderrors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// IsFatal reports whether err must abort the current document. Everything
// except data-quality errors is fatal, including errors that carry no code.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	code, ok := CodeOf(err)
	return !ok || code != ErrorDataQuality
}
