// Package apperr defines the error taxonomy shared by the service layer.
// Handlers translate kinds to HTTP status codes; nothing below the HTTP
// adapters knows about status codes.
package apperr

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers rejected input: bad MIME type, missing
	// extension, empty upload, duplicate file for an institution.
	KindValidation
	// KindNotFound covers missing database rows and files that exist in
	// the database but are missing on disk.
	KindNotFound
	// KindConversion covers malformed KML, encoding problems and empty
	// conversion results.
	KindConversion
	// KindStorage covers I/O failures on write, move and delete.
	KindStorage
)

// Error carries a kind for transport mapping and preserves the low-level
// cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conversion(msg string, cause error) *Error {
	return &Error{Kind: KindConversion, Message: msg, Cause: cause}
}

func Storage(msg string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Cause: cause}
}

// KindOf extracts the kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the client-safe message for err. Foreign errors map to a
// generic message so raw causes never leak to callers.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
