// Package errors defines the coded errors shared by the infill core, the
// pipeline, the CLI and the HTTP adapter.
//
// Every error a caller can act on carries a [Code]. INVALID_* codes reject
// input before any work starts; NO_VALID_SOURCE and IMAGE_TOO_SMALL reject
// well-formed input that cannot be infilled. The CLI maps input codes to exit
// status 2 and the HTTP adapter maps them to 4xx responses.
//
//	err := errors.New(errors.ErrCodeInvalidPatchSize, "patch size must be odd, got %d", p)
//	if errors.Is(err, errors.ErrCodeInvalidPatchSize) {
//	    ...
//	}
//
//	err = errors.Wrap(errors.ErrCodeInvalidImage, decodeErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code, stable across releases.
type Code string

const (
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidImage     Code = "INVALID_IMAGE"
	ErrCodeInvalidMask      Code = "INVALID_MASK"
	ErrCodeInvalidPatchSize Code = "INVALID_PATCH_SIZE"
	ErrCodeInvalidOptions   Code = "INVALID_OPTIONS"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"

	// The mask leaves no known pixel to copy from.
	ErrCodeNoValidSource Code = "NO_VALID_SOURCE"
	// The image is smaller than one patch.
	ErrCodeImageTooSmall Code = "IMAGE_TOO_SMALL"

	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Input reports whether c blames the caller's input. Such errors are never
// worth retrying with the same request.
func (c Code) Input() bool {
	switch c {
	case ErrCodeInvalidInput, ErrCodeInvalidImage, ErrCodeInvalidMask,
		ErrCodeInvalidPatchSize, ErrCodeInvalidOptions, ErrCodeInvalidFormat,
		ErrCodeInvalidPath, ErrCodeInvalidConfig,
		ErrCodeNoValidSource, ErrCodeImageTooSmall:
		return true
	}
	return false
}

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string // shown to users without the code
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and a message to cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of a coded error without its code and
// cause, or err.Error() for any other error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInputError reports whether err carries an input code.
func IsInputError(err error) bool {
	return GetCode(err).Input()
}
