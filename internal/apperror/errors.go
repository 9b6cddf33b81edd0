package apperror

import (
	"errors"
	"fmt"
)

// AppError carries a taxonomy code, a human readable message and the
// underlying cause. errors.Is matches it against the sentinel for its code.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

const (
	CodeEmptyFile         = "EMPTY_FILE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeCorruptDocument   = "CORRUPT_DOCUMENT"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodeRemote            = "REMOTE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeSerialization     = "SERIALIZATION_FAILURE"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrCorruptDocument   = errors.New("corrupt document")
	ErrStorageFailure    = errors.New("storage failure")
	ErrRemote            = errors.New("remote call failed")
	ErrNotFound          = errors.New("resume not found")
	ErrSerialization     = errors.New("serialization failure")
)

var sentinels = map[string]error{
	CodeEmptyFile:         ErrEmptyFile,
	CodeUnsupportedFormat: ErrUnsupportedFormat,
	CodeCorruptDocument:   ErrCorruptDocument,
	CodeStorageFailure:    ErrStorageFailure,
	CodeRemote:            ErrRemote,
	CodeNotFound:          ErrNotFound,
	CodeSerialization:     ErrSerialization,
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel registered for e.Code.
func (e *AppError) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && sentinel == target
}

func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func EmptyFile() error {
	return New(CodeEmptyFile, "file is empty", nil)
}

func UnsupportedFormat(ext string) error {
	return New(CodeUnsupportedFormat, fmt.Sprintf("only PDF and DOCX files are supported, got %q", ext), nil)
}

func CorruptDocument(cause error) error {
	return New(CodeCorruptDocument, "failed to extract text", cause)
}

func StorageFailure(message string, cause error) error {
	return New(CodeStorageFailure, message, cause)
}

func Remote(message string, cause error) error {
	return New(CodeRemote, message, cause)
}

func NotFound(cause error) error {
	return New(CodeNotFound, "resume not found", cause)
}

func Serialization(message string, cause error) error {
	return New(CodeSerialization, message, cause)
}

// CodeOf returns the taxonomy code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
