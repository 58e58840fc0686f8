package marksheet

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrUnknownDocumentType = errors.New("unknown marksheet type")
	ErrUnreadableImage     = errors.New("image could not be decoded")
	ErrRasterization       = errors.New("pdf rasterization failed")
	ErrNoDataExtracted     = errors.New("no data could be extracted from the document")
	ErrEngineUnavailable   = errors.New("engine unavailable")
)

// Kind tells a caller who has to act on a failure
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput means the caller has to fix the input
	KindInput
	// KindEnvironment means a server-side or engine problem
	KindEnvironment
	// KindNoData means the document was readable but nothing was extracted
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindEnvironment:
		return "environment"
	case KindNoData:
		return "no_data"
	}
	return "unknown"
}

// Error is the caller-facing failure of a document call
type Error struct {
	Op   string
	Path string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err and derives its Kind from the wrapped sentinel
func NewError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Kind: kindOfSentinel(err), Err: err}
}

// KindOf classifies any error returned by the pipeline
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown {
		return e.Kind
	}
	return kindOfSentinel(err)
}

func kindOfSentinel(err error) Kind {
	switch {
	case errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrUnknownDocumentType),
		errors.Is(err, ErrUnreadableImage):
		return KindInput
	case errors.Is(err, ErrRasterization),
		errors.Is(err, ErrEngineUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindEnvironment
	case errors.Is(err, ErrNoDataExtracted):
		return KindNoData
	}
	return KindUnknown
}
