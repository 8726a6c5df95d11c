// Package errors is the error facade for tablereader.
//
// It re-exports github.com/cockroachdb/errors (stack traces, wrapping, hints)
// and defines the error kinds the table-reading framework distinguishes:
//
//   - configuration errors: the user must change settings
//   - consistency errors: spec inference disagreed with the actual data
//   - content errors: a single row value could not be converted
//   - cancellation
//
// Kinds are attached with Mark so they survive any amount of wrapping:
//
//	return errors.Configurationf("column %q has no production path", name)
//
//	if errors.IsConfiguration(err) { ... }
package errors

import (
	"context"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Errorf       = crdb.Errorf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
	Join         = crdb.Join
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Error kinds. Use the Is* helpers rather than comparing directly.
var (
	// ErrConfiguration marks problems the user fixes by changing settings.
	ErrConfiguration = New("configuration error")

	// ErrConsistency marks violated assumptions made during spec inference.
	ErrConsistency = New("consistency violation")

	// ErrContent marks a row value that could not be mapped to its type.
	ErrContent = New("content error")

	// ErrCanceled marks a read aborted through its context.
	ErrCanceled = New("canceled")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")
)

// Configurationf creates a configuration error with a formatted message.
func Configurationf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConfiguration)
}

// Consistencyf creates a consistency-violation error with a formatted message.
func Consistencyf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConsistency)
}

// NotFoundf creates a not-found error with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// AsConfiguration marks an existing error as a configuration error.
func AsConfiguration(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrConfiguration)
}

// Canceled wraps a context error so it is recognised by IsCanceled.
func Canceled(err error) error {
	if err == nil {
		err = context.Canceled
	}
	return Mark(Wrap(err, "read canceled"), ErrCanceled)
}

// IsConfiguration reports whether err is or wraps a configuration error.
func IsConfiguration(err error) bool {
	return err != nil && Is(err, ErrConfiguration)
}

// IsConsistency reports whether err is or wraps a consistency violation.
func IsConsistency(err error) bool {
	return err != nil && Is(err, ErrConsistency)
}

// IsContent reports whether err is or wraps a content error.
func IsContent(err error) bool {
	return err != nil && Is(err, ErrContent)
}

// IsCanceled reports whether err is a cancellation, including bare context errors.
func IsCanceled(err error) bool {
	return err != nil && (Is(err, ErrCanceled) || Is(err, context.Canceled) || Is(err, context.DeadlineExceeded))
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
