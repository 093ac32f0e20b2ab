// Package errors provides error handling for quarry.
//
// It re-exports github.com/cockroachdb/errors so that every package wraps,
// marks and inspects errors the same way:
//
//	if err := store.Assert(q); err != nil {
//	    return errors.Wrap(err, "load graph")
//	}
//
//	if errors.Is(err, errors.ErrNotSupported) {
//	    // capability gap, not a failure of the data
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors. Wrap them to add context; match them with Is.
var (
	// ErrNotSupported marks a capability the engine or a store does not provide
	// (CONSTRUCT/DESCRIBE execution, an unknown aggregate).
	ErrNotSupported = New("not supported")

	// ErrInvalidConfiguration marks setup errors raised before evaluation
	// starts, such as a grouping stage with neither keys nor aggregates.
	ErrInvalidConfiguration = New("invalid configuration")

	// ErrWildcardUnsupported is returned by stores that cannot answer a lookup
	// with an unbound position.
	ErrWildcardUnsupported = New("wildcard lookup not supported")

	// ErrInvalidQuery marks query text the front-end could not parse or compile.
	ErrInvalidQuery = New("invalid query")
)

// NotSupportedf returns an ErrNotSupported-marked error with a formatted message.
func NotSupportedf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotSupported)
}

// InvalidConfigurationf returns an ErrInvalidConfiguration-marked error.
func InvalidConfigurationf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidConfiguration)
}

// InvalidQueryf returns an ErrInvalidQuery-marked error.
func InvalidQueryf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidQuery)
}

// IsNotSupported reports whether err is or wraps ErrNotSupported.
func IsNotSupported(err error) bool {
	return err != nil && Is(err, ErrNotSupported)
}

// IsInvalidConfiguration reports whether err is or wraps ErrInvalidConfiguration.
func IsInvalidConfiguration(err error) bool {
	return err != nil && Is(err, ErrInvalidConfiguration)
}

// IsInvalidQuery reports whether err is or wraps ErrInvalidQuery.
func IsInvalidQuery(err error) bool {
	return err != nil && Is(err, ErrInvalidQuery)
}
