// Package errors provides error handling for qconsole.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, wrapping, hints and markers, and defines the kernel error taxonomy.
//
// Usage:
//
//	if err := k.Connect(ctx); err != nil {
//	    return errors.Wrap(err, "failed to start kernel")
//	}
//
//	// Classify without changing the message
//	return errors.Mark(errors.Newf("bad line %q", line), errors.ErrProtocol)
//
//	// Check errors
//	if errors.Is(err, errors.ErrProtocol) {
//	    // reconnect
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
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
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Kernel error taxonomy. Errors returned by the kernel are marked with one
// of these so callers can branch with errors.Is while the message keeps the
// concrete cause.
var (
	// ErrConnection covers spawn failures and handshake problems.
	// The kernel stays disconnected.
	ErrConnection = New("kernel connection failed")

	// ErrProcessDied indicates the child closed its output before the
	// handshake completed. Always also matches ErrConnection.
	ErrProcessDied = New("kernel process died")

	// ErrProtocol indicates a malformed structured-data line or a missing
	// sentinel. The kernel is unusable until reconnected.
	ErrProtocol = New("kernel protocol error")

	// ErrProcess indicates the child exited or a pipe failed mid-exchange.
	ErrProcess = New("kernel process error")

	// ErrNotConnected is returned by operations that need a live child.
	ErrNotConnected = New("kernel not connected")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = New("operation timed out")
)

// IsKernelFatal reports whether err leaves the kernel unusable without a
// reconnect.
func IsKernelFatal(err error) bool {
	return err != nil && IsAny(err, ErrProtocol, ErrProcess, ErrTimeout)
}

// MarkConnection wraps err with msg and classifies it as a connection error.
func MarkConnection(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrConnection)
}

// MarkProtocol wraps err with msg, classifies it as a protocol error and
// attaches a reconnect hint.
func MarkProtocol(err error, msg string) error {
	if err == nil {
		return nil
	}
	return WithHint(Mark(Wrap(err, msg), ErrProtocol), "restart the kernel with :reset")
}

// MarkProcess wraps err with msg and classifies it as a process error.
func MarkProcess(err error, msg string) error {
	if err == nil {
		return nil
	}
	return WithHint(Mark(Wrap(err, msg), ErrProcess), "restart the kernel with :reset")
}
