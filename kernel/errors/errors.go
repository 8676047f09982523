// Package errors defines the error kinds the vm core distinguishes and a
// small wrapper type that carries a kind, the module that raised it, and
// (optionally) the underlying cause reported by a collaborator such as a
// block device or file handle.
//
// Unlike a freestanding kernel, this package can allocate, so causes are
// preserved with github.com/pkg/errors instead of collapsing to a bare
// string constant.
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind enumerates the error categories the core raises, matching spec §7.
type Kind uint8

const (
	// VaAlreadyMapped is raised by spt.Insert or Mmap when a VA collides
	// with an existing mapping.
	VaAlreadyMapped Kind = iota
	// NoSwapSpace is raised when the swap pool is exhausted.
	NoSwapSpace
	// NoPhysicalFrame is raised when frame allocation fails and no victim
	// could be evicted.
	NoPhysicalFrame
	// MmapArgsInvalid is raised when mmap arguments fail validation.
	MmapArgsInvalid
	// LazyLoadFailed is raised when an uninit page's initializer reports
	// failure.
	LazyLoadFailed
	// IllegalAccess is raised when a fault is outside the SPT and is not a
	// legitimate stack-growth candidate.
	IllegalAccess
)

func (k Kind) String() string {
	switch k {
	case VaAlreadyMapped:
		return "va_already_mapped"
	case NoSwapSpace:
		return "no_swap_space"
	case NoPhysicalFrame:
		return "no_physical_frame"
	case MmapArgsInvalid:
		return "mmap_args_invalid"
	case LazyLoadFailed:
		return "lazy_load_failed"
	case IllegalAccess:
		return "illegal_access"
	default:
		return "unknown"
	}
}

// Error is the core's error type. All errors surfaced from kernel/mem
// packages are *Error so callers that care can inspect Kind or Module
// without string matching.
type Error struct {
	// Module is the package that raised the error, e.g. "swap", "frame".
	Module string
	// Kind is the error category.
	Kind Kind
	// Message is a short human-readable description.
	Message string
	// cause is the underlying error from a collaborator, if any.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Module, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Module, e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the underlying collaborator
// error. *Error has no Cause method, so pkgerrors.Cause stops at the *Error
// itself.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an *Error with no underlying cause.
func New(module string, kind Kind, message string) *Error {
	return &Error{Module: module, Kind: kind, Message: message}
}

// Wrap builds an *Error that carries cause as its underlying reason. The
// cause is wrapped with pkgerrors.WithStack, so the error returned by Unwrap
// records the stack of the Wrap call (printed by %+v on that unwrapped
// error), even though the fault-handling edge only ever looks at the boolean
// success of an operation.
func Wrap(cause error, module string, kind Kind, message string) *Error {
	return &Error{Module: module, Kind: kind, Message: message, cause: pkgerrors.WithStack(cause)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
