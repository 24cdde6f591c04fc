package corenet

import (
	"errors"
	"fmt"
)

// ErrorType classifies the origin of a SystemError, per the error
// taxonomy in spec 7.
type ErrorType string

const (
	// ErrTypeSystem covers OS socket and handle operations.
	ErrTypeSystem ErrorType = "system"
	// ErrTypeAddrInfo covers getaddrinfo/getnameinfo return codes.
	ErrTypeAddrInfo ErrorType = "addrinfo"
	// ErrTypeIOReturn covers macOS IOKit/IOBluetooth return codes.
	ErrTypeIOReturn ErrorType = "ioreturn"
	// ErrTypeTLS covers TLS state machine exceptions (handshake
	// failures, alerts, certificate validation).
	ErrTypeTLS ErrorType = "tls"
	// ErrTypeCancellation covers cancelIO-induced aborts.
	ErrTypeCancellation ErrorType = "cancellation"
)

// SystemError is the error surfaced on every failed Socket operation.
// It carries enough context (Op, Type, Code, wrapped cause) to let a
// caller distinguish cancellation from other failures without string
// matching, per spec 5 ("isCanceled(error)") and spec 7.
type SystemError struct {
	Op    string    // operation that failed ("connect", "recv", "sdpLookup", ...)
	Type  ErrorType // error category
	Code  int       // raw platform code (errno, Windows error, or IOReturn)
	Msg   string    // human-readable message
	Inner error     // wrapped cause, if any
}

func (e *SystemError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("corenet: %s: %s (type=%s code=%d)", e.Op, e.Msg, e.Type, e.Code)
	}
	return fmt.Sprintf("corenet: %s (type=%s code=%d)", e.Msg, e.Type, e.Code)
}

func (e *SystemError) Unwrap() error { return e.Inner }

// Is supports errors.Is against a zero-value-shaped SystemError used as
// a sentinel: two SystemErrors compare equal if Type and Code match.
func (e *SystemError) Is(target error) bool {
	var other *SystemError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type && e.Code == other.Code
}

// IsCanceled reports whether this error is the result of cancelIO,
// recognising WSA_OPERATION_ABORTED, ECANCELED and kIOReturnAborted
// uniformly (spec 5).
func (e *SystemError) IsCanceled() bool {
	if e == nil {
		return false
	}
	if e.Type == ErrTypeCancellation {
		return true
	}
	// kIOReturnAborted (0xE00002EB) read as the signed 32-bit IOReturn.
	if e.Type == ErrTypeIOReturn && int32(e.Code) == -0x1FFFFD15 {
		return true
	}
	return isCanceledCode(e.Code)
}

// NewSystemError builds a SystemError of the given type.
func NewSystemError(op string, typ ErrorType, code int, msg string) *SystemError {
	return &SystemError{Op: op, Type: typ, Code: code, Msg: msg}
}

// WrapSystemError wraps an arbitrary error as a SystemError, preserving
// cancellation detection via the platform error-code extractor.
func WrapSystemError(op string, typ ErrorType, inner error) *SystemError {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*SystemError); ok {
		return &SystemError{Op: op, Type: se.Type, Code: se.Code, Msg: se.Msg, Inner: se}
	}
	code := platformErrCode(inner)
	return &SystemError{Op: op, Type: typ, Code: code, Msg: inner.Error(), Inner: inner}
}

// NewCancellationError builds the SystemError a cancelled operation's
// CompletionResult carries.
func NewCancellationError(op string) *SystemError {
	return &SystemError{Op: op, Type: ErrTypeCancellation, Code: canceledCode(), Msg: "operation aborted"}
}

// IsFatal reports whether code is a fatal error as opposed to a
// platform "pending" pseudo-error (WSA_IO_PENDING, EINPROGRESS), per
// spec 7 item 2. isFatal(WSA_IO_PENDING) == false, isFatal(EINPROGRESS)
// == false, everything else (including cancellation) is fatal. The
// would-block codes EAGAIN and WSAEWOULDBLOCK also count as pending.
func IsFatal(code int) bool {
	return !isPendingCode(code)
}

// IsCanceled is the free-function form of (*SystemError).IsCanceled,
// usable on a plain error via errors.As.
func IsCanceled(err error) bool {
	var se *SystemError
	if errors.As(err, &se) {
		return se.IsCanceled()
	}
	return false
}

// TLSError is the distinct error flavor raised by the TLS client
// delegate's handshake/record-layer state machine (spec 4.4.4, 7).
type TLSError struct {
	Msg   string
	Inner error
}

func (e *TLSError) Error() string { return e.Msg }
func (e *TLSError) Unwrap() error { return e.Inner }

func newTLSError(msg string, inner error) *TLSError {
	return &TLSError{Msg: msg, Inner: inner}
}
