package cirbuf

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Status is the error code kept in a sticky status register.
type Status uint8

// Status codes.
const (
	StatusNone Status = iota
	StatusOverflow
	StatusUnderflow
	StatusInvalidPort
	StatusBusy
	StatusNoResponse
	StatusCRCFailure
	StatusOutOfRange
	StatusDecode
	StatusInvalidSize
	StatusInvalidOp
)

var (
	// ErrOverflow indicates there is not enough free space for the write.
	ErrOverflow = errors.New("overflow")
	// ErrUnderflow indicates there is not enough data for the read.
	ErrUnderflow = errors.New("underflow")
	// ErrInvalidPort indicates a peripheral was bound to an invalid port.
	ErrInvalidPort = errors.New("invalid port")
	// ErrBusy indicates the requested resource is still in use.
	ErrBusy = errors.New("busy")
	// ErrNoResponse indicates the peer did not respond in time.
	ErrNoResponse = errors.New("no response")
	// ErrCRCFailure indicates a checksum mismatch.
	ErrCRCFailure = errors.New("crc failure")
	// ErrOutOfRange indicates an offset or argument out of range.
	ErrOutOfRange = errors.New("out of range")
	// ErrDecode indicates a malformed escape sequence.
	ErrDecode = errors.New("decode error")
	// ErrInvalidSize indicates a packet or destination of invalid size.
	ErrInvalidSize = errors.New("invalid size")
	// ErrInvalidOp indicates the operation is not supported by the buffer type.
	ErrInvalidOp = errors.New("invalid operation")
)

var statusErrors = [...]error{
	StatusNone:        nil,
	StatusOverflow:    ErrOverflow,
	StatusUnderflow:   ErrUnderflow,
	StatusInvalidPort: ErrInvalidPort,
	StatusBusy:        ErrBusy,
	StatusNoResponse:  ErrNoResponse,
	StatusCRCFailure:  ErrCRCFailure,
	StatusOutOfRange:  ErrOutOfRange,
	StatusDecode:      ErrDecode,
	StatusInvalidSize: ErrInvalidSize,
	StatusInvalidOp:   ErrInvalidOp,
}

// Err returns the sentinel error of the status, nil for StatusNone.
func (s Status) Err() error {
	if int(s) < len(statusErrors) {
		return statusErrors[s]
	}
	return nil
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == StatusNone {
		return "none"
	}
	if err := s.Err(); err != nil {
		return err.Error()
	}
	return "unknown"
}

// StatusOf maps an error, possibly wrapped, back to its Status.
// Unknown errors map to StatusNone.
func StatusOf(err error) Status {
	if err == nil {
		return StatusNone
	}
	cause := errors.Cause(err)
	for s, e := range statusErrors {
		if e != nil && e == cause {
			return Status(s)
		}
	}
	return StatusNone
}

// Register is a sticky status register. The most recent failure is kept
// until Clear is called. It can be set from either context.
type Register struct {
	v atomic.Uint32
}

// Get returns the current status.
func (r *Register) Get() Status {
	return Status(r.v.Load())
}

// Set records a status.
func (r *Register) Set(s Status) {
	r.v.Store(uint32(s))
}

// Clear resets the register to StatusNone.
func (r *Register) Clear() {
	r.v.Store(uint32(StatusNone))
}

// Fail records the status and returns its sentinel error.
func (r *Register) Fail(s Status) error {
	r.Set(s)
	return s.Err()
}
