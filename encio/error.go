package encio

import (
	"errors"
	"runtime"
)

// Error handling in bitshape separates bad data from misuse of the library.
// All data errors are wrapped in ValidationError and returned; they mean the input bytes cannot be decoded
// into the requested type, and nothing has been written to the destination.
// Error is used for programmer error: asking for a codec for a type that cannot be encoded, decoding into a borrowed view,
// or calling decode on input that was never validated. Error values are only ever raised by panic.
//
// Errors can be checked with
//
//	var valErr encio.ValidationError
//	if errors.As(err, &valErr) {
//		// handle bad input
//	}
//
// or against the sentinels below with errors.Is.
var (
	// ErrEOF is returned when the input ends before the value it should contain.
	ErrEOF = errors.New("unexpected end of input")

	// ErrInvalidBitPattern is returned when a value with a restricted domain (bool, Char) holds an impossible bit pattern.
	ErrInvalidBitPattern = errors.New("invalid bit pattern")

	// ErrLengthOverflow is returned when declared lengths overflow when summed or multiplied.
	ErrLengthOverflow = errors.New("length overflow")

	// ErrTooBig is returned when a declared size exceeds a configured sanity limit.
	ErrTooBig = errors.New("too big")

	// ErrTrailingBytes is returned when input remains after decoding a complete value.
	ErrTrailingBytes = errors.New("trailing bytes")

	// ErrMalformed is returned when framing data is impossible to decode.
	ErrMalformed = errors.New("malformed")

	// ErrBadType is raised when a type, where possible to detect, is wrong or cannot be encoded.
	// Due to the usage of unsafe.Pointer, it is not usually possible to detect incorrect types.
	// If this error is seen, it should be taken seriously; encoding of incorrect types has undefined behaviour.
	ErrBadType = errors.New("bad type")

	// ErrNilPointer is raised if a pointer that should not be nil is nil.
	ErrNilPointer = errors.New("nil pointer")

	// ErrNotDecodable is raised when decoding a type that only supports encoding.
	ErrNotDecodable = errors.New("not decodable")

	// ErrBadConfig is raised when a configuration cannot be used.
	ErrBadConfig = errors.New("bad config")
)

// NewValidationError returns a ValidationError wrapping err with the given message.
func NewValidationError(err error, message string) error {
	if err == nil {
		panic(NewError(errors.New("unknown error"), "trying to create new ValidationError", 1))
	}

	return ValidationError{
		Err:     err,
		Message: message,
	}
}

// ValidationError is returned when input data cannot be decoded.
type ValidationError struct {
	Err     error
	Message string
}

// Error implements error
func (e ValidationError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap implements errors's Unwrap()
func (e ValidationError) Unwrap() error {
	return e.Err
}

// NewError returns an Error wrapping err with message.
// The caller is filled with the name of the function skip frames above the caller of NewError.
func NewError(err error, message string, skip int) error {
	return Error{
		Err:     err,
		Message: message,
		Caller:  GetCaller(skip + 1),
	}
}

// Error describes misuse of the library. It is raised with panic, never returned from encode or decode.
type Error struct {
	Err     error
	Message string
	Caller  string
}

// Error implements error
func (e Error) Error() (str string) {
	if e.Caller != "" {
		str = e.Caller + ": "
	}

	str += e.Err.Error()

	if e.Message != "" {
		str += " (" + e.Message + ")"
	}

	return str
}

// Unwrap implements errors's Unwrap()
func (e Error) Unwrap() error {
	return e.Err
}

// GetCaller returns the name of the calling function, skipping skip functions.
// i.e. 0 writes the calling function, 1 the function calling that etc...
func GetCaller(skip int) string {
	pcs := make([]uintptr, 1)
	n := runtime.Callers(2+skip, pcs)
	if n != 1 {
		return "Unknown Function"
	}

	frames := runtime.CallersFrames(pcs)
	frame, _ := frames.Next()
	return frame.Function
}
