package runtime

import (
	"errors"
	"fmt"

	"github.com/chazu/sable/contract"
)

// ---------------------------------------------------------------------------
// Runtime errors (uses Go panic/recover for unwinding)
// ---------------------------------------------------------------------------

// Code classifies runtime errors raised by the core itself.
type Code uint8

const (
	CodeFault Code = iota
	CodeSlotNotFound
	CodeContractMismatch
	CodeTypeMismatch
	CodeDivideByZero
	CodeNotCallable
	CodeIndexOutOfRange
	CodeConstantAssignment
	CodeAwaitCancelled
	CodeAwaitTimeout
	CodeStructural
)

var codeNames = [...]string{
	CodeFault:              "fault",
	CodeSlotNotFound:       "slot not found",
	CodeContractMismatch:   "contract mismatch",
	CodeTypeMismatch:       "type mismatch",
	CodeDivideByZero:       "divide by zero",
	CodeNotCallable:        "not callable",
	CodeIndexOutOfRange:    "index out of range",
	CodeConstantAssignment: "constant assignment",
	CodeAwaitCancelled:     "await cancelled",
	CodeAwaitTimeout:       "await timeout",
	CodeStructural:         "structural error",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown error"
}

// Error is the script value representing a runtime error. It is also a Go
// error so hosts can inspect it with errors.As.
type Error struct {
	Code    Code
	Message string
}

// Errorf builds an error value.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (*Error) Contract() contract.Contract { return contract.Error }

func (e *Error) Error() string {
	return e.Code.String() + ": " + e.Message
}

func (e *Error) String() string { return e.Error() }

func (e *Error) GetMember(name string) (Value, bool) {
	switch name {
	case "message":
		return String(e.Message), true
	case "code":
		return String(e.Code.String()), true
	}
	return nil, false
}

// Thrown is panicked when a script value is thrown. Try blocks and
// Program.Run recover it; anything else passes through untouched.
type Thrown struct {
	Value Value
}

func (t *Thrown) Error() string {
	return "unhandled: " + Format(t.Value)
}

// Unwrap exposes a thrown *Error to errors.As.
func (t *Thrown) Unwrap() error {
	if e, ok := t.Value.(*Error); ok {
		return e
	}
	return nil
}

// Throw raises v as a script error.
func Throw(v Value) {
	panic(&Thrown{Value: v})
}

// Faultf raises a runtime error with the given code.
func Faultf(code Code, format string, args ...any) {
	Throw(Errorf(code, format, args...))
}

// Check throws err if it is non-nil. Errors that are not script values are
// wrapped as structural errors.
func Check(err error) {
	if err == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		Throw(e)
	}
	var t *Thrown
	if errors.As(err, &t) {
		panic(t)
	}
	Throw(&Error{Code: CodeStructural, Message: err.Error()})
}

// Protect runs fn and converts a thrown script error into a Go error.
// Other panics propagate.
func Protect(fn func() Value) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(*Thrown); ok {
				v, err = nil, t
				return
			}
			panic(r)
		}
	}()
	return fn(), nil
}
