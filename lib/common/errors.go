package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

// Code classifies every failure returned by the engine
type Code uint64

const (
	CodeOK                        Code = iota // 0: no error
	CodeInternal                              // 1: unexpected failure inside the engine
	CodeMissingPrimaryKey                     // 2: document lacks the collection's primary key field
	CodeDuplicateKey                          // 3: a live record with the same primary key exists
	CodeUniqueConstraintViolation             // 4: a unique field value is already held by another record
	CodeKeyNotFound                           // 5: no live record with the given primary key
	CodeTypeMismatch                          // 6: operand or key kind does not fit the stored kind
	CodeInvalidQuery                          // 7: malformed query specification
	CodeInvalidConfig                         // 8: invalid collection or command configuration
	CodeCollectionNotFound                    // 9: no collection with the given name in a database
	CodeClosed                                // 10: the collection or database was closed
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInternal:
		return "Internal"
	case CodeMissingPrimaryKey:
		return "MissingPrimaryKey"
	case CodeDuplicateKey:
		return "DuplicateKey"
	case CodeUniqueConstraintViolation:
		return "UniqueConstraintViolation"
	case CodeKeyNotFound:
		return "KeyNotFound"
	case CodeTypeMismatch:
		return "TypeMismatch"
	case CodeInvalidQuery:
		return "InvalidQuery"
	case CodeInvalidConfig:
		return "InvalidConfig"
	case CodeCollectionNotFound:
		return "CollectionNotFound"
	case CodeClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Code(%d)", uint64(c))
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by all engine operations. Field names the
// offending document field where one exists (the violated unique field, the
// primary key field, the queried field).
//
// Callers match on the code with errors.Is against the sentinels below or
// extract it with CodeOf.
type Error struct {
	Code  Code
	Field string
	Msg   string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("memdoc: %s on field %q: %s", e.Code, e.Field, e.Msg)
	case e.Field != "":
		return fmt.Sprintf("memdoc: %s on field %q", e.Code, e.Field)
	case e.Msg != "":
		return fmt.Sprintf("memdoc: %s: %s", e.Code, e.Msg)
	default:
		return fmt.Sprintf("memdoc: %s", e.Code)
	}
}

// Is reports whether target is an *Error with the same code. A target
// without a field matches any field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Field == "" || t.Field == e.Field)
}

// Sentinels for errors.Is
var (
	ErrMissingPrimaryKey         = &Error{Code: CodeMissingPrimaryKey}
	ErrDuplicateKey              = &Error{Code: CodeDuplicateKey}
	ErrUniqueConstraintViolation = &Error{Code: CodeUniqueConstraintViolation}
	ErrKeyNotFound               = &Error{Code: CodeKeyNotFound}
	ErrTypeMismatch              = &Error{Code: CodeTypeMismatch}
	ErrInvalidQuery              = &Error{Code: CodeInvalidQuery}
	ErrInvalidConfig             = &Error{Code: CodeInvalidConfig}
	ErrCollectionNotFound        = &Error{Code: CodeCollectionNotFound}
	ErrClosed                    = &Error{Code: CodeClosed}
)

// NewError creates an *Error with a stack trace attached
func NewError(code Code, msg string) error {
	return errors.WithStackDepth(&Error{Code: code, Msg: msg}, 1)
}

// NewErrorf is NewError with formatting
func NewErrorf(code Code, format string, args ...interface{}) error {
	return errors.WithStackDepth(&Error{Code: code, Msg: fmt.Sprintf(format, args...)}, 1)
}

// NewFieldError creates an *Error bound to a document field
func NewFieldError(code Code, field string, format string, args ...interface{}) error {
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return errors.WithStackDepth(&Error{Code: code, Field: field, Msg: msg}, 1)
}

// CodeOf extracts the code of err. Foreign errors map to CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// FieldOf returns the field of the *Error in err's chain, if any
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
