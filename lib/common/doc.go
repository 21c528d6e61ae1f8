// Package common holds the pieces shared by every memdoc package: the coded
// Error type with its sentinels and the dragonboat logger factory used for
// all package loggers.
//
// Errors are created with NewError, NewErrorf or NewFieldError, which attach
// a stack trace through cockroachdb/errors. Callers classify them with
// errors.Is against a sentinel or with CodeOf:
//
//	if errors.Is(err, common.ErrUniqueConstraintViolation) {
//	    field := common.FieldOf(err)
//	    ...
//	}
//
// Loggers are obtained per package with logger.GetLogger(name) and configured
// centrally with InitLoggers.
package common
