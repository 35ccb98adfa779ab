package db

import "errors"

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func IsDuplicateKeyError(err error) bool {
	var e *DuplicateKeyError
	return errors.As(err, &e)
}

// Not found Error
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// PreconditionFailedError means a guarded update matched no document:
// either the document is missing or its current state was not among the
// qualified previous states (insufficient funds, wrong lifecycle state).
type PreconditionFailedError struct {
	Key     string
	Message string
}

func (e *PreconditionFailedError) Error() string {
	return e.Message
}

func IsPreconditionFailedError(err error) bool {
	var e *PreconditionFailedError
	return errors.As(err, &e)
}
