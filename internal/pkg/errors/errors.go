package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrUnavailable = errors.New("unavailable")
	ErrInternal    = errors.New("internal")

	ErrValidation    = errors.New("validation failed")
	ErrRemoteService = errors.New("remote service failed")
	ErrStorage       = errors.New("storage failed")
)

// ValidationError reports a malformed consultation record.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func NewValidationError(recordID, field, reason string) *ValidationError {
	return &ValidationError{RecordID: recordID, Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %q: %s %s", e.RecordID, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == ErrInvalid
}

// RemoteServiceError wraps any embedding or generation call failure.
type RemoteServiceError struct {
	Service string
	Err     error
}

func NewRemoteServiceError(service string, err error) *RemoteServiceError {
	return &RemoteServiceError{Service: service, Err: err}
}

func (e *RemoteServiceError) Error() string {
	if e.Err == nil {
		return e.Service + " call failed"
	}
	return e.Service + " call failed: " + e.Err.Error()
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

func (e *RemoteServiceError) Is(target error) bool {
	return target == ErrRemoteService
}

// StorageError wraps a local persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage " + e.Op + " failed"
	}
	return "storage " + e.Op + " failed: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsRemote(err error) bool {
	return errors.Is(err, ErrRemoteService)
}

func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
