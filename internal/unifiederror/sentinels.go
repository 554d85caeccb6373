package unifiederror

import "errors"

// These sentinels are the classification vocabulary raw I/O-boundary code
// (internal/repository, internal/dbpool, internal/dailylimit) wraps its
// failures in via fmt.Errorf("...: %w", ErrX). Classify() walks this set to
// assign a Category/Severity without those packages needing to know the
// taxonomy themselves.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate entry")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrConnectionLost      = errors.New("connection lost")
	ErrTimeout             = errors.New("operation timed out")
	ErrValidation          = errors.New("validation failed")
	ErrConcurrency         = errors.New("concurrent modification conflict")
	ErrFileNotFound        = errors.New("file not found")
)

func isNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func isDuplicate(err error) bool           { return errors.Is(err, ErrDuplicate) }
func isForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
func isConnectionLost(err error) bool      { return errors.Is(err, ErrConnectionLost) }
func isTimeout(err error) bool             { return errors.Is(err, ErrTimeout) }
func isValidation(err error) bool          { return errors.Is(err, ErrValidation) }
func isConcurrency(err error) bool         { return errors.Is(err, ErrConcurrency) }
func isFileNotFound(err error) bool        { return errors.Is(err, ErrFileNotFound) }
