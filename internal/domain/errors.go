package domain

import (
	"errors"
	"strings"
)

// Kind - категория ошибки
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindFailure    Kind = "failure"
)

// Error - типизированная ошибка со стабильным кодом.
// Err хранит исходную причину только для логов и наружу не отдаётся.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с обёрнутыми копиями
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap возвращает копию ошибки с причиной
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Failure(code, message string, cause error) *Error {
	return &Error{Kind: KindFailure, Code: code, Message: message, Err: cause}
}

// Errors - список ошибок, возвращаемый вызывающей стороне
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func (es Errors) Unwrap() []error {
	errs := make([]error, 0, len(es))
	for _, e := range es {
		errs = append(errs, e)
	}
	return errs
}

// KindOf возвращает категорию ошибки; всё нетипизированное считается Failure
func KindOf(err error) Kind {
	var list Errors
	if errors.As(err, &list) && len(list) > 0 {
		return list[0].Kind
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFailure
}

// AsErrors приводит любую ошибку к списку типизированных ошибок
func AsErrors(err error) Errors {
	if err == nil {
		return nil
	}
	var list Errors
	if errors.As(err, &list) {
		return list
	}
	var e *Error
	if errors.As(err, &e) {
		return Errors{e}
	}
	return Errors{ErrInternal.Wrap(err)}
}

// Определение бизнес-ошибок
var (
	ErrDepartmentNotFound = NotFound("department.not_found", "department not found")
	ErrParentNotFound     = NotFound("department.parent.not_found", "parent department not found")
	ErrLocationNotFound   = NotFound("location.not_found", "one or more locations not found")
	ErrPositionNotFound   = NotFound("position.not_found", "one or more positions not found")

	ErrInvalidPath          = Validation("path.invalid", "path must consist of dot-separated [a-z0-9_] segments")
	ErrPathAlreadyDeleted   = Validation("path.deleted.already", "path is already marked as deleted")
	ErrPathNotDeleted       = Validation("path.deleted.missing", "path is not marked as deleted")
	ErrInvalidIdentifier    = Validation("department.identifier.invalid", "identifier must be 2-150 characters of [a-z0-9_] and must not use the reserved prefix")
	ErrDuplicateIdentifier  = Validation("department.identifier.duplicate", "department with this identifier already exists")
	ErrInvalidName          = Validation("department.name.invalid", "name must be 3-150 characters")
	ErrSelfReference        = Validation("department.move.self", "department cannot be its own parent")
	ErrCyclicMove           = Validation("department.move.cycle", "department cannot be moved under its own descendant")
	ErrDepartmentDeleted    = Validation("department.deleted", "department is already deleted")
	ErrDeletedLineage       = Validation("department.lineage.deleted", "department is under a deleted ancestor; move it to an active parent before deleting it")
	ErrEmptyLocationIDs     = Validation("department.locations.empty", "at least one location is required")
	ErrDuplicateLocationIDs = Validation("department.locations.duplicate", "location ids must be unique")
	ErrDuplicatePositionIDs = Validation("department.positions.duplicate", "position ids must be unique")

	ErrTransaction = Failure("transaction.failed", "transaction failed", nil)
	ErrPersistence = Failure("persistence.failed", "failed to persist changes", nil)
	ErrInternal    = Failure("internal", "internal error", nil)
)
