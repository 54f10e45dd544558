package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrStorage       = errors.New("storage failure")
	ErrSerialization = errors.New("serialization failure")
)

// Error carries one of the sentinel kinds above plus context.
// Match it with errors.Is(err, models.ErrNotFound) and friends.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func TaskNotFound(id int64) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("task %d", id)}
}

func StorageErr(msg string, cause error) error {
	return &Error{Kind: ErrStorage, Msg: msg, Cause: cause}
}

func SerializationErr(msg string, cause error) error {
	return &Error{Kind: ErrSerialization, Msg: msg, Cause: cause}
}
