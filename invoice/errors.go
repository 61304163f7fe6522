package invoice

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines invoice error kinds.
type ErrorKind string

const (
	KindParse         ErrorKind = "parse"
	KindSettingsFetch ErrorKind = "settings_fetch"
	KindRender        ErrorKind = "render"
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindCanceled      ErrorKind = "canceled"
	KindInternal      ErrorKind = "internal"
	KindNotImpl       ErrorKind = "not_implemented"
)

// InvoiceError wraps errors with a kind.
type InvoiceError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *InvoiceError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *InvoiceError) Unwrap() error {
	return e.Err
}

// NewError creates a new invoice error.
func NewError(kind ErrorKind, msg string, err error) *InvoiceError {
	return &InvoiceError{Kind: kind, Msg: msg, Err: err}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var invErr *InvoiceError
	if errors.As(err, &invErr) && invErr.Msg != "" {
		msg = invErr.Msg
	}

	switch kind {
	case KindParse:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("parse_error")
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindSettingsFetch:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("settings_fetch")
	case KindRender:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("render_error")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its invoice error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var invErr *InvoiceError
	if errors.As(err, &invErr) {
		return invErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}
