package query

import (
	"errors"
	"fmt"

	"github.com/gltg/bmp-api/internal/schema"
)

// UnknownFieldError is returned when a filter, group, aggregate or partition
// names a field the schema does not register.
type UnknownFieldError = schema.UnknownFieldError

// UnsupportedOperatorError is returned when an operator is unknown or not
// legal for the field's type.
type UnsupportedOperatorError struct {
	Field    string
	Operator Operator
	Type     schema.FieldType
}

func (e *UnsupportedOperatorError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("unsupported operator %q on field %s", e.Operator, e.Field)
	}
	return fmt.Sprintf("operator %q is not supported for %s field %s", e.Operator, e.Type, e.Field)
}

// MalformedFilterError is returned for structurally invalid filter trees and
// for values that do not fit the field.
type MalformedFilterError struct {
	Reason string
}

func (e *MalformedFilterError) Error() string {
	return "malformed filter: " + e.Reason
}

// DuplicateAliasError is returned when two output columns share a name.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("duplicate output column %q", e.Alias)
}

// UnsupportedAggregateError is returned for unknown aggregate functions or
// functions not defined for the field's type.
type UnsupportedAggregateError struct {
	Spec     string
	Function string
	Reason   string
}

func (e *UnsupportedAggregateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported aggregate %q: %s", e.Spec, e.Reason)
	}
	return fmt.Sprintf("unsupported aggregate function %q in %q", e.Function, e.Spec)
}

// UnknownOrderKeyError is returned when an order token matches neither an
// output field nor an aggregate alias.
type UnknownOrderKeyError struct {
	Key string
}

func (e *UnknownOrderKeyError) Error() string {
	return fmt.Sprintf("unknown order key %q", e.Key)
}

// InvalidPageRequestError is returned for page numbers below 1 and for
// non-integer page or limit values.
type InvalidPageRequestError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidPageRequestError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

// NotFoundError is returned by single item lookups that match no row.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// ExecutionError wraps a backing store failure.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Execution wraps err as an ExecutionError unless it already carries an
// engine classification.
func Execution(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) {
		return err
	}
	var exec *ExecutionError
	if errors.As(err, &exec) {
		return err
	}
	return &ExecutionError{Op: op, Err: err}
}

// IsClientError reports whether err is a validation fault caused by caller
// input. Such errors are raised before any store access and should not be
// retried.
func IsClientError(err error) bool {
	var (
		unknownField *UnknownFieldError
		operator     *UnsupportedOperatorError
		malformed    *MalformedFilterError
		dupAlias     *DuplicateAliasError
		aggregate    *UnsupportedAggregateError
		orderKey     *UnknownOrderKeyError
		pageReq      *InvalidPageRequestError
	)
	switch {
	case errors.As(err, &unknownField),
		errors.As(err, &operator),
		errors.As(err, &malformed),
		errors.As(err, &dupAlias),
		errors.As(err, &aggregate),
		errors.As(err, &orderKey),
		errors.As(err, &pageReq):
		return true
	}
	return false
}

// IsNotFound reports whether err is a single item lookup miss.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
