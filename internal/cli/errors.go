package cli

import (
	"errors"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/resource"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by agents.
const (
	ErrConfigInvalid = "CONFIG_INVALID"

	// Resource errors
	ErrResourceNotFound = "RESOURCE_NOT_FOUND"
	ErrObjectNotFound   = "OBJECT_NOT_FOUND"

	// Query errors
	ErrUnknownField      = "UNKNOWN_FIELD"
	ErrQueryInvalid      = "QUERY_INVALID"
	ErrInvalidPage       = "INVALID_PAGE_REQUEST"
	ErrUnknownOrderKey   = "UNKNOWN_ORDER_KEY"
	ErrInvalidAggregate  = "INVALID_AGGREGATE"
	ErrUnsupportedFilter = "UNSUPPORTED_FILTER"

	// Database and file errors
	ErrDatabaseError = "DATABASE_ERROR"
	ErrFileReadError = "FILE_READ_ERROR"

	// Input errors
	ErrInvalidInput = "INVALID_INPUT"

	ErrInternal = "INTERNAL_ERROR"
)

// classifyError maps an error onto a stable code and a hint for fixing it.
func classifyError(err error) (code, suggestion string) {
	var (
		unknownField *query.UnknownFieldError
		operator     *query.UnsupportedOperatorError
		malformed    *query.MalformedFilterError
		dupAlias     *query.DuplicateAliasError
		aggregate    *query.UnsupportedAggregateError
		orderKey     *query.UnknownOrderKeyError
		pageReq      *query.InvalidPageRequestError
		notFound     *query.NotFoundError
		unknownRes   *resource.UnknownResourceError
		execErr      *query.ExecutionError
	)
	switch {
	case errors.As(err, &unknownRes):
		return ErrResourceNotFound, "Run 'bmp resources' to list resources"
	case errors.As(err, &unknownField):
		return ErrUnknownField, "Run 'bmp resources' to see fields and filter parameters"
	case errors.As(err, &orderKey):
		return ErrUnknownOrderKey, "Order by an output column: a field, a group-by field, or an aggregate alias"
	case errors.As(err, &aggregate), errors.As(err, &dupAlias):
		return ErrInvalidAggregate, "Aggregates look like <field>-<function>, e.g. applied_amount-sum"
	case errors.As(err, &operator), errors.As(err, &malformed):
		return ErrUnsupportedFilter, ""
	case errors.As(err, &pageReq):
		return ErrInvalidPage, "page must be at least 1 and limit must be an integer"
	case errors.As(err, &notFound):
		return ErrObjectNotFound, ""
	case errors.As(err, &execErr):
		return ErrDatabaseError, "Check the database settings with 'bmp config show'"
	case query.IsClientError(err):
		return ErrQueryInvalid, ""
	}
	return ErrInternal, ""
}
