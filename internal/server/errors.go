package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/resource"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeUnknownField    = "UNKNOWN_FIELD"
	CodeUnsupportedOp   = "UNSUPPORTED_OPERATOR"
	CodeMalformedFilter = "MALFORMED_FILTER"
	CodeDuplicateAlias  = "DUPLICATE_ALIAS"
	CodeUnsupportedAgg  = "UNSUPPORTED_AGGREGATE"
	CodeUnknownOrderKey = "UNKNOWN_ORDER_KEY"
	CodeInvalidPage     = "INVALID_PAGE_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeUnknownResource = "UNKNOWN_RESOURCE"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error onto an HTTP status and error code.
func classify(err error) (int, string) {
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
	)
	switch {
	case errors.As(err, &unknownField):
		return http.StatusBadRequest, CodeUnknownField
	case errors.As(err, &operator):
		return http.StatusBadRequest, CodeUnsupportedOp
	case errors.As(err, &malformed):
		return http.StatusBadRequest, CodeMalformedFilter
	case errors.As(err, &dupAlias):
		return http.StatusBadRequest, CodeDuplicateAlias
	case errors.As(err, &aggregate):
		return http.StatusBadRequest, CodeUnsupportedAgg
	case errors.As(err, &orderKey):
		return http.StatusBadRequest, CodeUnknownOrderKey
	case errors.As(err, &pageReq):
		return http.StatusBadRequest, CodeInvalidPage
	case errors.As(err, &notFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &unknownRes):
		return http.StatusNotFound, CodeUnknownResource
	}
	return http.StatusInternalServerError, CodeInternal
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logFor(c).Error("request failed", "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code})
}
