package handler

import (
	"account_service/internal/auth"
	"account_service/internal/policy"
	"account_service/internal/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Error: errMessage})
}

// errorCase maps a sentinel error to a status code and client-facing message.
type errorCase struct {
	err     error
	status  int
	message string
}

// Checked in order; the first errors.Is match wins.
var serviceErrorCases = []errorCase{
	{err: service.ErrDuplicateEmail, status: http.StatusConflict, message: "email already registered"},
	{err: auth.ErrInvalidCredentials, status: http.StatusUnauthorized, message: "invalid credentials"},
	{err: policy.ErrUnauthenticated, status: http.StatusUnauthorized, message: "authentication credentials were not provided or are invalid"},
	{err: policy.ErrForbidden, status: http.StatusForbidden, message: "you do not have permission to perform this action"},
	{err: service.ErrNotFound, status: http.StatusNotFound, message: "not found"},
	{err: auth.ErrTokenRevoked, status: http.StatusUnauthorized, message: "token revoked"},
	{err: auth.ErrTokenExpired, status: http.StatusUnauthorized, message: "token expired"},
	{err: auth.ErrInvalidToken, status: http.StatusBadRequest, message: "invalid token"},
}

// Bearer access tokens fail as 401 whatever the reason.
var accessTokenErrorCases = []errorCase{
	{err: auth.ErrTokenExpired, status: http.StatusUnauthorized, message: "access token expired"},
	{err: auth.ErrInvalidToken, status: http.StatusUnauthorized, message: "invalid access token"},
	{err: policy.ErrUnauthenticated, status: http.StatusUnauthorized, message: "authentication credentials were not provided or are invalid"},
}

// respondWithMappedError writes the mapped response for err. Anything
// unmapped is logged and reported as a generic 500.
func respondWithMappedError(c *gin.Context, log *slog.Logger, err error, cases []errorCase) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		newErrorResponse(c, http.StatusBadRequest, vErr.Error())
		return
	}

	for _, cs := range cases {
		if errors.Is(err, cs.err) {
			newErrorResponse(c, cs.status, cs.message)
			return
		}
	}

	log.Error("request failed", slog.Any("error", err))
	newErrorResponse(c, http.StatusInternalServerError, "internal error")
}
