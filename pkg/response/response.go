package response

import (
	"errors"
	"net/http"

	"invoice-payment-service/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the payload carried under the "error" key of every failure.
type ErrorBody struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Details []apperror.FieldViolation `json:"details,omitempty"`
}

// ErrorResponse is the uniform error envelope: {"error": {"code", "message"}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// OK sends a 200 response with the resource as the body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with the resource as the body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorResponse{Error: ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}})
		return
	}

	// Unknown error -> 500
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
		Code:    apperror.CodeInternal,
		Message: "Internal server error",
	}})
}

// Abort writes the error response and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
