package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"invoice-payment-service/internal/adapter/http/dto"
	"invoice-payment-service/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes the request body into dst and trims its string fields.
// Decoding failures are reported as AppErrors.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var (
			maxErr  *http.MaxBytesError
			typeErr *json.UnmarshalTypeError
		)
		switch {
		case errors.As(err, &maxErr):
			return apperror.ErrPayloadTooLarge()
		case errors.Is(err, io.EOF):
			return apperror.Validation("Request body is required")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			reason := fmt.Sprintf("must be of type %s", typeErr.Type)
			return apperror.Validation(typeErr.Field+" "+reason,
				apperror.FieldViolation{Field: typeErr.Field, Reason: reason})
		default:
			return apperror.Validation("Request body must be valid JSON")
		}
	}
	dto.SanitizeStruct(dst)
	return nil
}
