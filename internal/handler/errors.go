package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/domain/order"
)

// Machine-readable error codes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeDuplicateOrder  = "DUPLICATE_ORDER"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError maps a domain error to its HTTP status and body. Unexpected
// errors are logged and answered with a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  CodeValidation,
			Fields: verr.Fields,
		})
	case errors.Is(err, errMalformedBody):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   CodeValidation,
			Message: errMalformedBody.Error(),
		})
	case errors.Is(err, order.ErrDuplicateOrder):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   CodeDuplicateOrder,
			Message: "an order from this mobile number is still being processed",
		})
	case errors.Is(err, admin.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   CodeUnauthenticated,
			Message: "invalid username or password",
		})
	case errors.Is(err, admin.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: CodeUnauthenticated})
	case errors.Is(err, order.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: CodeNotFound})
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: CodeInternal})
	}
}

func fieldError(field, msg string) error {
	return &order.ValidationError{Fields: map[string]string{field: msg}}
}
