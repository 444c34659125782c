package handler

import (
	"errors"
	"net/http"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// usecaseのエラーをHTTPに変換する出口。
// HTTPError はそのまま、sentinel は対応表で status と code を決める。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	switch {
	case errors.Is(err, usecase.ErrValidation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "VALIDATION_FAILED"})
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "UNAUTHORIZED"})
	case errors.Is(err, usecase.ErrSecurityIncident):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "SECURITY_INCIDENT"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "FORBIDDEN"})
	case errors.Is(err, usecase.ErrAccessDenied):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "ACCESS_DENIED"})
	case errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, usecase.ErrConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "CONFLICT"})
	case errors.Is(err, usecase.ErrProductUnavailable):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "PRODUCT_UNAVAILABLE"})
	case errors.Is(err, usecase.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "INSUFFICIENT_STOCK"})
	case errors.Is(err, usecase.ErrInvalidStatus):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "INVALID_STATUS"})
	case errors.Is(err, usecase.ErrInvalidEscrowTransition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "INVALID_ESCROW_TRANSITION"})
	case errors.Is(err, usecase.ErrRefundNotAllowed):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "REFUND_NOT_ALLOWED"})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
