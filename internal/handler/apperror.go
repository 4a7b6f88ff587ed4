package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "Admin access required"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidSignature  = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrIPNotAllowed      = &AppError{http.StatusUnauthorized, "IP_NOT_ALLOWED", "Source address is not allowed"}
	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient wallet balance"}
	ErrPlanUnavailable   = &AppError{http.StatusUnprocessableEntity, "PLAN_UNAVAILABLE", "Plan is not available for purchase"}
	ErrNetworkMismatch   = &AppError{http.StatusUnprocessableEntity, "NETWORK_MISMATCH", "Plan does not belong to the requested network"}
	ErrUserExists        = &AppError{http.StatusConflict, "USER_ALREADY_EXISTS", "Email or username already registered"}
	ErrIdentityRequired  = &AppError{http.StatusUnprocessableEntity, "IDENTITY_REQUIRED", "BVN or NIN required for a static account"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
)
