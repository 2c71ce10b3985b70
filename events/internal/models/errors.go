package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is a synchronous, non-retryable failure with an HTTP-style status code.
type ServiceError struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%d: %s", e.ErrorCode, e.ErrorMessage)
}

// NewValidationError returns a 400 ServiceError.
func NewValidationError(message string) *ServiceError {
	return &ServiceError{ErrorCode: http.StatusBadRequest, ErrorMessage: message}
}

// NewUnauthorizedError returns a 401 ServiceError.
func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{ErrorCode: http.StatusUnauthorized, ErrorMessage: message}
}

// NewNotFoundError returns a 404 ServiceError.
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{ErrorCode: http.StatusNotFound, ErrorMessage: message}
}

// AsServiceError reports whether err is (or wraps) a ServiceError.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// DeliveryError is returned when a webhook endpoint answers with a non-2xx status.
// The outbound worker treats it as transient and lets the queue redeliver.
type DeliveryError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
