package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and job records.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeTimeout           = "RENDER_TIMEOUT"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeOutputUnavailable = "OUTPUT_UNAVAILABLE"
	ErrCodeRobotsDisallowed  = "ROBOTS_DISALLOWED"
	ErrCodeCanceled          = "JOB_CANCELED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses and job records.
type ErrorDetail struct {
	Code    string `json:"code" bson:"code"`
	Message string `json:"message" bson:"message"`
}

// HarvestError is a job-level (structural) failure carrying an error code.
// Per-resource failures never become a HarvestError.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *HarvestError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsHarvestError returns err as a *HarvestError, wrapping unknown errors
// as INTERNAL_ERROR.
func AsHarvestError(err error) *HarvestError {
	var he *HarvestError
	if errors.As(err, &he) {
		return he
	}
	return NewHarvestError(ErrCodeInternal, err.Error(), err)
}
