package types

import (
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All packages MUST use these constants instead of hardcoded strings.
const (
	// Data (fatal, abort before training)
	ErrCodeMissingData  ErrorCode = "missing_data"
	ErrCodeEmptyDataset ErrorCode = "empty_dataset"

	// Model quality (warnings, output still emitted)
	ErrCodeDegenerateTree ErrorCode = "degenerate_tree"
	ErrCodeLowAccuracy    ErrorCode = "low_accuracy"

	// Validation
	ErrCodeValidationMaxDepth     ErrorCode = "validation_max_depth_out_of_range"
	ErrCodeValidationTestFraction ErrorCode = "validation_test_fraction_out_of_range"
	ErrCodeValidationThreshold    ErrorCode = "validation_accuracy_threshold_out_of_range"
	ErrCodeValidationFeatureSet   ErrorCode = "validation_invalid_feature_set"
	ErrCodeValidationDateRange    ErrorCode = "validation_date_range_invalid"
	ErrCodeValidationInvalidRow   ErrorCode = "validation_invalid_row"
	ErrCodeValidationRenderFormat ErrorCode = "validation_unknown_render_format"

	// Internal/Upstream
	ErrCodeInternalDB                   ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected           ErrorCode = "internal_unexpected_error"
	ErrCodeInternalDistillationMismatch ErrorCode = "internal_distillation_mismatch"
	ErrCodeInternalStorage              ErrorCode = "internal_storage_error"
	ErrCodeUpstreamWeatherArchive       ErrorCode = "upstream_weather_archive_unavailable"
	ErrCodeUpstreamUnavailable          ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited          ErrorCode = "upstream_rate_limited"
)

// IsWarning reports whether the code describes a condition that is surfaced
// alongside full output instead of aborting the run.
func (c ErrorCode) IsWarning() bool {
	return c == ErrCodeDegenerateTree || c == ErrCodeLowAccuracy
}

// IsValidation reports whether the code belongs to the validation family.
func (c ErrorCode) IsValidation() bool {
	return strings.HasPrefix(string(c), "validation_")
}

// AppError is the standard application error type used throughout the module.
// Fatal pipeline errors and pipeline warnings are both expressed as AppError so
// callers can inspect the Code with errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error must abort the run with no partial output.
func (e *AppError) IsFatal() bool {
	return !e.Code.IsWarning()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
