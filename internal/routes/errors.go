package routes

import (
	"errors"
	"net/http"
	"strings"

	"lototrak/internal/jwt"
	"lototrak/internal/locks"
	"lototrak/internal/storage"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side application
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

// Routes-specific errors (that don't conflict with other packages)
var (
	// Authentication errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authorization errors
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// Validation errors
	ErrInvalidRequest   = errors.New("invalid request")
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrEmailInUse       = errors.New("user already exists")

	// Internal errors
	ErrInternalServer     = errors.New("internal server error")
	ErrDatabaseError      = errors.New("database error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:      http.StatusBadRequest,
	ErrMissingParameter:    http.StatusBadRequest,
	ErrInvalidParameter:    http.StatusBadRequest,
	ErrEmailInUse:          http.StatusBadRequest,
	locks.ErrNoProcedures:  http.StatusBadRequest,
	locks.ErrCodeInUse:     http.StatusBadRequest,
	locks.ErrInvalidCode:   http.StatusBadRequest,
	locks.ErrInvalidStatus: http.StatusBadRequest,
	locks.ErrMissingFields: http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:       http.StatusUnauthorized,
	jwt.ErrNonValidToken:  http.StatusUnauthorized,
	ErrTokenExpired:       http.StatusUnauthorized,
	ErrInvalidCredentials: http.StatusUnauthorized,
	jwt.ErrInvalidNonce:   http.StatusUnauthorized,

	// 403 Forbidden
	ErrForbidden:               http.StatusForbidden,
	ErrInsufficientPermissions: http.StatusForbidden,
	locks.ErrForbidden:         http.StatusForbidden,

	// 404 Not Found
	ErrUserNotFound:     http.StatusNotFound,
	locks.ErrNotFound:   http.StatusNotFound,
	storage.ErrNotFound: http.StatusNotFound,

	// 500 Internal Server Error
	ErrInternalServer: http.StatusInternalServerError,
	ErrDatabaseError:  http.StatusInternalServerError,

	// 503 Service Unavailable
	ErrServiceUnavailable: http.StatusServiceUnavailable,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	// Authentication
	ErrUnauthorized: {
		Message:   "Authentication required",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	jwt.ErrNonValidToken: {
		Message:   "Invalid or expired authentication token",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},
	ErrTokenExpired: {
		Message:   "Authentication token has expired",
		StopCodes: []string{"AUTH_TOKEN_EXPIRED"},
	},
	ErrInvalidCredentials: {
		Message:   "Invalid credentials provided",
		StopCodes: []string{"AUTH_INVALID_CREDENTIALS"},
	},
	jwt.ErrInvalidNonce: {
		Message:   "Invalid or reused token",
		StopCodes: []string{"AUTH_INVALID_NONCE"},
	},

	// Authorization
	ErrForbidden: {
		Message:   "Access denied",
		StopCodes: []string{"FORBIDDEN"},
	},
	ErrInsufficientPermissions: {
		Message:   "You don't have permission to perform this action",
		StopCodes: []string{"INSUFFICIENT_PERMISSIONS"},
	},
	locks.ErrForbidden: {
		Message:   "Lock is not assigned to you",
		StopCodes: []string{"LOCK_NOT_YOURS"},
	},

	// Lock lifecycle
	locks.ErrNotFound: {
		Message:   "Lock not found",
		StopCodes: []string{"LOCK_NOT_FOUND"},
	},
	locks.ErrNoProcedures: {
		Message:   "No safety procedures defined for this lock",
		StopCodes: []string{"LOCK_NO_PROCEDURES"},
	},
	locks.ErrCodeInUse: {
		Message:   "Access code already in use",
		StopCodes: []string{"CODE_IN_USE"},
	},
	locks.ErrInvalidCode: {
		Message:   "Invalid access code format. Must be 4-16 alphanumeric characters, underscores, or hyphens.",
		StopCodes: []string{"CODE_INVALID"},
	},
	locks.ErrInvalidStatus: {
		Message:   "Invalid lock status",
		StopCodes: []string{"STATUS_INVALID"},
	},
	locks.ErrMissingFields: {
		Message:   "Missing required fields",
		StopCodes: []string{"MISSING_FIELDS"},
	},

	// Users
	ErrUserNotFound: {
		Message:   "User not found",
		StopCodes: []string{"USER_NOT_FOUND"},
	},
	ErrEmailInUse: {
		Message:   "User already exists",
		StopCodes: []string{"EMAIL_IN_USE"},
	},

	// Validation
	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	ErrMissingParameter: {
		Message:   "Required parameter is missing",
		StopCodes: []string{"MISSING_PARAMETER"},
	},
	ErrInvalidParameter: {
		Message:   "Invalid parameter value",
		StopCodes: []string{"INVALID_PARAMETER"},
	},

	// Internal (no stop codes for internal errors)
	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	ErrDatabaseError: {
		Message: "Database operation failed",
	},
	ErrServiceUnavailable: {
		Message: "Service is temporarily unavailable",
	},
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	// Check if it's already an HTTPError
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	// State machine and checklist violations carry their own detail
	var stateErr *locks.StateError
	var checklistErr *locks.ChecklistError
	if errors.As(err, &stateErr) || errors.As(err, &checklistErr) {
		return http.StatusBadRequest
	}

	// Check direct match
	if status, ok := errorStatusMap[err]; ok {
		return status
	}

	// Check if error wraps a known error
	for knownErr, status := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return status
		}
	}

	// Default to 500 Internal Server Error
	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	// Check if it's an HTTPError with custom info
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}

	// Lifecycle errors surface their detail verbatim: the blocking status or
	// the exact missing checklist labels.
	var stateErr *locks.StateError
	if errors.As(err, &stateErr) {
		return ErrorInfo{
			Message:   stateErr.Reason,
			StopCodes: []string{"LOCK_INVALID_STATE"},
		}
	}
	var checklistErr *locks.ChecklistError
	if errors.As(err, &checklistErr) {
		return ErrorInfo{
			Message:   "Missing safety checks: " + strings.Join(checklistErr.Missing, ", "),
			StopCodes: []string{"CHECKLIST_INCOMPLETE"},
		}
	}

	// Check direct match
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Check if error wraps a known error
	for knownErr, info := range errorInfoMap {
		if errors.Is(err, knownErr) {
			return info
		}
	}

	// For unknown errors, return a generic message for 5xx, specific for others
	status := GetErrorStatus(err)
	if status >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}

// GetErrorMessage returns a user-friendly message for an error
func GetErrorMessage(err error) string {
	return GetErrorInfo(err).Message
}

// GetErrorStopCodes returns stop codes for an error
func GetErrorStopCodes(err error) []string {
	return GetErrorInfo(err).StopCodes
}
