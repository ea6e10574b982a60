package errors

import "net/http"

const (
	CodeNoGoalSelected          = "no_goal_selected"
	CodeInvalidPomodoroSettings = "invalid_pomodoro_settings"
	CodeRecordingFailed         = "recording_failed"
	CodeGoalNotFound            = "goal_not_found"
	CodeSessionNotFound         = "session_not_found"
)

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	return New(http.StatusConflict, code, message).WithDetails(details)
}

// BadGateway reports a failed call to a backing store the client may retry.
func BadGateway(code, message string, details interface{}) *APIError {
	return New(http.StatusBadGateway, code, message).WithDetails(details)
}
