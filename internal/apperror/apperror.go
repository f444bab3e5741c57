package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUserInput  = errors.New("user input error")
	ErrPermission = errors.New("permission denied")
	ErrTransient  = errors.New("transient platform error")
	ErrInternal   = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // human-readable, safe to show the invoking user
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func UserInput(format string, args ...any) *AppError {
	return &AppError{Err: ErrUserInput, Message: fmt.Sprintf(format, args...)}
}

func Permission(message string) *AppError {
	return &AppError{Err: ErrPermission, Message: message}
}

func Transient(op string, cause error) *AppError {
	return &AppError{Err: ErrTransient, Message: fmt.Sprintf("%s failed: %v", op, cause)}
}

func Internal(op string, cause error) *AppError {
	return &AppError{Err: ErrInternal, Message: fmt.Sprintf("%s failed: %v", op, cause)}
}

// UserMessage returns a message suitable for replying to the invoking user.
// Transient and internal failures are reported generically; their details
// belong in logs, not in chat.
func UserMessage(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		switch {
		case errors.Is(app, ErrUserInput), errors.Is(app, ErrPermission):
			return app.Message
		}
	}
	return "Something went wrong. Please try again later."
}
