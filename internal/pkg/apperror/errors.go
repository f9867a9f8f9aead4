package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest           ErrorCode = "BAD_REQUEST"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation           ErrorCode = "INVALID_ARGUMENT"
	ErrCodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	ErrCodeIllegalTransition    ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeDuplicatePayment     ErrorCode = "DUPLICATE_PAYMENT"
	ErrCodeAlreadyAssigned      ErrorCode = "ALREADY_ASSIGNED"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"
	ErrCodePayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeIllegalTransition, ErrCodeDuplicateApplication,
		ErrCodeDuplicatePayment, ErrCodeAlreadyAssigned:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки приложения или пустую строку для чужих ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return IsCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return IsCode(err, ErrCodeValidation)
}

func IsConflict(err error) bool {
	return IsCode(err, ErrCodeConflict)
}

var (
	ErrJobNotFound          = New(ErrCodeNotFound, "заказ не найден")
	ErrApplicationNotFound  = New(ErrCodeNotFound, "отклик не найден")
	ErrPaymentNotFound      = New(ErrCodeNotFound, "платёж не найден")
	ErrDisputeNotFound      = New(ErrCodeNotFound, "спор не найден")
	ErrNotificationNotFound = New(ErrCodeNotFound, "уведомление не найдено")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrVersionConflict      = New(ErrCodeConflict, "заказ был изменён параллельно")
)
