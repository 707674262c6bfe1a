package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes surfaced to callers.
const (
	CodeUnknownSpell        = "UNKNOWN_SPELL"
	CodeUnknownWand         = "UNKNOWN_WAND"
	CodeUnknownToggleKey    = "UNKNOWN_TOGGLE_KEY"
	CodeInvalidSlotKey      = "INVALID_SLOT_KEY"
	CodeSpellNotBound       = "SPELL_NOT_BOUND"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeMigrationInProgress = "MIGRATION_IN_PROGRESS"
	CodeMigrationFailed     = "MIGRATION_FAILED"
	CodeValidation          = "VALIDATION_ERROR"
	CodeRateLimited         = "RATE_LIMITED"
	CodeDuplicate           = "DUPLICATE_INTENT"
	CodeOnCooldown          = "ON_COOLDOWN"
	CodeInternal            = "INTERNAL_ERROR"
)

// Standard domain error constructors.

func ErrUnknownSpell(id string) *AppError {
	return &AppError{Code: CodeUnknownSpell, Message: fmt.Sprintf("unknown spell: %s", id), Status: 404}
}

func ErrUnknownWand(id string) *AppError {
	return &AppError{Code: CodeUnknownWand, Message: fmt.Sprintf("unknown wand: %s", id), Status: 404}
}

func ErrUnknownToggleKey(key string) *AppError {
	return &AppError{Code: CodeUnknownToggleKey, Message: fmt.Sprintf("unknown toggle key: %s", key), Status: 400}
}

func ErrInvalidSlotKey(key string) *AppError {
	return &AppError{Code: CodeInvalidSlotKey, Message: fmt.Sprintf("invalid slot key: %q", key), Status: 400}
}

func ErrSpellNotBound(spellID string) *AppError {
	return &AppError{Code: CodeSpellNotBound, Message: fmt.Sprintf("spell %s is not bound to this wand", spellID), Status: 409}
}

func ErrPermissionDenied(node string) *AppError {
	return &AppError{Code: CodePermissionDenied, Message: fmt.Sprintf("missing permission %s", node), Status: 403}
}

func ErrMigrationInProgress() *AppError {
	return &AppError{Code: CodeMigrationInProgress, Message: "state migration in progress, try again shortly", Status: 503}
}

func ErrMigrationFailed(cause error) *AppError {
	return &AppError{Code: CodeMigrationFailed, Message: "state migration failed, manual intervention required", Status: 503, Cause: cause}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrDuplicate(intentID string) *AppError {
	return &AppError{Code: CodeDuplicate, Message: fmt.Sprintf("intent already processed: %s", intentID), Status: 200}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
