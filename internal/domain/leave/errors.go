package leave

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient leave balance")
	ErrUnauthorized        = errors.New("actor not permitted")
	ErrAlreadyProcessed    = errors.New("request already processed")
	ErrConflict            = errors.New("concurrent update conflict")
)

// PolicyViolationError reports which policy rule an application broke, so
// transports can surface the rule name alongside the message.
type PolicyViolationError struct {
	Rule   string
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return e.Detail
}

func violation(rule, format string, args ...any) error {
	return &PolicyViolationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

func IsPolicyViolation(err error) bool {
	var pv *PolicyViolationError
	return errors.As(err, &pv)
}
