package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrInvocation        = errors.New("agent invocation failed")
	ErrMalformedResponse = errors.New("malformed agent response")
	ErrEmptyAnswer       = errors.New("empty agent answer")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
