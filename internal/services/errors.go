package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: rate limits, timeouts,
	// upstream 5xx responses.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that retrying cannot fix: rejected
	// input, content policy refusals, 4xx responses.
	ErrPermanent = errors.New("permanent failure")
	// ErrValidation marks pre-call input validation failures. Always permanent.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes service context while tagging it
// with the provided marker for later retry classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, service, operation, message string, err error) error {
	detail := buildDetail(service, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether an error is classified as retryable.
// Unclassified errors are treated as transient so an unexpected network
// hiccup does not permanently fail an item.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}

// IsPermanent reports whether an error is classified as non-retryable.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}

func buildDetail(service, operation, message string) string {
	parts := make([]string, 0, 3)
	if service = strings.TrimSpace(service); service != "" {
		parts = append(parts, service)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
