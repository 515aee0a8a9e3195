package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrStaleStage indicates an advance that does not move strictly forward.
// It surfaces either a concurrency bug or a duplicate concurrent run and is
// never silently ignored.
var ErrStaleStage = errors.New("stale stage")

// ErrIO indicates the cache storage itself failed. Without durable caching
// the idempotence guarantee cannot be upheld, so callers abort the whole run
// rather than retrying per item.
var ErrIO = errors.New("cache storage error")

func staleStageError(fingerprint string, current, requested Stage) error {
	observed := string(current)
	if observed == "" {
		observed = "(absent)"
	}
	return fmt.Errorf("%w: fingerprint %s is at %s, refusing advance to %s",
		ErrStaleStage, shortFingerprint(fingerprint), observed, requested)
}

func ioError(operation string, err error) error {
	// A canceled caller is not a storage fault.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, operation, err)
}

func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
