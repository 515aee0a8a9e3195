package services

import (
	"fmt"
	"net/http"
	"strings"
)

// ClassifyHTTPStatus maps a non-2xx response to the retry taxonomy: rate
// limits and server errors are transient, everything else permanent.
func ClassifyHTTPStatus(service string, status int, body []byte) error {
	detail := fmt.Sprintf("http %d: %s", status, SummarizeBody(body))
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return Wrap(ErrTransient, service, "request", detail, nil)
	}
	return Wrap(ErrPermanent, service, "request", detail, nil)
}

// SummarizeBody truncates a response body for inclusion in error messages.
func SummarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		return trimmed[:200] + "…"
	}
	return trimmed
}
