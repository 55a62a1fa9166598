package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ErrFatalAPI marks provider errors that will fail every subsequent call
// (billing, exhausted quota, credentials). Batch runs stop on it instead of
// counting one error per record. Rate limiting is not fatal.
var ErrFatalAPI = errors.New("fatal LLM API error")

var fatalMarkers = []string{
	"credit balance",
	"insufficient_quota",
	"quota exceeded",
	"billing",
	"invalid api key",
	"invalid x-api-key",
	"incorrect api key",
	"authentication",
	"unauthorized",
}

// fatalStatus matches an HTTP 401 or 403 reported by a provider client, as in
// "status code: 401" or "HTTP 403".
var fatalStatus = regexp.MustCompile(`(?i)\b(?:status(?:\s+code)?|http)\W{0,3}40[13]\b`)

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}

	var lerr *llms.Error
	if errors.As(err, &lerr) {
		switch lerr.Code {
		case llms.ErrCodeAuthentication, llms.ErrCodeQuotaExceeded:
			return true
		case llms.ErrCodeRateLimit:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return false
	}
	if fatalStatus.MatchString(msg) {
		return true
	}
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
