package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/meguminnnnnnnnn/go-openai"
	"google.golang.org/genai"
)

var (
	ErrOracleAuth        = errors.New("oracle authentication failed")
	ErrOracleQuota       = errors.New("oracle quota exceeded")
	ErrOracleRateLimited = errors.New("oracle rate limited")
	ErrOracleFailure     = errors.New("oracle failure")
)

var (
	// billing exhaustion only; gemini also says "quota" on per-minute limits
	quotaMarkers     = []string{"insufficient_quota", "billing", "credit balance"}
	rateMarkers      = []string{"rate limit", "rate_limit", "ratelimit", "too many requests", "resource_exhausted", "resource has been exhausted"}
	looseQuotaMarker = "quota"
	authMarkers      = []string{"api key", "api_key", "apikey", "unauthorized", "unauthenticated", "permission denied", "permission_denied", "invalid authentication"}

	rateStatusRe = regexp.MustCompile(`\b429\b`)
	authStatusRe = regexp.MustCompile(`\b40[13]\b`)
)

// classify maps a provider error onto one of the oracle sentinels. SDK error
// types are checked first; otherwise the message is inspected.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOracleAuth) || errors.Is(err, ErrOracleQuota) ||
		errors.Is(err, ErrOracleRateLimited) || errors.Is(err, ErrOracleFailure) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}
	msg := strings.ToLower(err.Error())
	if status, ok := statusCode(err); ok {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrOracleAuth, err)
		case http.StatusTooManyRequests:
			if containsAny(msg, quotaMarkers) {
				return fmt.Errorf("%w: %w", ErrOracleQuota, err)
			}
			return fmt.Errorf("%w: %w", ErrOracleRateLimited, err)
		}
	}
	switch {
	case containsAny(msg, quotaMarkers):
		return fmt.Errorf("%w: %w", ErrOracleQuota, err)
	case containsAny(msg, rateMarkers) || rateStatusRe.MatchString(msg):
		return fmt.Errorf("%w: %w", ErrOracleRateLimited, err)
	case strings.Contains(msg, looseQuotaMarker):
		return fmt.Errorf("%w: %w", ErrOracleQuota, err)
	case containsAny(msg, authMarkers) || authStatusRe.MatchString(msg):
		return fmt.Errorf("%w: %w", ErrOracleAuth, err)
	default:
		return fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}
}

// statusCode extracts the HTTP status from the provider SDK error types.
func statusCode(err error) (int, bool) {
	var gemErr genai.APIError
	if errors.As(err, &gemErr) && gemErr.Code > 0 {
		return gemErr.Code, true
	}
	var oaiErr *openaisdk.APIError
	if errors.As(err, &oaiErr) && oaiErr.HTTPStatusCode > 0 {
		return oaiErr.HTTPStatusCode, true
	}
	var oaiReqErr *openaisdk.RequestError
	if errors.As(err, &oaiReqErr) && oaiReqErr.HTTPStatusCode > 0 {
		return oaiReqErr.HTTPStatusCode, true
	}
	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) && claudeErr.StatusCode > 0 {
		return claudeErr.StatusCode, true
	}
	return 0, false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
