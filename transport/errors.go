package transport

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// errorFromResponse builds a *llmprovider.ProviderError from a non-2xx
// response. The body is parsed for the three vendor error shapes:
//
//	OpenAI:    {"error": {"message", "type", "code"}}
//	Anthropic: {"type": "error", "error": {"type", "message"}}
//	Gemini:    {"error": {"code", "message", "status"}}
func errorFromResponse(provider string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &llmprovider.TransportError{Provider: provider, Err: fmt.Errorf("read error response: %w", err)}
	}

	perr := &llmprovider.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		RetryAfter: retryAfter(resp.Header),
		Retryable:  retryableStatus(resp.StatusCode),
	}

	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		perr.Message = firstString(parsed, "error.message", "message", "error")
		perr.Code = firstString(parsed, "error.type", "error.status", "error.code", "code")
	}
	if perr.Message == "" {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		perr.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		perr.Err = llmprovider.ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		perr.Err = llmprovider.ErrRateLimited
	}
	return perr
}

func firstString(parsed gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := parsed.Get(path); v.Exists() && v.Type != gjson.JSON && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// retryableStatus covers timeouts, conflicts, rate limits, server errors and
// Anthropic's 529 overloaded.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests, 529:
		return true
	}
	return code >= 500
}

// retryAfter reads the Retry-After hint: "retry-after-ms" when present,
// otherwise Retry-After in seconds or as an HTTP date.
func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After-Ms"); v != "" {
		if ms, err := strconv.ParseFloat(v, 64); err == nil && ms > 0 {
			return time.Duration(ms * float64(time.Millisecond))
		}
	}

	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(v, 64); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}
