package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/d2t/internal/shared"
	"golang.org/x/oauth2"
)

type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// errorBody covers the error payloads of both APIs: Discogs sends "message", Tidal sends "userMessage".
type errorBody struct {
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	SubStatus   int    `json:"subStatus"`
}

func (b errorBody) text() string {
	if b.UserMessage != "" {
		return b.UserMessage
	}
	return b.Message
}

// send executes req and decodes the JSON body into T when the response has one of the expected statuses.
func send[T any](c httpClient, service string, req *http.Request, expected ...int) (T, http.Header, error) {
	var out T

	res, err := c.Do(req)
	if err != nil {
		return out, nil, transportError(service, err)
	}
	defer res.Body.Close()

	bytes, err := io.ReadAll(res.Body)
	if err != nil {
		return out, res.Header, transportError(service, err)
	}

	if !expectedStatus(res.StatusCode, expected) {
		return out, res.Header, statusError(service, res, bytes)
	}

	if len(bytes) == 0 {
		return out, res.Header, nil
	}

	if err := json.Unmarshal(bytes, &out); err != nil {
		return out, res.Header, fmt.Errorf("%s: %w: failed to decode response: %v", service, shared.ErrAPIRequest, err)
	}

	return out, res.Header, nil
}

func expectedStatus(code int, expected []int) bool {
	if len(expected) == 0 {
		return code >= 200 && code < 300
	}
	for _, e := range expected {
		if code == e {
			return true
		}
	}
	return false
}

// statusError maps a non-success response onto the error taxonomy.
func statusError(service string, res *http.Response, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	msg := eb.text()
	if msg == "" {
		msg = strings.TrimSpace(http.StatusText(res.StatusCode))
	}

	switch code := res.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %s", service, shared.ErrAuthentication, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %s", service, shared.ErrNotFound, msg)
	case code == http.StatusConflict || code == http.StatusPreconditionFailed:
		// the playlist changed under us; a retry reads the new ETag
		return fmt.Errorf("%s: %w: status %d: %s", service, shared.ErrTransientNetwork, code, msg)
	case code == http.StatusTooManyRequests:
		return &shared.RateLimitError{Service: service, RetryAfter: retryAfter(res.Header.Get("Retry-After"))}
	case code >= 500:
		return fmt.Errorf("%s: %w: status %d: %s", service, shared.ErrTransientNetwork, code, msg)
	default:
		return fmt.Errorf("%s: %w: status %d: %s", service, shared.ErrAPIRequest, code, msg)
	}
}

// transportError classifies errors returned before any response was read.
func transportError(service string, err error) error {
	var re *oauth2.RetrieveError
	var ne net.Error

	switch {
	case errors.As(err, &re):
		return fmt.Errorf("%s: %w: token refresh failed: %v", service, shared.ErrAuthentication, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%s: %w: %v", service, shared.ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %v", service, shared.ErrTransientNetwork, err)
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
