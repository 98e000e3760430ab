package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNoMoreQuestions means the attempt has no unanswered question left.
	ErrNoMoreQuestions = errors.New("no more questions")

	// ErrRejected matches every 4xx APIError.
	ErrRejected = errors.New("request rejected by server")

	// ErrUnavailable matches transport failures and 5xx responses.
	ErrUnavailable = errors.New("server unavailable")
)

// APIError is a non-2xx response. Message is what the server said, suitable
// for showing to the user as is.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Status >= 400 && e.Status < 500
	case ErrUnavailable:
		return e.Status >= 500
	default:
		return false
	}
}

// IsRetryable reports whether repeating the same request later may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func newAPIError(resp *resty.Response) *APIError {
	body := resp.Body()
	return &APIError{
		Status:  resp.StatusCode(),
		Message: errorMessage(resp.StatusCode(), body),
		Body:    body,
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// errorMessage extracts the human readable part of an error body. Backends
// answer with {"detail": ...}, {"message": ...}, {"error": ...} or a map of
// field errors.
func errorMessage(status int, body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"detail", "message", "error", "non_field_errors"} {
			if msg := flatten(fields[key]); msg != "" {
				return msg
			}
		}
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if msg := flatten(fields[key]); msg != "" {
				return key + ": " + msg
			}
		}
	}

	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) <= 200 {
		return msg
	}
	return http.StatusText(status)
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
