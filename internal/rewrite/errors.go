package rewrite

import "fmt"

// RequestError reports a failed rewrite-backend request: either a non-success
// HTTP status or a transport-level failure (StatusCode 0). Terminal for a
// single rewrite attempt; the caller decides whether to retry the cycle.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("rewrite request failed: %s", e.Body)
	}
	return fmt.Sprintf("rewrite request failed: status %d: %s", e.StatusCode, e.Body)
}

// InvalidResponseError reports a success response that is missing the
// expected message content.
type InvalidResponseError struct {
	Detail string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid rewrite response: %s", e.Detail)
}
