package llm

import "fmt"

// BackendError is a non-2xx response from a reasoning backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("reasoning backend error %d: %s", e.StatusCode, e.Message)
}

func IsRateLimit(err error) bool {
	if be, ok := err.(*BackendError); ok {
		return be.StatusCode == 429
	}
	return false
}

func IsAuth(err error) bool {
	if be, ok := err.(*BackendError); ok {
		return be.StatusCode == 401 || be.StatusCode == 403
	}
	return false
}
