package registry

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultInvokeTimeout bounds a single capability call.
	DefaultInvokeTimeout = 30 * time.Second
	// MaxResultBytes caps the result returned to the agent.
	MaxResultBytes = 64 * 1024
)

// Invoke runs a registered capability. Any failure inside the handler —
// error return, panic, timeout — comes back as an error, never as a crash.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	handler, err := r.lookupHandler(name)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, DefaultInvokeTimeout)
	defer cancel()

	type callResult struct {
		out string
		err error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- callResult{err: fmt.Errorf("capability %q panicked: %v", name, rec)}
			}
		}()
		out, err := handler(callCtx, args)
		done <- callResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return truncate(res.out), nil
	case <-callCtx.Done():
		return "", fmt.Errorf("capability %q timed out after %s", name, DefaultInvokeTimeout)
	}
}

func truncate(s string) string {
	if len(s) > MaxResultBytes {
		return s[:MaxResultBytes] + "\n[truncated: result exceeded size limit]"
	}
	return s
}
