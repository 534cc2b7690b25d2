package auth

import (
	"context"
	"time"

	"github.com/marmos91/warden/pkg/models"
)

// DefaultTimeout bounds a single directory or host authentication attempt.
const DefaultTimeout = 10 * time.Second

// Provider is one authentication strategy.
//
// Thread safety: implementations must be safe for concurrent use.
type Provider interface {
	// Method identifies the provider.
	Method() models.Method

	// IsAvailable reports whether the provider can be used at all on this
	// platform with its current configuration.
	IsAvailable() bool

	// Authenticate reports whether password is valid for username.
	// It never returns an error: every failure mode is false.
	Authenticate(ctx context.Context, username, password string) bool
}

// runBounded runs fn in its own goroutine and waits at most timeout, or
// until ctx is done. On expiry it returns false; fn keeps running and is
// expected to release its own resources.
func runBounded(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) bool) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	result := make(chan bool, 1)
	go func() {
		defer cancel()
		result <- fn(ctx)
	}()

	select {
	case ok := <-result:
		return ok
	case <-ctx.Done():
		return false
	}
}
