package internal

import (
	"context"
	"sync"
)

// ConnectionManager runs one-time connection setup safely under concurrency.
// The first caller executes the function; everyone else blocks until it
// finishes and then observes the same result.
type ConnectionManager struct {
	once  sync.Once
	err   error
	ready chan struct{}
}

// NewConnectionManager creates a ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{ready: make(chan struct{})}
}

// Initialize runs fn exactly once, using the context of the first call.
func (cm *ConnectionManager) Initialize(ctx context.Context, fn func(context.Context) error) error {
	cm.once.Do(func() {
		cm.err = fn(ctx)
		close(cm.ready)
	})

	<-cm.ready
	return cm.err
}

// IsInitialized reports whether initialization has completed.
func (cm *ConnectionManager) IsInitialized() bool {
	select {
	case <-cm.ready:
		return true
	default:
		return false
	}
}

// Error returns the initialization result without triggering initialization.
func (cm *ConnectionManager) Error() error {
	select {
	case <-cm.ready:
		return cm.err
	default:
		return nil
	}
}
