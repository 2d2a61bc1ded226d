package runaccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sodareplay/internal/api"
)

const probeTimeout = 2 * time.Second

// Session represents a run access handle and its cleanup function.
type Session struct {
	Access Access
	// Remote is set when a daemon serves the session.
	Remote bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// LocalOpener opens a run service over the ledger and returns its cleanup.
type LocalOpener func() (*api.RunService, func() error, error)

// OpenWithFallback uses the daemon when it answers a status probe, and the
// local ledger otherwise. A daemon that answers with an HTTP error (for
// example a rejected token) is still used so the error reaches the caller.
func OpenWithFallback(ctx context.Context, client *api.Client, openLocal LocalOpener) (Session, error) {
	if client != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := client.Status(probeCtx)
		cancel()
		var apiErr *api.Error
		if err == nil || errors.As(err, &apiErr) {
			return Session{Access: NewClientAccess(client), Remote: true}, nil
		}
	}

	if openLocal == nil {
		return Session{}, fmt.Errorf("open ledger: no local opener configured")
	}
	svc, closeFn, err := openLocal()
	if err != nil {
		return Session{}, fmt.Errorf("open ledger: %w", err)
	}
	return Session{Access: NewServiceAccess(svc), close: closeFn}, nil
}
