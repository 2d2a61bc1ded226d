// Package runaccess gives CLI commands one view of ledger runs whether a
// daemon is serving them or the ledger is opened directly.
package runaccess

import (
	"context"

	"sodareplay/internal/api"
)

// Access provides run operations regardless of daemon or direct ledger backing.
type Access interface {
	List(ctx context.Context, limit int) ([]api.Run, error)
	Describe(ctx context.Context, id string) (*api.RunResponse, error)
	Retry(ctx context.Context, id string) (*api.AssetsResponse, error)
}

// NewClientAccess returns an Access backed by the daemon HTTP API.
func NewClientAccess(client *api.Client) Access {
	return &clientAccess{client: client}
}

// NewServiceAccess returns an Access backed by a local run service.
func NewServiceAccess(svc *api.RunService) Access {
	return svc
}

type clientAccess struct {
	client *api.Client
}

func (a *clientAccess) List(ctx context.Context, limit int) ([]api.Run, error) {
	return a.client.Runs(ctx, limit)
}

func (a *clientAccess) Describe(ctx context.Context, id string) (*api.RunResponse, error) {
	return a.client.Run(ctx, id)
}

func (a *clientAccess) Retry(ctx context.Context, id string) (*api.AssetsResponse, error) {
	return a.client.Retry(ctx, id)
}
