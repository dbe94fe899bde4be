// Package health builds the /healthz dependency checks.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/hellofresh/health-go/v5"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Endpoints are the dependencies to check. Nil entries are skipped.
type Endpoints struct {
	SessionStore Pinger
	Upstream     Pinger
}

// NewHealthHandler registers a check per dependency. A failing session store
// makes the service unavailable; a failing upstream only degrades it, since
// catalog reads still serve cached data.
func NewHealthHandler(version string, endpoints *Endpoints) (*health.Health, error) {
	var checks []health.Config
	if endpoints.SessionStore != nil {
		checks = append(checks, health.Config{
			Name:      "session-store",
			Timeout:   2 * time.Second,
			SkipOnErr: false,
			Check: func(ctx context.Context) error {
				if err := endpoints.SessionStore.Ping(ctx); err != nil {
					return fmt.Errorf("session store unreachable: %w", err)
				}
				return nil
			},
		})
	}
	if endpoints.Upstream != nil {
		checks = append(checks, health.Config{
			Name:      "commerce-api",
			Timeout:   5 * time.Second,
			SkipOnErr: true,
			Check: func(ctx context.Context) error {
				if err := endpoints.Upstream.Ping(ctx); err != nil {
					return fmt.Errorf("commerce api unreachable: %w", err)
				}
				return nil
			},
		})
	}

	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    "storefront-proxy",
			Version: version,
		}),
		health.WithSystemInfo(),
		health.WithChecks(checks...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}
	return h, nil
}
