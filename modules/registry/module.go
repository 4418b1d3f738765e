package registry

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the connection registry and closes every live connection on shutdown.
type Module struct {
	registry *Registry
	logger   types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new registry module.
func NewModule(members MembershipChecker, logger types.Logger) *Module {
	return &Module{
		registry: New(members),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "registry"
}

// Start is a no-op; connections register as clients arrive.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Registry module started")
	return nil
}

// Stop closes all registered connections.
func (m *Module) Stop(_ context.Context) error {
	closed := m.registry.CloseAll()
	m.logger.Info("Registry module stopped", "closedConnections", closed)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":  m.registry.Count(),
			"active_rooms": m.registry.ActiveRooms(),
		},
	}
}

// GetRegistry returns the registry for the chat and api modules.
func (m *Module) GetRegistry() *Registry {
	return m.registry
}
