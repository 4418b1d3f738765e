package activity

import (
	"context"
	"fmt"

	"github.com/example/tournament-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module is an EventConsumerModule that keeps per-room activity stats from
// chat events.
type Module struct {
	stats  *Stats
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		stats:  NewStats(),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers registers event handlers for chat events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomReadV1, m.handleRoomRead, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomRead consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantAddedV1, m.handleParticipantAdded, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantAdded consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"MessageSent.v1", "RoomRead.v1", "ParticipantAdded.v1", "RoomCreated.v1"})
	return nil
}

// Event handlers

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.stats.RecordMessage(event.RoomID, event.Sequence, event.Evicted, event.Timestamp)
	if event.Evicted > 0 {
		m.logger.Warn("Connections evicted during fan-out",
			"roomID", event.RoomID,
			"sequence", event.Sequence,
			"evicted", event.Evicted)
	}
	return nil
}

func (m *Module) handleRoomRead(_ context.Context, event events.RoomReadEvent, _ *mono.Msg) error {
	m.stats.RecordRead(event.RoomID, event.Timestamp)
	return nil
}

func (m *Module) handleParticipantAdded(_ context.Context, event events.ParticipantAddedEvent, _ *mono.Msg) error {
	m.stats.RecordParticipantAdded(event.RoomID, event.Timestamp)
	m.logger.Debug("Recorded participant added", "roomID", event.RoomID, "userID", event.UserID)
	return nil
}

func (m *Module) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.stats.RecordRoomCreated(event.RoomID, event.RoomName, event.Timestamp)
	m.logger.Debug("Recorded room created", "roomID", event.RoomID, "kind", event.Kind)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	sum := m.stats.Summary()
	m.logger.Info("Activity module stopped", "rooms", sum.Rooms, "messages", sum.Messages)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	sum := m.stats.Summary()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":         sum.Rooms,
			"rooms_created": sum.RoomsCreated,
			"messages":      sum.Messages,
			"reads":         sum.Reads,
			"evictions":     sum.Evictions,
		},
	}
}

// Stats returns the activity store for the API module to use.
func (m *Module) Stats() *Stats {
	return m.stats
}
