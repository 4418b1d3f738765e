package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/events"
	"github.com/example/tournament-chat/modules/registry"
	"github.com/example/tournament-chat/modules/store"
	"github.com/example/tournament-chat/modules/unread"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module wires the chat core into the mono application: it serves room
// operations over the service container and publishes chat events.
type Module struct {
	service     *Service
	broadcaster *Broadcaster
	gateway     *Gateway
	registry    *registry.Registry
	eventBus    mono.EventBus
	logger      types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Notifier                   = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(
	cfg SessionConfig,
	st store.MessageStore,
	reg *registry.Registry,
	tracker *unread.Tracker,
	logger types.Logger,
) *Module {
	m := &Module{registry: reg, logger: logger}
	m.service = NewService(st, tracker, reg, m, logger)
	m.broadcaster = NewBroadcaster(st, reg, tracker, m, cfg.DeliverTimeout, logger)
	m.gateway = NewGateway(cfg, reg, st, tracker, m.service, m.broadcaster, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Dependencies orders startup after the store and before the api; on
// shutdown the registry closes connections after chat stops.
func (m *Module) Dependencies() []string {
	return []string{"store", "registry", "unread"}
}

// SetDependencyServiceContainer is a no-op; dependencies are injected directly.
func (m *Module) SetDependencyServiceContainer(_ string, _ mono.ServiceContainer) {}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.RoomReadV1.ToBase(),
		events.ParticipantAddedV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register list-rooms service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register get-room service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListMessages, json.Unmarshal, json.Marshal, m.listMessages,
	); err != nil {
		return fmt.Errorf("failed to register list-messages service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMarkRead, json.Unmarshal, json.Marshal, m.markRead,
	); err != nil {
		return fmt.Errorf("failed to register mark-read service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register create-room service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAddParticipant, json.Unmarshal, json.Marshal, m.addParticipant,
	); err != nil {
		return fmt.Errorf("failed to register add-participant service: %w", err)
	}

	m.logger.Info("Registered chat services",
		"services", "list-rooms,get-room,list-messages,mark-read,create-room,add-participant")
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Chat module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Chat module stopped", "connections", m.registry.Count())
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

// Gateway returns the session gateway for the api module.
func (m *Module) Gateway() *Gateway {
	return m.gateway
}

// Service handlers

func (m *Module) listRooms(ctx context.Context, req ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.service.ListRooms(ctx, req.UserID)
	return ListRoomsResponse{ErrorReply: replyError(err), Rooms: rooms}, nil
}

func (m *Module) getRoom(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	detail, err := m.service.GetRoom(ctx, req.RoomID, req.UserID)
	return GetRoomResponse{ErrorReply: replyError(err), Detail: detail}, nil
}

func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	messages, err := m.service.ListMessages(ctx, req.RoomID, req.UserID, req.SinceSequence, req.Limit)
	return ListMessagesResponse{ErrorReply: replyError(err), Messages: messages}, nil
}

func (m *Module) markRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (MarkReadResponse, error) {
	participant, count, err := m.service.MarkRead(ctx, req.RoomID, req.UserID)
	return MarkReadResponse{ErrorReply: replyError(err), Participant: participant, UnreadCount: count}, nil
}

func (m *Module) createRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	room, err := m.service.CreateRoom(ctx, &domain.Room{
		Name:    req.Name,
		Kind:    req.Kind,
		TeamID:  req.TeamID,
		EventID: req.EventID,
	}, req.CreatedBy)
	return CreateRoomResponse{ErrorReply: replyError(err), Room: room}, nil
}

func (m *Module) addParticipant(ctx context.Context, req AddParticipantRequest, _ *mono.Msg) (AddParticipantResponse, error) {
	participant, created, err := m.service.AddParticipant(ctx, req.RoomID, req.ActorID, req.UserID)
	return AddParticipantResponse{ErrorReply: replyError(err), Participant: participant, Created: created}, nil
}

// Event publishing. Failures are logged; the state change already committed.

// MessageSent implements Notifier.
func (m *Module) MessageSent(_ context.Context, msg *domain.Message, report DeliveryReport) {
	m.publish("MessageSent", func(bus mono.EventBus) error {
		return events.MessageSentV1.Publish(bus, events.MessageSentEvent{
			MessageID:   msg.ID,
			RoomID:      msg.RoomID,
			UserID:      msg.UserID,
			Sequence:    msg.Sequence,
			MessageType: string(msg.Type),
			Delivered:   report.Delivered,
			Evicted:     report.Evicted,
			Timestamp:   msg.CreatedAt,
		}, nil)
	})
}

// RoomRead implements Notifier.
func (m *Module) RoomRead(_ context.Context, p *domain.Participant) {
	readAt := time.Now()
	if p.LastReadAt != nil {
		readAt = *p.LastReadAt
	}
	m.publish("RoomRead", func(bus mono.EventBus) error {
		return events.RoomReadV1.Publish(bus, events.RoomReadEvent{
			RoomID:           p.RoomID,
			UserID:           p.UserID,
			LastReadSequence: p.LastReadSequence,
			Timestamp:        readAt,
		}, nil)
	})
}

// ParticipantAdded implements Notifier.
func (m *Module) ParticipantAdded(_ context.Context, p *domain.Participant, addedBy int64) {
	m.publish("ParticipantAdded", func(bus mono.EventBus) error {
		return events.ParticipantAddedV1.Publish(bus, events.ParticipantAddedEvent{
			RoomID:    p.RoomID,
			UserID:    p.UserID,
			AddedBy:   addedBy,
			Timestamp: p.CreatedAt,
		}, nil)
	})
}

// RoomCreated implements Notifier.
func (m *Module) RoomCreated(_ context.Context, room *domain.Room, createdBy int64) {
	m.publish("RoomCreated", func(bus mono.EventBus) error {
		return events.RoomCreatedV1.Publish(bus, events.RoomCreatedEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			Kind:      string(room.Kind),
			CreatedBy: createdBy,
			Timestamp: room.CreatedAt,
		}, nil)
	})
}

func (m *Module) publish(name string, fn func(mono.EventBus) error) {
	if m.eventBus == nil {
		return
	}
	if err := fn(m.eventBus); err != nil {
		m.logger.Warn("Failed to publish event", "event", name, "error", err)
	}
}
