package realtime

import (
	"time"

	"github.com/rugsentry/rugsentry/internal/warning"
)

// WarningPublisher adapts the hub to the warning service's Publisher
// interface. Event payloads carry the fields subscriptions filter on plus
// enough context to render an alert without a follow-up fetch.
type WarningPublisher struct {
	hub *Hub
}

// NewWarningPublisher creates the adapter.
func NewWarningPublisher(hub *Hub) *WarningPublisher {
	return &WarningPublisher{hub: hub}
}

func (p *WarningPublisher) WarningCreated(w *warning.WarningSign) int {
	return p.hub.Publish(&Event{
		Type:      EventWarningCreated,
		Timestamp: time.Now(),
		Data:      warningEventData(w),
	})
}

func (p *WarningPublisher) WarningUpdated(w *warning.WarningSign) int {
	return p.hub.Publish(&Event{
		Type:      EventWarningUpdated,
		Timestamp: time.Now(),
		Data:      warningEventData(w),
	})
}

// ChatPublisher adapts the hub to the chat service's Broadcaster interface.
// Chat events are room-scoped: only clients subscribed to the room receive
// them, so the payload's roomId field is what the hub routes on.
type ChatPublisher struct {
	hub *Hub
}

// NewChatPublisher creates the adapter.
func NewChatPublisher(hub *Hub) *ChatPublisher {
	return &ChatPublisher{hub: hub}
}

func (p *ChatPublisher) ChatMessage(roomID string, data map[string]any) int {
	return p.hub.Publish(&Event{
		Type:      EventChatMessage,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (p *ChatPublisher) RoomModerated(roomID string, data map[string]any) int {
	return p.hub.Publish(&Event{
		Type:      EventRoomModerated,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func warningEventData(w *warning.WarningSign) map[string]any {
	return map[string]any{
		"id":          w.ID,
		"projectName": w.ProjectName,
		"tokenSymbol": w.TokenSymbol,
		"network":     string(w.Network),
		"riskLevel":   string(w.RiskLevel),
		"riskScore":   w.AIAnalysis.RiskScore,
		"status":      string(w.Status),
	}
}
