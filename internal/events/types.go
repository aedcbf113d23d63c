// Package events provides event emission and fan-out for state changes.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	StateChanged      EventType = "STATE_CHANGED"
	StateReset        EventType = "STATE_RESET"
	HoldingAdded      EventType = "HOLDING_ADDED"
	HoldingUpdated    EventType = "HOLDING_UPDATED"
	HoldingRemoved    EventType = "HOLDING_REMOVED"
	PricesRefreshed   EventType = "PRICES_REFRESHED"
	PassiveUpdated    EventType = "PASSIVE_UPDATED"
	PassiveRejected   EventType = "PASSIVE_REJECTED"
	HawlStatusChanged EventType = "HAWL_STATUS_CHANGED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
}
