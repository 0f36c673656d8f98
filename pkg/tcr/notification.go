package tcr

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationEvent names a connection lifecycle change.
type NotificationEvent string

const (
	// EventConnected is sent when a connection lands in a slot.
	EventConnected NotificationEvent = "connected"

	// EventConnectFailed is sent for every failed attempt that will be retried.
	EventConnectFailed NotificationEvent = "connect_failed"

	// EventDisconnected is sent when an established connection is lost.
	EventDisconnected NotificationEvent = "disconnected"

	// EventGaveUp is sent when a request exceeds MaxConnectionRetries.
	EventGaveUp NotificationEvent = "gave_up"

	// EventSurplus is sent when a connection arrives with every slot already taken.
	EventSurplus NotificationEvent = "surplus"

	// EventShutdown is sent once when the pool is destroyed.
	EventShutdown NotificationEvent = "shutdown"
)

// Notification is a way to communicate pool lifecycle changes to callers.
type Notification struct {
	NotificationID uuid.UUID         `json:"NotificationID"`
	PoolID         string            `json:"PoolID"`
	Event          NotificationEvent `json:"Event"`
	Slot           int               `json:"Slot"`
	RetryTimes     int               `json:"RetryTimes"`
	Error          string            `json:"Error,omitempty"`
	UTCDateTime    string            `json:"UTCDateTime"`
}

func newNotification(poolID string, event NotificationEvent, slot int, retryTimes int, err error) *Notification {
	not := &Notification{
		NotificationID: uuid.New(),
		PoolID:         poolID,
		Event:          event,
		Slot:           slot,
		RetryTimes:     retryTimes,
		UTCDateTime:    JSONUtcTimestamp(),
	}

	if err != nil {
		not.Error = err.Error()
	}

	return not
}

// ToString allows you to quickly log the Notification struct as a string.
func (not *Notification) ToString() string {
	if not.Error == "" {
		return fmt.Sprintf("[PoolID: %s] - %s (slot %d).", not.PoolID, not.Event, not.Slot)
	}

	return fmt.Sprintf("[PoolID: %s] - %s (slot %d, retry %d).\r\nError: %s", not.PoolID, not.Event, not.Slot, not.RetryTimes, not.Error)
}

// JSONUtcTimestamp quickly creates a string RFC3339 format in UTC
func JSONUtcTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
