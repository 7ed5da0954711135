// Package notify delivers stream-blocked notifications to external collaborators. Delivery is
// best-effort: callers log failures and never roll back a termination because of one.
package notify

import (
	"context"
	"errors"
	"time"
)

// StreamBlocked is published when a session is terminated by policy.
type StreamBlocked struct {
	UserID           string    `json:"userId"`
	Username         string    `json:"username,omitempty"`
	DeviceIdentifier string    `json:"deviceIdentifier"`
	StopCode         string    `json:"stopCode"`
	SessionHistoryID string    `json:"sessionHistoryId"`
	SessionKey       string    `json:"sessionKey,omitempty"`
	Message          string    `json:"message,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// Notifier delivers stream-blocked events.
type Notifier interface {
	NotifyStreamBlocked(ctx context.Context, ev StreamBlocked) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) NotifyStreamBlocked(context.Context, StreamBlocked) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyStreamBlocked(ctx context.Context, ev StreamBlocked) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyStreamBlocked(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
