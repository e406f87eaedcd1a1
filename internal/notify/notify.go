package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notifier forwards activity events to something outside the process.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Notification struct {
	ID          uuid.UUID `json:"id"`
	Event       string    `json:"event"`
	ChannelName string    `json:"channelName"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewNotification(event, channelName, status string, at time.Time) Notification {
	return Notification{
		ID:          uuid.New(),
		Event:       event,
		ChannelName: channelName,
		Status:      status,
		Timestamp:   at,
	}
}

// DeliveryError reports a notification that could not be forwarded.
type DeliveryError struct {
	Notifier string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Notifier, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

// Multi delivers to every notifier and joins their failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
