package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder accepts presence events from the monitor.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
	Flush(ctx context.Context) error
}

// Journal is the recorder plus the read and maintenance side used by the CLI.
type Journal interface {
	Recorder
	Recent(ctx context.Context, limit int) ([]Event, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
	IsEnabled() bool
}

// Repository is the storage behind a Journal.
type Repository interface {
	Record(event *Event) error
	Flush() error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

type Kind string

const (
	KindDeviceFound      Kind = "device_found"
	KindRemoved          Kind = "removed"
	KindReinserted       Kind = "reinserted"
	KindNotifierFailed   Kind = "notifier_failed"
	KindActionDispatched Kind = "action_dispatched"
	KindActionFailed     Kind = "action_failed"
	KindStopped          Kind = "stopped"
)

// Event is one entry in the presence journal.
type Event struct {
	ID           uuid.UUID
	Timestamp    time.Time
	Kind         Kind
	Device       string
	Serial       string
	GraceSeconds int
	ElapsedTicks int
	Action       string
	Detail       string
}

// NewEvent stamps a new event with a fresh id and the current time.
func NewEvent(kind Kind) *Event {
	return &Event{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Kind:      kind,
	}
}
