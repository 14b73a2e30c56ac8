package repository

import (
	"context"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
)

// NotificationRepository handles alert notification persistence and the
// storage-boundary half of the notification lifecycle: creation, trigger
// refresh, and the acknowledge/resolve compare-and-set transitions.
type NotificationRepository interface {
	// FindOpen returns the single unresolved notification for the given
	// rule and scope, or nil when none exists. Empty studentID/classID
	// match the school-wide scope.
	FindOpen(ctx context.Context, ruleID uint, studentID, classID string) (*entities.AlertNotification, error)
	Create(ctx context.Context, n *entities.AlertNotification) error
	// RefreshTrigger updates triggered_value/triggered_at and the message on
	// an open notification without touching its acknowledgment state.
	RefreshTrigger(ctx context.Context, id uint, value float64, message string, at time.Time) error

	// Acknowledge and Resolve are conditional updates keyed on the current
	// lifecycle columns, so concurrent actors cannot double-apply a
	// transition. They return ErrAlreadyAcknowledged / ErrAlreadyResolved
	// when the transition has already happened.
	Acknowledge(ctx context.Context, id uint, actor string, at time.Time) error
	Resolve(ctx context.Context, id uint, actor, notes string, at time.Time) error

	Get(ctx context.Context, id uint) (*entities.AlertNotification, error)
	List(ctx context.Context, filter NotificationFilter) ([]entities.AlertNotification, int64, error)
	CountOpen(ctx context.Context) (int64, error)
}

// NotificationFilter controls notification listing queries.
type NotificationFilter struct {
	RuleID       uint
	AlertType    string
	Severity     string
	Acknowledged *bool
	Resolved     *bool
	StudentID    string
	ClassID      string
	Limit        int
	Offset       int
}
