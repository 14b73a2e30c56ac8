package repository

import "errors"

var (
	// ErrAlertRuleNotFound is returned when a rule lookup matches no row.
	ErrAlertRuleNotFound = errors.New("alert rule not found")
	// ErrNotificationNotFound is returned when a notification lookup matches no row.
	ErrNotificationNotFound = errors.New("alert notification not found")
	// ErrAlreadyAcknowledged is returned when acknowledging a notification
	// that has already been acknowledged.
	ErrAlreadyAcknowledged = errors.New("notification already acknowledged")
	// ErrAlreadyResolved is returned when acknowledging or resolving a
	// notification that has already been resolved. Resolved is terminal.
	ErrAlreadyResolved = errors.New("notification already resolved")
)
