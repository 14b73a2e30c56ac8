package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"go.uber.org/zap"
)

// DirectoryLookup resolves display names for scope snapshots. Lookups are
// best-effort: a failed lookup leaves the name empty rather than failing
// the notification write.
type DirectoryLookup interface {
	StudentName(ctx context.Context, studentID string) (string, error)
	ClassName(ctx context.Context, classID string) (string, error)
}

// Notifier translates evaluation outcomes into notification state changes
// and owns the acknowledge/resolve lifecycle.
//
// Dedup invariant: for a given (rule, scope) at most one unresolved
// notification exists. A repeated breach refreshes the open row; a breach
// after resolution opens a new one.
type Notifier struct {
	repo      repository.NotificationRepository
	directory DirectoryLookup
	log       *zap.Logger
}

// NewNotifier creates a Notifier. directory may be nil; scope snapshots
// then carry IDs without display names.
func NewNotifier(repo repository.NotificationRepository, directory DirectoryLookup, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{repo: repo, directory: directory, log: log}
}

// RecordBreach applies a breach outcome for (rule, scope). It refreshes the
// existing open notification if one exists, otherwise creates a new one
// snapshotting the rule's name, type, severity, and scope at this instant.
// The second return value is true when a new notification was created.
func (n *Notifier) RecordBreach(ctx context.Context, rule *entities.AlertRule, scope Scope, value float64, now time.Time) (*entities.AlertNotification, bool, error) {
	existing, err := n.repo.FindOpen(ctx, rule.ID, scope.StudentID, scope.ClassID)
	if err != nil {
		return nil, false, err
	}

	message := breachMessage(rule, value)

	if existing != nil {
		if err := n.repo.RefreshTrigger(ctx, existing.ID, value, message, now); err != nil {
			return nil, false, fmt.Errorf("refresh open notification: %w", err)
		}
		existing.TriggeredValue = value
		existing.Message = message
		existing.TriggeredAt = now
		n.log.Debug("refreshed open notification",
			zap.Uint("notification_id", existing.ID),
			zap.Uint("rule_id", rule.ID),
			zap.Float64("value", value),
		)
		return existing, false, nil
	}

	notification := &entities.AlertNotification{
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		AlertType:      rule.AlertType,
		Severity:       rule.Severity,
		Message:        message,
		TriggeredValue: value,
		ThresholdValue: rule.Threshold,
		StudentID:      scope.StudentID,
		ClassID:        scope.ClassID,
		TriggeredAt:    now,
	}
	n.fillScopeNames(ctx, notification)

	if err := n.repo.Create(ctx, notification); err != nil {
		return nil, false, fmt.Errorf("create notification: %w", err)
	}
	metrics.OpenNotifications.Inc()
	n.log.Info("notification created",
		zap.Uint("notification_id", notification.ID),
		zap.Uint("rule_id", rule.ID),
		zap.String("severity", rule.Severity),
		zap.String("scope", scope.String()),
		zap.Float64("value", value),
	)
	return notification, true, nil
}

func (n *Notifier) fillScopeNames(ctx context.Context, notification *entities.AlertNotification) {
	if n.directory == nil {
		return
	}
	if notification.StudentID != "" {
		if name, err := n.directory.StudentName(ctx, notification.StudentID); err == nil {
			notification.StudentName = name
		} else {
			n.log.Warn("student name lookup failed",
				zap.String("student_id", notification.StudentID), zap.Error(err))
		}
	}
	if notification.ClassID != "" {
		if name, err := n.directory.ClassName(ctx, notification.ClassID); err == nil {
			notification.ClassName = name
		} else {
			n.log.Warn("class name lookup failed",
				zap.String("class_id", notification.ClassID), zap.Error(err))
		}
	}
}

// Acknowledge transitions a notification from Open to Acknowledged.
// Acknowledging twice fails with repository.ErrAlreadyAcknowledged;
// acknowledging a resolved notification fails with
// repository.ErrAlreadyResolved.
func (n *Notifier) Acknowledge(ctx context.Context, notificationID uint, actor string) error {
	if actor == "" {
		return fmt.Errorf("acknowledge: actor is required")
	}
	if err := n.repo.Acknowledge(ctx, notificationID, actor, time.Now().UTC()); err != nil {
		return err
	}
	n.log.Info("notification acknowledged",
		zap.Uint("notification_id", notificationID),
		zap.String("actor", actor),
	)
	return nil
}

// Resolve transitions a notification to the terminal Resolved state from
// either Open or Acknowledged; prior acknowledgment is not required.
// Resolving twice fails with repository.ErrAlreadyResolved.
func (n *Notifier) Resolve(ctx context.Context, notificationID uint, actor, notes string) error {
	if actor == "" {
		return fmt.Errorf("resolve: actor is required")
	}
	if err := n.repo.Resolve(ctx, notificationID, actor, notes, time.Now().UTC()); err != nil {
		return err
	}
	metrics.OpenNotifications.Dec()
	n.log.Info("notification resolved",
		zap.Uint("notification_id", notificationID),
		zap.String("actor", actor),
	)
	return nil
}
