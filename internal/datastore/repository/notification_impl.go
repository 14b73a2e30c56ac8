package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"gorm.io/gorm"
)

// notificationRepository implements NotificationRepository.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// FindOpen returns the unresolved notification for (rule, scope), or nil.
func (r *notificationRepository) FindOpen(ctx context.Context, ruleID uint, studentID, classID string) (*entities.AlertNotification, error) {
	var n entities.AlertNotification
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND student_id = ? AND class_id = ? AND resolved = ?",
			ruleID, studentID, classID, false).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open notification for rule %d: %w", ruleID, err)
	}
	return &n, nil
}

// Create inserts a new notification in the Open state.
func (r *notificationRepository) Create(ctx context.Context, n *entities.AlertNotification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create alert notification: %w", err)
	}
	return nil
}

// RefreshTrigger updates the trigger snapshot on an open notification.
// The conditional on resolved guards against refreshing a row that was
// resolved between the FindOpen read and this write.
func (r *notificationRepository) RefreshTrigger(ctx context.Context, id uint, value float64, message string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertNotification{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]any{
			"triggered_value": value,
			"message":         message,
			"triggered_at":    at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to refresh notification %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedUpdate(ctx, id, false)
	}
	return nil
}

// Acknowledge transitions Open → Acknowledged. Double-acknowledgment and
// acknowledgment of resolved notifications are rejected.
func (r *notificationRepository) Acknowledge(ctx context.Context, id uint, actor string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertNotification{}).
		Where("id = ? AND acknowledged = ? AND resolved = ?", id, false, false).
		Updates(map[string]any{
			"acknowledged":    true,
			"acknowledged_by": actor,
			"acknowledged_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge notification %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedUpdate(ctx, id, true)
	}
	return nil
}

// Resolve transitions Open or Acknowledged → Resolved. Resolved is terminal.
func (r *notificationRepository) Resolve(ctx context.Context, id uint, actor, notes string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertNotification{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]any{
			"resolved":         true,
			"resolved_by":      actor,
			"resolved_at":      at,
			"resolution_notes": notes,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve notification %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedUpdate(ctx, id, false)
	}
	return nil
}

// classifyMissedUpdate distinguishes why a conditional update matched no
// rows: missing row, already resolved, or (for acknowledge) already
// acknowledged.
func (r *notificationRepository) classifyMissedUpdate(ctx context.Context, id uint, forAcknowledge bool) error {
	n, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Resolved {
		return ErrAlreadyResolved
	}
	if forAcknowledge && n.Acknowledged {
		return ErrAlreadyAcknowledged
	}
	return fmt.Errorf("conditional update on notification %d matched no rows", id)
}

// Get returns a notification by ID.
// Returns ErrNotificationNotFound if it does not exist.
func (r *notificationRepository) Get(ctx context.Context, id uint) (*entities.AlertNotification, error) {
	var n entities.AlertNotification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification %d: %w", id, err)
	}
	return &n, nil
}

// List returns notifications matching the filter, newest first, with the
// total count for pagination.
func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]entities.AlertNotification, int64, error) {
	var items []entities.AlertNotification
	var total int64

	base := r.db.WithContext(ctx).Model(&entities.AlertNotification{})
	base = applyNotificationFilter(base, filter)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := applyNotificationFilter(r.db.WithContext(ctx), filter).Order("triggered_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

func applyNotificationFilter(query *gorm.DB, filter NotificationFilter) *gorm.DB {
	if filter.RuleID > 0 {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.AlertType != "" {
		query = query.Where("alert_type = ?", filter.AlertType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Acknowledged != nil {
		query = query.Where("acknowledged = ?", *filter.Acknowledged)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.ClassID != "" {
		query = query.Where("class_id = ?", filter.ClassID)
	}
	return query
}

// CountOpen returns the number of unresolved notifications.
func (r *notificationRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.AlertNotification{}).
		Where("resolved = ?", false).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count open notifications: %w", err)
	}
	return count, nil
}
