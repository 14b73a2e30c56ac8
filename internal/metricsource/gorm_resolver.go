// Package metricsource computes catalog metrics from the school-domain
// tables. It is the bundled implementation of the engine's MetricResolver
// contract; deployments can substitute any other resolver.
package metricsource

import (
	"context"
	"fmt"
	"time"

	"github.com/campuspulse/campuspulse/internal/alerting"
	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"gorm.io/gorm"
)

// trailingWindow is the lookback for rate and count metrics.
const trailingWindow = 30 * 24 * time.Hour

// GormResolver resolves metrics with aggregate queries over the record
// tables. Scoping narrows the aggregation to one class or one student.
type GormResolver struct {
	db *gorm.DB
}

// NewGormResolver creates a resolver over the given database.
func NewGormResolver(db *gorm.DB) *GormResolver {
	return &GormResolver{db: db}
}

// Resolve computes one metric sample. Unknown metric keys and metrics
// that cannot be computed (e.g. a rate with no underlying records) fail
// with an error wrapping alerting.ErrMetricUnavailable.
func (r *GormResolver) Resolve(ctx context.Context, metric string, scope alerting.Scope) (float64, error) {
	switch metric {
	case alerting.MetricAttendanceRate:
		return r.attendanceRate(ctx, scope)
	case alerting.MetricGradeAverage:
		return r.gradeAverage(ctx, scope)
	case alerting.MetricFeeBalance:
		return r.feeBalance(ctx, scope)
	case alerting.MetricFeeOverdueCount:
		return r.feeOverdueCount(ctx, scope)
	case alerting.MetricBehaviorNegativeCount:
		return r.behaviorNegativeCount(ctx, scope)
	case alerting.MetricBehaviorPoints:
		return r.behaviorPoints(ctx, scope)
	default:
		return 0, fmt.Errorf("%w: unknown metric %q", alerting.ErrMetricUnavailable, metric)
	}
}

// attendanceRate is the percentage of present marks over the trailing window.
func (r *GormResolver) attendanceRate(ctx context.Context, scope alerting.Scope) (float64, error) {
	since := time.Now().UTC().Add(-trailingWindow)

	var counts struct {
		Total   int64
		Present int64
	}
	query := r.scoped(ctx, &entities.AttendanceRecord{}, scope).
		Select("COUNT(*) AS total, SUM(CASE WHEN present THEN 1 ELSE 0 END) AS present").
		Where("date >= ?", since)
	if err := query.Scan(&counts).Error; err != nil {
		return 0, fmt.Errorf("%w: attendance query: %v", alerting.ErrMetricUnavailable, err)
	}
	if counts.Total == 0 {
		return 0, fmt.Errorf("%w: no attendance records in window", alerting.ErrMetricUnavailable)
	}
	return float64(counts.Present) / float64(counts.Total) * 100, nil
}

// gradeAverage is the mean score as a percentage of max score.
func (r *GormResolver) gradeAverage(ctx context.Context, scope alerting.Scope) (float64, error) {
	var avg *float64
	query := r.scoped(ctx, &entities.GradeRecord{}, scope).
		Select("AVG(score / max_score * 100)")
	if err := query.Scan(&avg).Error; err != nil {
		return 0, fmt.Errorf("%w: grade query: %v", alerting.ErrMetricUnavailable, err)
	}
	if avg == nil {
		return 0, fmt.Errorf("%w: no grade records", alerting.ErrMetricUnavailable)
	}
	return *avg, nil
}

// feeBalance is the outstanding amount across invoices.
func (r *GormResolver) feeBalance(ctx context.Context, scope alerting.Scope) (float64, error) {
	var balance *float64
	query := r.scoped(ctx, &entities.FeeInvoice{}, scope).
		Select("SUM(amount_due - amount_paid)")
	if err := query.Scan(&balance).Error; err != nil {
		return 0, fmt.Errorf("%w: fee balance query: %v", alerting.ErrMetricUnavailable, err)
	}
	if balance == nil {
		return 0, nil
	}
	return *balance, nil
}

// feeOverdueCount is the number of past-due invoices with a remaining balance.
func (r *GormResolver) feeOverdueCount(ctx context.Context, scope alerting.Scope) (float64, error) {
	var count int64
	query := r.scoped(ctx, &entities.FeeInvoice{}, scope).
		Where("due_date < ? AND amount_paid < amount_due", time.Now().UTC())
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: overdue invoice query: %v", alerting.ErrMetricUnavailable, err)
	}
	return float64(count), nil
}

// behaviorNegativeCount is the number of negative notes in the trailing window.
func (r *GormResolver) behaviorNegativeCount(ctx context.Context, scope alerting.Scope) (float64, error) {
	since := time.Now().UTC().Add(-trailingWindow)
	var count int64
	query := r.scoped(ctx, &entities.BehaviorNote{}, scope).
		Where("points < 0 AND noted_at >= ?", since)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: behavior count query: %v", alerting.ErrMetricUnavailable, err)
	}
	return float64(count), nil
}

// behaviorPoints is the net behavior points in the trailing window.
func (r *GormResolver) behaviorPoints(ctx context.Context, scope alerting.Scope) (float64, error) {
	since := time.Now().UTC().Add(-trailingWindow)
	var points *float64
	query := r.scoped(ctx, &entities.BehaviorNote{}, scope).
		Select("SUM(points)").
		Where("noted_at >= ?", since)
	if err := query.Scan(&points).Error; err != nil {
		return 0, fmt.Errorf("%w: behavior points query: %v", alerting.ErrMetricUnavailable, err)
	}
	if points == nil {
		return 0, nil
	}
	return *points, nil
}

// scoped applies the rule scope to a record query. School-wide scopes
// aggregate over all rows.
func (r *GormResolver) scoped(ctx context.Context, model any, scope alerting.Scope) *gorm.DB {
	query := r.db.WithContext(ctx).Model(model)
	switch {
	case scope.StudentID != "":
		query = query.Where("student_id = ?", scope.StudentID)
	case scope.ClassID != "":
		query = query.Where("class_id = ?", scope.ClassID)
	}
	return query
}
