package alerting

import (
	"context"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"go.uber.org/zap"
)

// DefaultRules returns the built-in starter rules seeded on first start.
// Administrators can edit or disable them like any other rule.
func DefaultRules() []entities.AlertRule {
	return []entities.AlertRule{
		{
			Name:           "Low school attendance",
			Description:    "Raises when the school-wide attendance rate falls below 80%",
			AlertType:      AlertTypeAttendance,
			Severity:       SeverityHigh,
			Enabled:        true,
			BuiltIn:        true,
			Metric:         MetricAttendanceRate,
			Operator:       OperatorLessThan,
			Threshold:      80,
			CheckFrequency: FrequencyDaily,
			NotifyAdmin:    true,
		},
		{
			Name:           "Failing grade average",
			Description:    "Raises when the school-wide grade average falls below 50%",
			AlertType:      AlertTypeGrade,
			Severity:       SeverityMedium,
			Enabled:        true,
			BuiltIn:        true,
			Metric:         MetricGradeAverage,
			Operator:       OperatorLessThan,
			Threshold:      50,
			CheckFrequency: FrequencyWeekly,
			NotifyAdmin:    true,
			NotifyTeacher:  true,
		},
		{
			Name:           "Overdue fee invoices",
			Description:    "Raises when more than 10 invoices are past due",
			AlertType:      AlertTypeFee,
			Severity:       SeverityMedium,
			Enabled:        true,
			BuiltIn:        true,
			Metric:         MetricFeeOverdueCount,
			Operator:       OperatorGreaterThan,
			Threshold:      10,
			CheckFrequency: FrequencyWeekly,
			NotifyAdmin:    true,
		},
		{
			Name:           "Repeated negative behavior",
			Description:    "Raises when negative behavior notes exceed 20 in the trailing month",
			AlertType:      AlertTypeBehavior,
			Severity:       SeverityLow,
			Enabled:        true,
			BuiltIn:        true,
			Metric:         MetricBehaviorNegativeCount,
			Operator:       OperatorGreaterThan,
			Threshold:      20,
			CheckFrequency: FrequencyMonthly,
			NotifyAdmin:    true,
			NotifyTeacher:  true,
		},
	}
}

// SeedDefaultRules ensures all built-in rules exist, checking by name so a
// partially seeded store self-heals on restart.
func SeedDefaultRules(ctx context.Context, repo repository.AlertRuleRepository, log *zap.Logger) error {
	existing, err := repo.ListRules(ctx, repository.AlertRuleFilter{})
	if err != nil {
		return err
	}

	existingNames := make(map[string]struct{}, len(existing))
	for i := range existing {
		existingNames[existing[i].Name] = struct{}{}
	}

	defaults := DefaultRules()
	var created int
	for i := range defaults {
		if _, exists := existingNames[defaults[i].Name]; exists {
			continue
		}
		if err := repo.CreateRule(ctx, &defaults[i]); err != nil {
			return err
		}
		created++
	}
	if created > 0 && log != nil {
		log.Info("seeded default alert rules", zap.Int("created", created))
	}
	return nil
}
