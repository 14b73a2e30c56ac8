package alerting

import (
	"fmt"
	"math"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
)

var validAlertTypes = map[string]struct{}{
	AlertTypeAttendance: {},
	AlertTypeGrade:      {},
	AlertTypeFee:        {},
	AlertTypeBehavior:   {},
	AlertTypeCustom:     {},
}

var validSeverities = map[string]struct{}{
	SeverityLow:      {},
	SeverityMedium:   {},
	SeverityHigh:     {},
	SeverityCritical: {},
}

var validOperators = map[string]struct{}{
	OperatorLessThan:       {},
	OperatorGreaterThan:    {},
	OperatorEquals:         {},
	OperatorNotEquals:      {},
	OperatorLessOrEqual:    {},
	OperatorGreaterOrEqual: {},
}

var validFrequencies = map[string]struct{}{
	FrequencyDaily:   {},
	FrequencyWeekly:  {},
	FrequencyMonthly: {},
	FrequencyOnce:    {},
}

// ValidateRule checks a rule definition at authoring time. Invalid rules
// never reach the engine. All errors wrap ErrInvalidRuleConfig.
func ValidateRule(rule *entities.AlertRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRuleConfig)
	}
	if _, ok := validAlertTypes[rule.AlertType]; !ok {
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalidRuleConfig, rule.AlertType)
	}
	if _, ok := validSeverities[rule.Severity]; !ok {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRuleConfig, rule.Severity)
	}
	if _, ok := validOperators[rule.Operator]; !ok {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRuleConfig, rule.Operator)
	}
	if _, ok := validFrequencies[rule.CheckFrequency]; !ok {
		return fmt.Errorf("%w: unknown check frequency %q", ErrInvalidRuleConfig, rule.CheckFrequency)
	}
	if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be a finite number", ErrInvalidRuleConfig)
	}

	spec, ok := LookupMetric(rule.Metric)
	if !ok {
		return fmt.Errorf("%w: metric %q is not in the catalog", ErrInvalidRuleConfig, rule.Metric)
	}
	if rule.AlertType != AlertTypeCustom && spec.AlertType != rule.AlertType {
		return fmt.Errorf("%w: metric %q belongs to alert type %q, not %q",
			ErrInvalidRuleConfig, rule.Metric, spec.AlertType, rule.AlertType)
	}

	// A rule is scoped to at most one of class or student.
	if rule.ScopeClassID != "" && rule.ScopeStudentID != "" {
		return fmt.Errorf("%w: scope_class_id and scope_student_id cannot both be set", ErrInvalidRuleConfig)
	}

	return nil
}
