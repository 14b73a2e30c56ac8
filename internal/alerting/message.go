package alerting

import (
	"fmt"
	"strconv"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
)

// breachMessage renders the human-readable description of a breach,
// e.g. "Attendance Rate 62.0% fell below threshold 75.0%".
func breachMessage(rule *entities.AlertRule, value float64) string {
	label := rule.Metric
	unit := ""
	if spec, ok := LookupMetric(rule.Metric); ok {
		label = spec.Label
		if spec.Unit == "%" {
			unit = "%"
		}
	}
	return fmt.Sprintf("%s %s%s %s threshold %s%s",
		label,
		formatSample(value), unit,
		operatorPhrase(rule.Operator),
		formatSample(rule.Threshold), unit,
	)
}

func operatorPhrase(operator string) string {
	switch operator {
	case OperatorLessThan:
		return "fell below"
	case OperatorGreaterThan:
		return "exceeded"
	case OperatorLessOrEqual:
		return "is at or below"
	case OperatorGreaterOrEqual:
		return "is at or above"
	case OperatorEquals:
		return "matched"
	case OperatorNotEquals:
		return "deviated from"
	default:
		return "breached"
	}
}

// formatSample trims trailing zeros so counts render as "3" and rates as "62.5".
func formatSample(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
