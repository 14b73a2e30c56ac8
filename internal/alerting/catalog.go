package alerting

// MetricSpec describes one entry in the closed metric catalog.
type MetricSpec struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	AlertType   string `json:"alert_type"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

// metricCatalog is the closed set of metric keys the engine will resolve.
// Rules referencing keys outside this catalog are rejected at authoring
// time, so MetricUnavailable cannot be caused by a typo at evaluation time.
var metricCatalog = map[string]MetricSpec{
	MetricAttendanceRate: {
		Key:         MetricAttendanceRate,
		Label:       "Attendance Rate",
		AlertType:   AlertTypeAttendance,
		Unit:        "%",
		Description: "Percentage of attendance marks that are present, over the trailing 30 days",
	},
	MetricGradeAverage: {
		Key:         MetricGradeAverage,
		Label:       "Grade Average",
		AlertType:   AlertTypeGrade,
		Unit:        "%",
		Description: "Mean score as a percentage of max score across recorded assessments",
	},
	MetricFeeBalance: {
		Key:         MetricFeeBalance,
		Label:       "Outstanding Fee Balance",
		AlertType:   AlertTypeFee,
		Unit:        "currency",
		Description: "Sum of billed minus paid amounts across invoices",
	},
	MetricFeeOverdueCount: {
		Key:         MetricFeeOverdueCount,
		Label:       "Overdue Invoices",
		AlertType:   AlertTypeFee,
		Unit:        "count",
		Description: "Number of invoices past their due date with a remaining balance",
	},
	MetricBehaviorNegativeCount: {
		Key:         MetricBehaviorNegativeCount,
		Label:       "Negative Behavior Notes",
		AlertType:   AlertTypeBehavior,
		Unit:        "count",
		Description: "Number of behavior notes with negative points over the trailing 30 days",
	},
	MetricBehaviorPoints: {
		Key:         MetricBehaviorPoints,
		Label:       "Behavior Points",
		AlertType:   AlertTypeBehavior,
		Unit:        "points",
		Description: "Net behavior points over the trailing 30 days",
	},
}

// LookupMetric returns the catalog entry for a metric key.
func LookupMetric(key string) (MetricSpec, bool) {
	spec, ok := metricCatalog[key]
	return spec, ok
}

// KnownMetric reports whether a metric key is in the catalog.
func KnownMetric(key string) bool {
	_, ok := metricCatalog[key]
	return ok
}

// MetricsForAlertType returns the catalog entries belonging to one alert
// type family. The custom alert type accepts any catalog metric.
func MetricsForAlertType(alertType string) []MetricSpec {
	var out []MetricSpec
	for _, spec := range metricCatalog {
		if alertType == AlertTypeCustom || spec.AlertType == alertType {
			out = append(out, spec)
		}
	}
	return out
}
