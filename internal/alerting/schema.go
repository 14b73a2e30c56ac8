package alerting

// Schema describes the rule-authoring surface for UI clients: the closed
// metric catalog grouped by alert type plus every enumerated field value.
type Schema struct {
	AlertTypes  []AlertTypeSchema `json:"alertTypes"`
	Severities  []LabeledValue    `json:"severities"`
	Operators   []LabeledValue    `json:"operators"`
	Frequencies []LabeledValue    `json:"frequencies"`
	Audiences   []LabeledValue    `json:"audiences"`
	Channels    []LabeledValue    `json:"channels"`
}

// AlertTypeSchema describes one alert type family and its metrics.
type AlertTypeSchema struct {
	Name    string       `json:"name"`
	Label   string       `json:"label"`
	Metrics []MetricSpec `json:"metrics"`
}

// LabeledValue pairs an enum value with a display label.
type LabeledValue struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// GetSchema returns the full rule-authoring schema.
func GetSchema() Schema {
	return Schema{
		AlertTypes: []AlertTypeSchema{
			{Name: AlertTypeAttendance, Label: "Attendance", Metrics: MetricsForAlertType(AlertTypeAttendance)},
			{Name: AlertTypeGrade, Label: "Grades", Metrics: MetricsForAlertType(AlertTypeGrade)},
			{Name: AlertTypeFee, Label: "Fees", Metrics: MetricsForAlertType(AlertTypeFee)},
			{Name: AlertTypeBehavior, Label: "Behavior", Metrics: MetricsForAlertType(AlertTypeBehavior)},
			{Name: AlertTypeCustom, Label: "Custom", Metrics: MetricsForAlertType(AlertTypeCustom)},
		},
		Severities: []LabeledValue{
			{Name: SeverityLow, Label: "Low"},
			{Name: SeverityMedium, Label: "Medium"},
			{Name: SeverityHigh, Label: "High"},
			{Name: SeverityCritical, Label: "Critical"},
		},
		Operators: []LabeledValue{
			{Name: OperatorLessThan, Label: "less than"},
			{Name: OperatorGreaterThan, Label: "greater than"},
			{Name: OperatorEquals, Label: "equals"},
			{Name: OperatorNotEquals, Label: "does not equal"},
			{Name: OperatorLessOrEqual, Label: "less than or equal"},
			{Name: OperatorGreaterOrEqual, Label: "greater than or equal"},
		},
		Frequencies: []LabeledValue{
			{Name: FrequencyDaily, Label: "Daily"},
			{Name: FrequencyWeekly, Label: "Weekly"},
			{Name: FrequencyMonthly, Label: "Monthly"},
			{Name: FrequencyOnce, Label: "Once"},
		},
		Audiences: []LabeledValue{
			{Name: AudienceAdmin, Label: "Administrators"},
			{Name: AudienceTeacher, Label: "Teachers"},
			{Name: AudienceParent, Label: "Parents"},
		},
		Channels: []LabeledValue{
			{Name: ChannelInApp, Label: "In-app"},
			{Name: ChannelEmail, Label: "Email"},
			{Name: ChannelSMS, Label: "SMS"},
		},
	}
}
