// Package alerting provides the alert rule evaluation and notification
// lifecycle engine: scheduling, breach detection, notification dedup, and
// delivery intent dispatch.
package alerting

// Alert types classify which metric family a rule monitors.
const (
	AlertTypeAttendance = "attendance"
	AlertTypeGrade      = "grade"
	AlertTypeFee        = "fee"
	AlertTypeBehavior   = "behavior"
	AlertTypeCustom     = "custom"
)

// Severities are inherited by the notifications a rule produces.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Comparison operators for threshold rules.
const (
	OperatorLessThan       = "less_than"
	OperatorGreaterThan    = "greater_than"
	OperatorEquals         = "equals"
	OperatorNotEquals      = "not_equals"
	OperatorLessOrEqual    = "less_than_or_equal"
	OperatorGreaterOrEqual = "greater_than_or_equal"
)

// Check frequencies define how often a rule is due for evaluation.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyOnce    = "once"
)

// Metric keys known to the catalog. Rules referencing anything else are
// rejected at authoring time.
const (
	MetricAttendanceRate        = "attendance_rate"
	MetricGradeAverage          = "grade_average"
	MetricFeeBalance            = "fee_balance"
	MetricFeeOverdueCount       = "fee_overdue_count"
	MetricBehaviorNegativeCount = "behavior_negative_count"
	MetricBehaviorPoints        = "behavior_points"
)

// Delivery audiences for dispatch intents.
const (
	AudienceAdmin   = "admin"
	AudienceTeacher = "teacher"
	AudienceParent  = "parent"
)

// Delivery channels. The in-app channel is always emitted for new
// notifications; email and SMS follow the rule's channel flags.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
