package entities

import "time"

// AlertNotification records one detected breach of an alert rule.
// Rule context (name, type, severity) and scope are snapshotted at creation
// time so later edits to the rule do not rewrite notification history.
//
// At most one unresolved notification exists per (rule, scope); repeated
// breaches refresh TriggeredValue/TriggeredAt on the open row. Resolved
// notifications are immutable history.
type AlertNotification struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	RuleID uint `gorm:"not null;index:idx_alert_notifications_rule_scope,priority:1" json:"rule_id"`

	// Snapshot of the owning rule at trigger time.
	RuleName  string `gorm:"size:255;not null" json:"rule_name"`
	AlertType string `gorm:"size:20;not null;index" json:"alert_type"`
	Severity  string `gorm:"size:10;not null;index" json:"severity"`

	Message        string  `gorm:"size:1000;not null" json:"message"`
	TriggeredValue float64 `gorm:"not null" json:"triggered_value"`
	ThresholdValue float64 `gorm:"not null" json:"threshold_value"`

	// Scope snapshot. Empty strings mean school-wide.
	StudentID   string `gorm:"size:64;default:'';index:idx_alert_notifications_rule_scope,priority:2" json:"student_id"`
	StudentName string `gorm:"size:255;default:''" json:"student_name"`
	ClassID     string `gorm:"size:64;default:'';index:idx_alert_notifications_rule_scope,priority:3" json:"class_id"`
	ClassName   string `gorm:"size:255;default:''" json:"class_name"`

	Acknowledged   bool       `gorm:"not null;default:false" json:"is_acknowledged"`
	AcknowledgedBy string     `gorm:"size:128;default:''" json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`

	Resolved        bool       `gorm:"not null;default:false;index:idx_alert_notifications_rule_scope,priority:4" json:"is_resolved"`
	ResolvedBy      string     `gorm:"size:128;default:''" json:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes string     `gorm:"size:1000;default:''" json:"resolution_notes"`

	TriggeredAt time.Time `gorm:"not null;index" json:"triggered_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (AlertNotification) TableName() string {
	return "alert_notifications"
}
