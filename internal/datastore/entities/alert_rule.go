package entities

import "time"

// AlertRule defines an administrator-configured monitoring condition.
// The engine compares a resolved metric sample against Operator/Threshold
// and raises notifications on breach.
type AlertRule struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Name           string  `gorm:"size:255;not null" json:"name"`
	Description    string  `gorm:"size:1000;default:''" json:"description"`
	AlertType      string  `gorm:"size:20;not null;index" json:"alert_type"`
	Severity       string  `gorm:"size:10;not null" json:"severity"`
	Enabled        bool    `gorm:"not null;index" json:"enabled"`
	BuiltIn        bool    `gorm:"not null;default:false" json:"built_in"`
	Metric         string  `gorm:"size:100;not null" json:"metric"`
	Operator       string  `gorm:"size:30;not null" json:"operator"`
	Threshold      float64 `gorm:"not null" json:"threshold"`
	ScopeClassID   string  `gorm:"size:64;default:''" json:"scope_class_id"`
	ScopeStudentID string  `gorm:"size:64;default:''" json:"scope_student_id"`
	CheckFrequency string  `gorm:"size:10;not null" json:"check_frequency"`

	NotifyAdmin   bool `gorm:"not null;default:true" json:"notify_admin"`
	NotifyTeacher bool `gorm:"not null;default:false" json:"notify_teacher"`
	NotifyParent  bool `gorm:"not null;default:false" json:"notify_parent"`
	EmailEnabled  bool `gorm:"not null;default:false" json:"email_notification"`
	SMSEnabled    bool `gorm:"not null;default:false" json:"sms_notification"`

	// LastEvaluatedAt is written only by the evaluation engine, never by
	// rule-authoring code paths.
	LastEvaluatedAt *time.Time `gorm:"index" json:"last_evaluated_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}
