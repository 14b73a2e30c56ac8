package entities

import "time"

// Student is the minimal directory entry needed for notification snapshots
// and per-student metric scoping.
type Student struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ClassID   string    `gorm:"size:64;default:'';index" json:"class_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Student) TableName() string {
	return "students"
}

// SchoolClass is a class/section directory entry.
type SchoolClass struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (SchoolClass) TableName() string {
	return "classes"
}

// AttendanceRecord is one student's attendance mark for one day.
type AttendanceRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID string    `gorm:"size:64;not null;index" json:"student_id"`
	ClassID   string    `gorm:"size:64;default:'';index" json:"class_id"`
	Date      time.Time `gorm:"type:date;not null;index" json:"date"`
	Present   bool      `gorm:"not null" json:"present"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

// GradeRecord is a single scored assessment result.
type GradeRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID string    `gorm:"size:64;not null;index" json:"student_id"`
	ClassID   string    `gorm:"size:64;default:'';index" json:"class_id"`
	Subject   string    `gorm:"size:100;default:''" json:"subject"`
	Score     float64   `gorm:"not null" json:"score"`
	MaxScore  float64   `gorm:"not null;default:100" json:"max_score"`
	GradedAt  time.Time `gorm:"not null;index" json:"graded_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (GradeRecord) TableName() string {
	return "grade_records"
}

// FeeInvoice tracks billed and paid amounts per student.
type FeeInvoice struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  string    `gorm:"size:64;not null;index" json:"student_id"`
	ClassID    string    `gorm:"size:64;default:'';index" json:"class_id"`
	AmountDue  float64   `gorm:"not null" json:"amount_due"`
	AmountPaid float64   `gorm:"not null;default:0" json:"amount_paid"`
	DueDate    time.Time `gorm:"type:date;not null;index" json:"due_date"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (FeeInvoice) TableName() string {
	return "fee_invoices"
}

// BehaviorNote captures a behavioural incident or commendation.
// Points are positive for commendations, negative for incidents.
type BehaviorNote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   string    `gorm:"size:64;not null;index" json:"student_id"`
	ClassID     string    `gorm:"size:64;default:'';index" json:"class_id"`
	Points      int       `gorm:"not null" json:"points"`
	Description string    `gorm:"size:1000;default:''" json:"description"`
	NotedAt     time.Time `gorm:"not null;index" json:"noted_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (BehaviorNote) TableName() string {
	return "behavior_notes"
}
