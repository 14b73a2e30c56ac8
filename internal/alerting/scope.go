package alerting

import (
	"github.com/campuspulse/campuspulse/internal/datastore/entities"
)

// Scope identifies the entity a rule applies to: a specific student, a
// specific class, or school-wide when both IDs are empty. A rule never
// carries both a class and a student scope.
type Scope struct {
	ClassID   string
	StudentID string
}

// ScopeFromRule extracts the evaluation scope from a rule definition.
func ScopeFromRule(rule *entities.AlertRule) Scope {
	return Scope{
		ClassID:   rule.ScopeClassID,
		StudentID: rule.ScopeStudentID,
	}
}

// SchoolWide reports whether the scope covers the whole school.
func (s Scope) SchoolWide() bool {
	return s.ClassID == "" && s.StudentID == ""
}

// String renders the scope for log fields.
func (s Scope) String() string {
	switch {
	case s.StudentID != "":
		return "student:" + s.StudentID
	case s.ClassID != "":
		return "class:" + s.ClassID
	default:
		return "school"
	}
}
