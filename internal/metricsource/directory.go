package metricsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"gorm.io/gorm"
)

// GormDirectory resolves student and class display names for notification
// scope snapshots.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a directory lookup over the given database.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// StudentName returns the display name for a student ID.
func (d *GormDirectory) StudentName(ctx context.Context, studentID string) (string, error) {
	var student entities.Student
	if err := d.db.WithContext(ctx).First(&student, "id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("student %s not found", studentID)
		}
		return "", fmt.Errorf("failed to look up student %s: %w", studentID, err)
	}
	return student.Name, nil
}

// ClassName returns the display name for a class ID.
func (d *GormDirectory) ClassName(ctx context.Context, classID string) (string, error) {
	var class entities.SchoolClass
	if err := d.db.WithContext(ctx).First(&class, "id = ?", classID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("class %s not found", classID)
		}
		return "", fmt.Errorf("failed to look up class %s: %w", classID, err)
	}
	return class.Name, nil
}
