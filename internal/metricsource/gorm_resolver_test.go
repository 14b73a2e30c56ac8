package metricsource

import (
	"context"
	"testing"
	"time"

	"github.com/campuspulse/campuspulse/internal/alerting"
	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

func setupMetricsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Student{},
		&entities.SchoolClass{},
		&entities.AttendanceRecord{},
		&entities.GradeRecord{},
		&entities.FeeInvoice{},
		&entities.BehaviorNote{},
	))
	return db
}

func TestGormResolver_AttendanceRate(t *testing.T) {
	db := setupMetricsDB(t)
	resolver := NewGormResolver(db)
	yesterday := time.Now().UTC().Add(-24 * time.Hour)

	// S1: 3 of 4 present. S2: 1 of 2 present.
	records := []entities.AttendanceRecord{
		{StudentID: "S1", ClassID: "C1", Date: yesterday, Present: true},
		{StudentID: "S1", ClassID: "C1", Date: yesterday.Add(-24 * time.Hour), Present: true},
		{StudentID: "S1", ClassID: "C1", Date: yesterday.Add(-48 * time.Hour), Present: true},
		{StudentID: "S1", ClassID: "C1", Date: yesterday.Add(-72 * time.Hour), Present: false},
		{StudentID: "S2", ClassID: "C2", Date: yesterday, Present: true},
		{StudentID: "S2", ClassID: "C2", Date: yesterday.Add(-24 * time.Hour), Present: false},
	}
	require.NoError(t, db.Create(&records).Error)

	// School-wide: 4 of 6 present.
	rate, err := resolver.Resolve(context.Background(), alerting.MetricAttendanceRate, alerting.Scope{})
	require.NoError(t, err)
	assert.InDelta(t, 66.67, rate, 0.01)

	// Per student.
	rate, err = resolver.Resolve(context.Background(), alerting.MetricAttendanceRate, alerting.Scope{StudentID: "S1"})
	require.NoError(t, err)
	assert.InDelta(t, 75, rate, 0.01)

	// Per class.
	rate, err = resolver.Resolve(context.Background(), alerting.MetricAttendanceRate, alerting.Scope{ClassID: "C2"})
	require.NoError(t, err)
	assert.InDelta(t, 50, rate, 0.01)
}

func TestGormResolver_AttendanceIgnoresRecordsOutsideWindow(t *testing.T) {
	db := setupMetricsDB(t)
	resolver := NewGormResolver(db)

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-24 * time.Hour)
	records := []entities.AttendanceRecord{
		{StudentID: "S1", Date: old, Present: false},
		{StudentID: "S1", Date: recent, Present: true},
	}
	require.NoError(t, db.Create(&records).Error)

	rate, err := resolver.Resolve(context.Background(), alerting.MetricAttendanceRate, alerting.Scope{})
	require.NoError(t, err)
	assert.InDelta(t, 100, rate, 0.01, "records older than the trailing window must not count")
}

func TestGormResolver_AttendanceUnavailableWithoutRecords(t *testing.T) {
	resolver := NewGormResolver(setupMetricsDB(t))

	_, err := resolver.Resolve(context.Background(), alerting.MetricAttendanceRate, alerting.Scope{})
	require.Error(t, err)
	assert.ErrorIs(t, err, alerting.ErrMetricUnavailable)
}

func TestGormResolver_GradeAverage(t *testing.T) {
	db := setupMetricsDB(t)
	resolver := NewGormResolver(db)
	now := time.Now().UTC()

	records := []entities.GradeRecord{
		{StudentID: "S1", ClassID: "C1", Score: 40, MaxScore: 100, GradedAt: now},
		{StudentID: "S1", ClassID: "C1", Score: 30, MaxScore: 50, GradedAt: now},
		{StudentID: "S2", ClassID: "C2", Score: 90, MaxScore: 100, GradedAt: now},
	}
	require.NoError(t, db.Create(&records).Error)

	// S1 average: (40 + 60) / 2 = 50.
	avg, err := resolver.Resolve(context.Background(), alerting.MetricGradeAverage, alerting.Scope{StudentID: "S1"})
	require.NoError(t, err)
	assert.InDelta(t, 50, avg, 0.01)

	// School-wide: (40 + 60 + 90) / 3.
	avg, err = resolver.Resolve(context.Background(), alerting.MetricGradeAverage, alerting.Scope{})
	require.NoError(t, err)
	assert.InDelta(t, 63.33, avg, 0.01)
}

func TestGormResolver_GradeAverageUnavailableWithoutRecords(t *testing.T) {
	resolver := NewGormResolver(setupMetricsDB(t))
	_, err := resolver.Resolve(context.Background(), alerting.MetricGradeAverage, alerting.Scope{})
	assert.ErrorIs(t, err, alerting.ErrMetricUnavailable)
}

func TestGormResolver_FeeMetrics(t *testing.T) {
	db := setupMetricsDB(t)
	resolver := NewGormResolver(db)
	now := time.Now().UTC()

	invoices := []entities.FeeInvoice{
		// Overdue with balance.
		{StudentID: "S1", AmountDue: 500, AmountPaid: 100, DueDate: now.Add(-72 * time.Hour)},
		// Overdue but fully paid.
		{StudentID: "S1", AmountDue: 200, AmountPaid: 200, DueDate: now.Add(-72 * time.Hour)},
		// Not yet due with balance.
		{StudentID: "S2", AmountDue: 300, AmountPaid: 0, DueDate: now.Add(72 * time.Hour)},
	}
	require.NoError(t, db.Create(&invoices).Error)

	balance, err := resolver.Resolve(context.Background(), alerting.MetricFeeBalance, alerting.Scope{})
	require.NoError(t, err)
	assert.InDelta(t, 700, balance, 0.01)

	balance, err = resolver.Resolve(context.Background(), alerting.MetricFeeBalance, alerting.Scope{StudentID: "S1"})
	require.NoError(t, err)
	assert.InDelta(t, 400, balance, 0.01)

	overdue, err := resolver.Resolve(context.Background(), alerting.MetricFeeOverdueCount, alerting.Scope{})
	require.NoError(t, err)
	assert.InDelta(t, 1, overdue, 0.01)
}

func TestGormResolver_FeeBalanceZeroWithoutInvoices(t *testing.T) {
	resolver := NewGormResolver(setupMetricsDB(t))

	// No invoices means nothing owed; this is a valid zero, not
	// an unavailable metric.
	balance, err := resolver.Resolve(context.Background(), alerting.MetricFeeBalance, alerting.Scope{})
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestGormResolver_BehaviorMetrics(t *testing.T) {
	db := setupMetricsDB(t)
	resolver := NewGormResolver(db)
	recent := time.Now().UTC().Add(-24 * time.Hour)
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)

	notes := []entities.BehaviorNote{
		{StudentID: "S1", Points: -3, NotedAt: recent},
		{StudentID: "S1", Points: -2, NotedAt: recent},
		{StudentID: "S1", Points: 5, NotedAt: recent},
		{StudentID: "S1", Points: -10, NotedAt: old}, // outside window
		{StudentID: "S2", Points: -1, NotedAt: recent},
	}
	require.NoError(t, db.Create(&notes).Error)

	count, err := resolver.Resolve(context.Background(), alerting.MetricBehaviorNegativeCount, alerting.Scope{StudentID: "S1"})
	require.NoError(t, err)
	assert.InDelta(t, 2, count, 0.01)

	points, err := resolver.Resolve(context.Background(), alerting.MetricBehaviorPoints, alerting.Scope{StudentID: "S1"})
	require.NoError(t, err)
	assert.InDelta(t, 0, points, 0.01)

	points, err = resolver.Resolve(context.Background(), alerting.MetricBehaviorPoints, alerting.Scope{})
	require.NoError(t, err)
	assert.InDelta(t, -1, points, 0.01)
}

func TestGormResolver_UnknownMetric(t *testing.T) {
	resolver := NewGormResolver(setupMetricsDB(t))
	_, err := resolver.Resolve(context.Background(), "lunch_queue_length", alerting.Scope{})
	assert.ErrorIs(t, err, alerting.ErrMetricUnavailable)
}

func TestGormDirectory(t *testing.T) {
	db := setupMetricsDB(t)
	directory := NewGormDirectory(db)

	require.NoError(t, db.Create(&entities.Student{ID: "S1", Name: "Ada Osei", ClassID: "C1"}).Error)
	require.NoError(t, db.Create(&entities.SchoolClass{ID: "C1", Name: "Grade 5 Blue"}).Error)

	name, err := directory.StudentName(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Osei", name)

	name, err = directory.ClassName(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "Grade 5 Blue", name)

	_, err = directory.StudentName(context.Background(), "S404")
	assert.Error(t, err)
	_, err = directory.ClassName(context.Background(), "C404")
	assert.Error(t, err)
}
