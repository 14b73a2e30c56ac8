package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockRuleRepo is a minimal in-memory AlertRuleRepository.
type mockRuleRepo struct {
	mu    sync.Mutex
	rules map[uint]*entities.AlertRule
	// toggles records ToggleRule calls as (id, enabled) pairs.
	toggles []uint
}

func newMockRuleRepo(rules ...*entities.AlertRule) *mockRuleRepo {
	m := &mockRuleRepo{rules: make(map[uint]*entities.AlertRule)}
	for _, rule := range rules {
		m.rules[rule.ID] = rule
	}
	return m
}

func (m *mockRuleRepo) ListRules(_ context.Context, _ repository.AlertRuleFilter) ([]entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.AlertRule, 0, len(m.rules))
	for _, rule := range m.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (m *mockRuleRepo) GetRule(_ context.Context, id uint) (*entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrAlertRuleNotFound
	}
	cp := *rule
	return &cp, nil
}

func (m *mockRuleRepo) CreateRule(_ context.Context, rule *entities.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = uint(len(m.rules) + 1)
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) UpdateRule(_ context.Context, rule *entities.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return repository.ErrAlertRuleNotFound
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) DeleteRule(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return repository.ErrAlertRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *mockRuleRepo) ToggleRule(_ context.Context, id uint, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return repository.ErrAlertRuleNotFound
	}
	rule.Enabled = enabled
	m.toggles = append(m.toggles, id)
	return nil
}

func (m *mockRuleRepo) GetEnabledRules(_ context.Context) ([]entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertRule
	for _, rule := range m.rules {
		if rule.Enabled {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) UpdateLastEvaluated(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return repository.ErrAlertRuleNotFound
	}
	t := at
	rule.LastEvaluatedAt = &t
	return nil
}

func (m *mockRuleRepo) CountRulesByName(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, rule := range m.rules {
		if rule.Name == name {
			count++
		}
	}
	return count, nil
}

func (m *mockRuleRepo) lastEvaluated(id uint) *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[id].LastEvaluatedAt
}

// mockResolver returns canned values or errors per metric key.
type mockResolver struct {
	mu     sync.Mutex
	values map[string]float64
	errs   map[string]error
	calls  int
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		values: make(map[string]float64),
		errs:   make(map[string]error),
	}
}

func (m *mockResolver) Resolve(_ context.Context, metric string, _ Scope) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.errs[metric]; ok {
		return 0, err
	}
	return m.values[metric], nil
}

// mockNotificationRepo is an in-memory NotificationRepository honoring the
// dedup and lifecycle contracts.
type mockNotificationRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*entities.AlertNotification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{nextID: 1, rows: make(map[uint]*entities.AlertNotification)}
}

func (m *mockNotificationRepo) FindOpen(_ context.Context, ruleID uint, studentID, classID string) (*entities.AlertNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.RuleID == ruleID && n.StudentID == studentID && n.ClassID == classID && !n.Resolved {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockNotificationRepo) Create(_ context.Context, n *entities.AlertNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.nextID
	m.nextID++
	cp := *n
	m.rows[n.ID] = &cp
	return nil
}

func (m *mockNotificationRepo) RefreshTrigger(_ context.Context, id uint, value float64, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return repository.ErrNotificationNotFound
	}
	if n.Resolved {
		return repository.ErrAlreadyResolved
	}
	n.TriggeredValue = value
	n.Message = message
	n.TriggeredAt = at
	return nil
}

func (m *mockNotificationRepo) Acknowledge(_ context.Context, id uint, actor string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return repository.ErrNotificationNotFound
	}
	if n.Resolved {
		return repository.ErrAlreadyResolved
	}
	if n.Acknowledged {
		return repository.ErrAlreadyAcknowledged
	}
	n.Acknowledged = true
	n.AcknowledgedBy = actor
	t := at
	n.AcknowledgedAt = &t
	return nil
}

func (m *mockNotificationRepo) Resolve(_ context.Context, id uint, actor, notes string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return repository.ErrNotificationNotFound
	}
	if n.Resolved {
		return repository.ErrAlreadyResolved
	}
	n.Resolved = true
	n.ResolvedBy = actor
	n.ResolutionNotes = notes
	t := at
	n.ResolvedAt = &t
	return nil
}

func (m *mockNotificationRepo) Get(_ context.Context, id uint) (*entities.AlertNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotificationRepo) List(_ context.Context, _ repository.NotificationFilter) ([]entities.AlertNotification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.AlertNotification, 0, len(m.rows))
	for _, n := range m.rows {
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (m *mockNotificationRepo) CountOpen(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.rows {
		if !n.Resolved {
			count++
		}
	}
	return count, nil
}

func attendanceRule(id uint) *entities.AlertRule {
	return &entities.AlertRule{
		ID:             id,
		Name:           "Low attendance",
		AlertType:      AlertTypeAttendance,
		Severity:       SeverityHigh,
		Enabled:        true,
		Metric:         MetricAttendanceRate,
		Operator:       OperatorLessThan,
		Threshold:      75,
		CheckFrequency: FrequencyDaily,
		NotifyAdmin:    true,
	}
}

func newTestEngine(rules *mockRuleRepo, resolver MetricResolver, notifRepo repository.NotificationRepository, bus *DispatchBus) *Engine {
	notifier := NewNotifier(notifRepo, nil, zap.NewNop())
	return NewEngine(rules, resolver, notifier, bus, zap.NewNop(),
		WithMetricTimeout(time.Second), WithMetricRetries(0))
}

func TestEngine_BreachCreatesNotification(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 62
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	now := time.Now().UTC()
	outcome, err := engine.EvaluateRule(context.Background(), rule, now)
	require.NoError(t, err)

	assert.True(t, outcome.Breached)
	assert.True(t, outcome.Created)
	assert.InDelta(t, 62, outcome.Value, 0.001)
	require.NotZero(t, outcome.NotificationID)

	n, err := notifRepo.Get(context.Background(), outcome.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, n.RuleID)
	assert.Equal(t, "Low attendance", n.RuleName)
	assert.Equal(t, AlertTypeAttendance, n.AlertType)
	assert.Equal(t, SeverityHigh, n.Severity)
	assert.InDelta(t, 62, n.TriggeredValue, 0.001)
	assert.InDelta(t, 75, n.ThresholdValue, 0.001)
	assert.Contains(t, n.Message, "Attendance Rate")
	assert.Contains(t, n.Message, "fell below")
	assert.False(t, n.Acknowledged)
	assert.False(t, n.Resolved)

	last := repo.lastEvaluated(rule.ID)
	require.NotNil(t, last)
	assert.Equal(t, now, *last)
}

func TestEngine_NoBreachNoNotification(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 92
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	outcome, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)

	assert.False(t, outcome.Breached)
	assert.Zero(t, outcome.NotificationID)
	count, _ := notifRepo.CountOpen(context.Background())
	assert.Zero(t, count)
	assert.NotNil(t, repo.lastEvaluated(rule.ID))
}

func TestEngine_RepeatedBreachRefreshesOpenNotification(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 62
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	first, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, first.Created)

	resolver.values[MetricAttendanceRate] = 58
	later := time.Now().UTC().Add(24 * time.Hour)
	second, err := engine.EvaluateRule(context.Background(), rule, later)
	require.NoError(t, err)

	assert.False(t, second.Created, "repeated breach must not create a duplicate")
	assert.Equal(t, first.NotificationID, second.NotificationID)

	n, err := notifRepo.Get(context.Background(), first.NotificationID)
	require.NoError(t, err)
	assert.InDelta(t, 58, n.TriggeredValue, 0.001)
	assert.Equal(t, later, n.TriggeredAt)

	count, _ := notifRepo.CountOpen(context.Background())
	assert.EqualValues(t, 1, count)
}

func TestEngine_BreachAfterResolutionCreatesNewNotification(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 62
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	first, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, first.Created)

	require.NoError(t, notifRepo.Resolve(context.Background(), first.NotificationID, "principal", "spoke with families", time.Now().UTC()))

	second, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.NotificationID, second.NotificationID)
}

func TestEngine_RecoveryDoesNotAutoResolve(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 62
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	first, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, first.Created)

	// Metric recovers above threshold; the open notification must stay open.
	resolver.values[MetricAttendanceRate] = 90
	outcome, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, outcome.Breached)

	n, err := notifRepo.Get(context.Background(), first.NotificationID)
	require.NoError(t, err)
	assert.False(t, n.Resolved)
}

func TestEngine_MetricUnavailableLeavesRuleDue(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.errs[MetricAttendanceRate] = fmt.Errorf("source offline")
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	_, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, IsMetricUnavailable(err))

	// last_evaluated_at must not advance, so the rule is retried next tick.
	assert.Nil(t, repo.lastEvaluated(rule.ID))
	count, _ := notifRepo.CountOpen(context.Background())
	assert.Zero(t, count)
}

func TestEngine_MetricResolutionRetries(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.errs[MetricAttendanceRate] = fmt.Errorf("flaky source")
	notifRepo := newMockNotificationRepo()

	notifier := NewNotifier(notifRepo, nil, zap.NewNop())
	engine := NewEngine(repo, resolver, notifier, nil, zap.NewNop(),
		WithMetricTimeout(time.Second), WithMetricRetries(2))

	_, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.Error(t, err)

	resolver.mu.Lock()
	calls := resolver.calls
	resolver.mu.Unlock()
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestEngine_DisabledMidRunSkipsNotificationWrite(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 62
	notifRepo := newMockNotificationRepo()
	engine := newTestEngine(repo, resolver, notifRepo, nil)

	// Simulate deactivation between scheduling and the notification write.
	require.NoError(t, repo.ToggleRule(context.Background(), rule.ID, false))

	outcome, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, outcome.Breached)
	assert.Zero(t, outcome.NotificationID)

	count, _ := notifRepo.CountOpen(context.Background())
	assert.Zero(t, count)
}

func TestEngine_DispatchOnlyOnFirstCreation(t *testing.T) {
	rule := attendanceRule(1)
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 62
	notifRepo := newMockNotificationRepo()

	bus := NewDispatchBus(10)
	defer bus.Stop()
	intents := make(chan *DeliveryIntent, 10)
	bus.Subscribe(func(intent *DeliveryIntent) { intents <- intent })

	engine := newTestEngine(repo, resolver, notifRepo, bus)

	_, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)

	select {
	case intent := <-intents:
		assert.Equal(t, AudienceAdmin, intent.Audience)
		assert.Equal(t, ChannelInApp, intent.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a delivery intent for the new notification")
	}

	// Second breach refreshes; no re-dispatch.
	_, err = engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)

	select {
	case intent := <-intents:
		t.Fatalf("unexpected intent %q for refreshed notification", intent.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngine_OneShotOutcome(t *testing.T) {
	rule := attendanceRule(1)
	rule.CheckFrequency = FrequencyOnce
	repo := newMockRuleRepo(rule)
	resolver := newMockResolver()
	resolver.values[MetricAttendanceRate] = 92
	engine := newTestEngine(repo, resolver, newMockNotificationRepo(), nil)

	outcome, err := engine.EvaluateRule(context.Background(), rule, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, outcome.OneShotConsumed)
}
