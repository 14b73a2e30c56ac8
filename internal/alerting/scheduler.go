package alerting

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// defaultTickInterval is how often the scheduler looks for due rules.
	defaultTickInterval = 1 * time.Minute
	// defaultLeaseTTL bounds how long a crashed evaluation can block the
	// next cycle for the same rule.
	defaultLeaseTTL = 2 * time.Minute
	// leaseSweepInterval is how often expired leases are evicted.
	leaseSweepInterval = 30 * time.Second
)

// Evaluation intervals per check frequency. Monthly uses a fixed 30-day
// window rather than calendar months, for determinism.
var frequencyIntervals = map[string]time.Duration{
	FrequencyDaily:   24 * time.Hour,
	FrequencyWeekly:  7 * 24 * time.Hour,
	FrequencyMonthly: 30 * 24 * time.Hour,
}

// OneShotHandler is called when a once-frequency rule has consumed its
// single evaluation. The handler owns the is_active write; typically it is
// wired to AlertRuleRepository.ToggleRule at the composition root.
type OneShotHandler func(ctx context.Context, ruleID uint)

// Scheduler decides which enabled rules are due and runs their evaluations
// with per-rule exclusivity. Distinct rules evaluate in parallel; the same
// rule never evaluates concurrently, enforced by a TTL lease keyed on the
// rule ID shared between scheduled ticks and manual EvaluateNow calls.
type Scheduler struct {
	rules   repository.AlertRuleRepository
	engine  *Engine
	leases  *cache.Cache
	log     *zap.Logger
	oneShot OneShotHandler

	tickInterval time.Duration
	cronSpec     string
	leaseTTL     time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	ticker *time.Ticker
	cr     *cron.Cron
	wg     sync.WaitGroup
}

// SchedulerOption customizes Scheduler construction.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets the scheduler tick period.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithCronSchedule drives ticks from a cron expression instead of a fixed
// interval (e.g. "0 6 * * *" for a daily 06:00 sweep).
func WithCronSchedule(spec string) SchedulerOption {
	return func(s *Scheduler) { s.cronSpec = spec }
}

// WithLeaseTTL sets the per-rule lease timeout.
func WithLeaseTTL(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.leaseTTL = d
		}
	}
}

// WithOneShotHandler wires the deactivation callback for once rules.
func WithOneShotHandler(h OneShotHandler) SchedulerOption {
	return func(s *Scheduler) { s.oneShot = h }
}

// NewScheduler creates a scheduler over the given rule source and engine.
func NewScheduler(rules repository.AlertRuleRepository, engine *Engine, log *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		rules:        rules,
		engine:       engine,
		log:          log,
		tickInterval: defaultTickInterval,
		leaseTTL:     defaultLeaseTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.leases = cache.New(s.leaseTTL, leaseSweepInterval)
	return s
}

// Start begins the scheduling loop. Safe to call once; later calls are
// no-ops until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil || s.cr != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.cronSpec != "" {
		if _, err := cron.ParseStandard(s.cronSpec); err != nil {
			cancel()
			s.cancel = nil
			return fmt.Errorf("invalid cron schedule %q: %w", s.cronSpec, err)
		}
		cr := cron.New()
		_, _ = cr.AddFunc(s.cronSpec, func() { s.cronSweep(loopCtx) })
		cr.Start()
		s.cr = cr
		s.log.Info("scheduler started", zap.String("cron", s.cronSpec))
		return nil
	}

	s.ticker = time.NewTicker(s.tickInterval)
	ticker := s.ticker
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce(loopCtx, time.Now().UTC())
		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				s.runOnce(loopCtx, now.UTC())
			}
		}
	}()
	s.log.Info("scheduler started", zap.Duration("tick_interval", s.tickInterval))
	return nil
}

// Stop halts scheduling and waits for in-flight evaluations to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.cr != nil {
		s.cr.Stop()
		s.cr = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// cronSweep is the cron job body. Cron runs jobs in goroutines the
// scheduler does not own, so the sweep registers itself on the wait group
// under the mutex: either the registration lands before Stop clears s.cr
// and Stop waits for it, or Stop has already run and the sweep bails.
func (s *Scheduler) cronSweep(ctx context.Context) {
	s.mu.Lock()
	if s.cr == nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	s.runOnce(ctx, time.Now().UTC())
}

// runOnce dispatches one evaluation goroutine per due rule. One rule's
// failure never aborts the others: each goroutine carries its own error
// boundary and panic recovery.
func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	metrics.SchedulerTicksTotal.Inc()

	rules, err := s.rules.GetEnabledRules(ctx)
	if err != nil {
		s.log.Error("failed to list enabled rules", zap.Error(err))
		return
	}

	for i := range rules {
		rule := rules[i]
		if !RuleDue(&rule, now) {
			continue
		}
		if !s.acquireLease(rule.ID) {
			// Another evaluation is in flight (e.g. a manual run).
			// Skipped, not queued; the rule is retried next tick.
			metrics.LeaseSkipsTotal.Inc()
			s.log.Debug("skipping rule, lease held", zap.Uint("rule_id", rule.ID))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.releaseLease(rule.ID)
			defer s.recoverPanic(rule.ID)
			s.evaluateOne(ctx, &rule, now)
		}()
	}
}

func (s *Scheduler) evaluateOne(ctx context.Context, rule *entities.AlertRule, now time.Time) {
	outcome, err := s.engine.EvaluateRule(ctx, rule, now)
	if err != nil {
		if IsMetricUnavailable(err) {
			// Transient: rule stays due, one-shot rules stay active.
			return
		}
		s.log.Error("rule evaluation failed",
			zap.Uint("rule_id", rule.ID),
			zap.Error(err),
		)
		return
	}
	s.handleOneShot(ctx, outcome)
}

func (s *Scheduler) handleOneShot(ctx context.Context, outcome Outcome) {
	if !outcome.OneShotConsumed || s.oneShot == nil {
		return
	}
	s.log.Info("one-shot rule consumed, signaling deactivation",
		zap.Uint("rule_id", outcome.RuleID))
	s.oneShot(ctx, outcome.RuleID)
}

// EvaluateNow forces an out-of-band evaluation of one rule, subject to the
// same per-rule lease as scheduled runs. A concurrent evaluation surfaces
// as ErrLeaseHeld; the caller is expected to treat it as "already running".
func (s *Scheduler) EvaluateNow(ctx context.Context, ruleID uint) (Outcome, error) {
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return Outcome{}, err
	}
	if !rule.Enabled {
		return Outcome{}, ErrRuleDisabled
	}
	if !s.acquireLease(ruleID) {
		metrics.LeaseSkipsTotal.Inc()
		return Outcome{}, ErrLeaseHeld
	}
	defer s.releaseLease(ruleID)

	outcome, err := s.engine.EvaluateRule(ctx, rule, time.Now().UTC())
	if err != nil {
		return outcome, err
	}
	s.handleOneShot(ctx, outcome)
	return outcome, nil
}

// acquireLease claims per-rule exclusivity. cache.Add is create-if-absent,
// so exactly one caller wins; the TTL guarantees a crashed evaluation
// cannot block the rule forever.
func (s *Scheduler) acquireLease(ruleID uint) bool {
	return s.leases.Add(leaseKey(ruleID), struct{}{}, s.leaseTTL) == nil
}

func (s *Scheduler) releaseLease(ruleID uint) {
	s.leases.Delete(leaseKey(ruleID))
}

func leaseKey(ruleID uint) string {
	return fmt.Sprintf("rule:%d", ruleID)
}

func (s *Scheduler) recoverPanic(ruleID uint) {
	if r := recover(); r != nil {
		metrics.PanicsRecovered.WithLabelValues("evaluation").Inc()
		s.log.Error("panic recovered in rule evaluation",
			zap.Uint("rule_id", ruleID),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}

// RuleDue reports whether a rule is due for evaluation at now. Rules never
// evaluated are always due. Once rules are due exactly until their first
// completed evaluation.
func RuleDue(rule *entities.AlertRule, now time.Time) bool {
	if rule.LastEvaluatedAt == nil {
		return true
	}
	if rule.CheckFrequency == FrequencyOnce {
		return false
	}
	interval, ok := frequencyIntervals[rule.CheckFrequency]
	if !ok {
		return false
	}
	return now.Sub(*rule.LastEvaluatedAt) >= interval
}
