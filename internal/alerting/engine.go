package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// defaultMetricTimeout bounds a single metric resolution attempt.
	defaultMetricTimeout = 5 * time.Second
	// defaultMetricRetries bounds retries around a failed resolution.
	defaultMetricRetries = 2
	// retryInitialInterval seeds the exponential backoff between retries.
	retryInitialInterval = 200 * time.Millisecond
)

// MetricResolver resolves a metric key to a numeric sample for a scope.
// Implementations must honor ctx cancellation and return an error wrapping
// ErrMetricUnavailable when the metric cannot be produced.
type MetricResolver interface {
	Resolve(ctx context.Context, metric string, scope Scope) (float64, error)
}

// Outcome summarizes one evaluation of one rule.
type Outcome struct {
	RuleID         uint    `json:"rule_id"`
	Metric         string  `json:"metric"`
	Value          float64 `json:"value"`
	Breached       bool    `json:"breached"`
	NotificationID uint    `json:"notification_id,omitempty"`
	Created        bool    `json:"notification_created"`
	// OneShotConsumed signals that a once-frequency rule has run and
	// should be deactivated by the caller. The engine never flips
	// enabled itself; that write belongs to the rule-mutation boundary.
	OneShotConsumed bool `json:"one_shot_consumed"`
}

// Engine runs one evaluation unit per rule: metric resolution, threshold
// comparison, notification mutation, dispatch. It holds no scheduling
// state; the Scheduler decides when and with what exclusivity EvaluateRule
// is called.
type Engine struct {
	rules    repository.AlertRuleRepository
	resolver MetricResolver
	notifier *Notifier
	bus      *DispatchBus
	log      *zap.Logger

	metricTimeout time.Duration
	metricRetries uint64
}

// EngineOption customizes Engine construction.
type EngineOption func(*Engine)

// WithMetricTimeout overrides the per-attempt metric resolution deadline.
func WithMetricTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.metricTimeout = d
		}
	}
}

// WithMetricRetries overrides the bounded retry count for metric resolution.
func WithMetricRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.metricRetries = uint64(n)
		}
	}
}

// NewEngine creates an evaluation engine with injected collaborators.
// bus may be nil when no dispatch consumer is wired (tests).
func NewEngine(rules repository.AlertRuleRepository, resolver MetricResolver, notifier *Notifier, bus *DispatchBus, log *zap.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		rules:         rules,
		resolver:      resolver,
		notifier:      notifier,
		bus:           bus,
		log:           log,
		metricTimeout: defaultMetricTimeout,
		metricRetries: defaultMetricRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateRule runs one evaluation cycle for one rule. Ordering within the
// unit is fixed: metric resolution, then comparison, then notification
// mutation, then dispatch. last_evaluated_at advances only when resolution
// succeeded, so a rule with an unavailable metric stays due on the next
// tick instead of waiting out a full period.
func (e *Engine) EvaluateRule(ctx context.Context, rule *entities.AlertRule, now time.Time) (Outcome, error) {
	started := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(started).Seconds())
	}()

	outcome := Outcome{
		RuleID:          rule.ID,
		Metric:          rule.Metric,
		OneShotConsumed: rule.CheckFrequency == FrequencyOnce,
	}
	scope := ScopeFromRule(rule)

	value, err := e.resolveWithRetry(ctx, rule.Metric, scope)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("metric_unavailable").Inc()
		e.log.Warn("metric resolution failed, rule stays due for retry",
			zap.Uint("rule_id", rule.ID),
			zap.String("metric", rule.Metric),
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		return outcome, fmt.Errorf("%w: %v", ErrMetricUnavailable, err)
	}
	outcome.Value = value
	outcome.Breached = Evaluate(rule.Operator, value, rule.Threshold)

	if outcome.Breached {
		// The rule may have been deactivated while this evaluation was in
		// flight. Re-check before the notification write so a disabled
		// rule cannot raise new notifications.
		current, err := e.rules.GetRule(ctx, rule.ID)
		if err != nil {
			return outcome, fmt.Errorf("re-check rule %d before notification write: %w", rule.ID, err)
		}
		if !current.Enabled {
			e.log.Info("rule disabled mid-evaluation, notification write skipped",
				zap.Uint("rule_id", rule.ID))
			return outcome, nil
		}

		notification, created, err := e.notifier.RecordBreach(ctx, rule, scope, value, now)
		if err != nil {
			metrics.EvaluationsTotal.WithLabelValues("error").Inc()
			return outcome, fmt.Errorf("record breach for rule %d: %w", rule.ID, err)
		}
		outcome.NotificationID = notification.ID
		outcome.Created = created
		if created {
			metrics.NotificationsCreatedTotal.WithLabelValues(notification.Severity).Inc()
			e.emit(rule, notification)
		} else {
			metrics.NotificationsRefreshedTotal.Inc()
		}
		metrics.EvaluationsTotal.WithLabelValues("breach").Inc()
	} else {
		// A recovered metric does not auto-resolve open notifications;
		// resolution is an explicit human action.
		metrics.EvaluationsTotal.WithLabelValues("ok").Inc()
	}

	if err := e.rules.UpdateLastEvaluated(ctx, rule.ID, now); err != nil {
		return outcome, fmt.Errorf("advance last_evaluated_at for rule %d: %w", rule.ID, err)
	}
	return outcome, nil
}

// resolveWithRetry resolves a metric with a per-attempt timeout and a
// bounded exponential backoff. Context cancellation aborts the retry loop.
func (e *Engine) resolveWithRetry(ctx context.Context, metric string, scope Scope) (float64, error) {
	var value float64
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newRetryBackoff(), e.metricRetries), ctx)

	err := backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.metricTimeout)
		defer cancel()
		v, err := e.resolver.Resolve(attemptCtx, metric, scope)
		if err != nil {
			return err
		}
		value = v
		return nil
	}, policy)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func newRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	return b
}

// emit publishes delivery intents for a newly created notification.
// Refreshed notifications never re-dispatch.
func (e *Engine) emit(rule *entities.AlertRule, notification *entities.AlertNotification) {
	if e.bus == nil {
		return
	}
	for _, intent := range EmitIntents(rule, notification) {
		intent := intent
		e.bus.Publish(&intent)
		metrics.DispatchIntentsTotal.WithLabelValues(intent.Channel).Inc()
	}
}

// IsMetricUnavailable reports whether err is a metric resolution failure.
func IsMetricUnavailable(err error) bool {
	return errors.Is(err, ErrMetricUnavailable)
}
