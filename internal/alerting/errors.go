package alerting

import "errors"

var (
	// ErrMetricUnavailable indicates the metric resolver failed or timed
	// out. The rule's last_evaluated_at is not advanced so it stays
	// eligible for retry on the next tick.
	ErrMetricUnavailable = errors.New("metric unavailable")

	// ErrLeaseHeld indicates another evaluation of the same rule is in
	// flight. Scheduled runs skip silently; manual runs surface it.
	ErrLeaseHeld = errors.New("evaluation lease held by another run")

	// ErrRuleDisabled indicates a manual evaluation was requested for a
	// rule that is not active.
	ErrRuleDisabled = errors.New("alert rule is disabled")

	// ErrInvalidRuleConfig wraps rule-authoring validation failures.
	ErrInvalidRuleConfig = errors.New("invalid alert rule configuration")
)
