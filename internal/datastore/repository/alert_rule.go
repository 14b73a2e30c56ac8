package repository

import (
	"context"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
)

// AlertRuleRepository handles alert rule persistence.
//
// The evaluation engine only ever reads rule definitions and writes
// last_evaluated_at; all other mutations belong to the rule-authoring
// boundary (API handlers).
type AlertRuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id uint) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	UpdateRule(ctx context.Context, rule *entities.AlertRule) error
	DeleteRule(ctx context.Context, id uint) error
	ToggleRule(ctx context.Context, id uint, enabled bool) error

	// Engine-facing
	GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error)
	UpdateLastEvaluated(ctx context.Context, id uint, at time.Time) error

	// Import/seeding support
	CountRulesByName(ctx context.Context, name string) (int64, error)
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	AlertType string
	Severity  string
	Enabled   *bool
	BuiltIn   *bool
}
