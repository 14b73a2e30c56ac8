package api

import (
	"errors"
	"net/http"

	"github.com/campuspulse/campuspulse/internal/alerting"
	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetAlertSchema returns the rule-authoring schema.
func (c *Controller) GetAlertSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, alerting.GetSchema())
}

// ListAlertRules returns all alert rules, optionally filtered.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	filter := repository.AlertRuleFilter{
		AlertType: ctx.QueryParam("alert_type"),
		Severity:  ctx.QueryParam("severity"),
	}
	if enabledParam := ctx.QueryParam("enabled"); enabledParam != "" {
		v := enabledParam == queryValueTrue
		filter.Enabled = &v
	}
	if builtInParam := ctx.QueryParam("built_in"); builtInParam != "" {
		v := builtInParam == queryValueTrue
		filter.BuiltIn = &v
	}

	rules, err := c.rules.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		c.log.Error("failed to list alert rules", zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to list alert rules")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetAlertRule returns a single alert rule by ID.
func (c *Controller) GetAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	rule, err := c.rules.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorJSON(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to get alert rule", zap.Uint("rule_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to get alert rule")
	}

	return ctx.JSON(http.StatusOK, rule)
}

// CreateAlertRule validates and creates a new alert rule.
func (c *Controller) CreateAlertRule(ctx echo.Context) error {
	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}
	rule.ID = 0
	rule.BuiltIn = false
	rule.LastEvaluatedAt = nil

	if err := alerting.ValidateRule(&rule); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	}

	// Prevent duplicate names
	count, err := c.rules.CountRulesByName(ctx.Request().Context(), rule.Name)
	if err != nil {
		c.log.Error("failed to check rule name uniqueness", zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to create alert rule")
	}
	if count > 0 {
		return errorJSON(ctx, http.StatusConflict, "A rule with this name already exists")
	}

	if err := c.rules.CreateRule(ctx.Request().Context(), &rule); err != nil {
		c.log.Error("failed to create alert rule", zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to create alert rule")
	}

	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateAlertRule validates and saves edits to a rule's authored fields.
func (c *Controller) UpdateAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}
	rule.ID = id

	if err := alerting.ValidateRule(&rule); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.rules.UpdateRule(ctx.Request().Context(), &rule); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorJSON(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to update alert rule", zap.Uint("rule_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to update alert rule")
	}

	updated, err := c.rules.GetRule(ctx.Request().Context(), id)
	if err != nil {
		c.log.Error("failed to reload alert rule", zap.Uint("rule_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to update alert rule")
	}
	return ctx.JSON(http.StatusOK, updated)
}

// ToggleAlertRule enables or disables a rule.
func (c *Controller) ToggleAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	if err := c.rules.ToggleRule(ctx.Request().Context(), id, body.Enabled); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorJSON(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to toggle alert rule", zap.Uint("rule_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to toggle alert rule")
	}

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

// DeleteAlertRule removes a rule.
func (c *Controller) DeleteAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	if err := c.rules.DeleteRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorJSON(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to delete alert rule", zap.Uint("rule_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to delete alert rule")
	}

	return ctx.NoContent(http.StatusNoContent)
}

// EvaluateAlertRule forces an out-of-band evaluation of one rule. A run
// already in flight surfaces as a conflict.
func (c *Controller) EvaluateAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	outcome, err := c.scheduler.EvaluateNow(ctx.Request().Context(), id)
	switch {
	case err == nil:
		return ctx.JSON(http.StatusOK, outcome)
	case errors.Is(err, repository.ErrAlertRuleNotFound):
		return errorJSON(ctx, http.StatusNotFound, "Alert rule not found")
	case errors.Is(err, alerting.ErrRuleDisabled):
		return errorJSON(ctx, http.StatusConflict, "Alert rule is disabled")
	case errors.Is(err, alerting.ErrLeaseHeld):
		return errorJSON(ctx, http.StatusConflict, "An evaluation of this rule is already running")
	case alerting.IsMetricUnavailable(err):
		return errorJSON(ctx, http.StatusBadGateway, "Metric is currently unavailable")
	default:
		c.log.Error("manual evaluation failed", zap.Uint("rule_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Evaluation failed")
	}
}
