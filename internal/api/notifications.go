package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListNotifications returns notifications matching the query filters,
// newest first, with offset pagination.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	filter := repository.NotificationFilter{
		AlertType: ctx.QueryParam("alert_type"),
		Severity:  ctx.QueryParam("severity"),
		StudentID: ctx.QueryParam("student_id"),
		ClassID:   ctx.QueryParam("class_id"),
	}

	if ruleParam := ctx.QueryParam("rule_id"); ruleParam != "" {
		ruleID, err := strconv.ParseUint(ruleParam, 10, 64)
		if err != nil {
			return errorJSON(ctx, http.StatusBadRequest, "Invalid rule_id")
		}
		filter.RuleID = uint(ruleID)
	}
	if ackParam := ctx.QueryParam("acknowledged"); ackParam != "" {
		v := ackParam == queryValueTrue
		filter.Acknowledged = &v
	}
	if resolvedParam := ctx.QueryParam("resolved"); resolvedParam != "" {
		v := resolvedParam == queryValueTrue
		filter.Resolved = &v
	}

	filter.Limit = defaultPageSize
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			return errorJSON(ctx, http.StatusBadRequest, "Invalid limit")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		filter.Limit = limit
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		offset, err := strconv.Atoi(offsetParam)
		if err != nil || offset < 0 {
			return errorJSON(ctx, http.StatusBadRequest, "Invalid offset")
		}
		filter.Offset = offset
	}

	notifications, total, err := c.notifs.List(ctx.Request().Context(), filter)
	if err != nil {
		c.log.Error("failed to list notifications", zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to list notifications")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": notifications,
		"total":         total,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})
}

// GetNotification returns a single notification by ID.
func (c *Controller) GetNotification(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid notification ID")
	}

	notification, err := c.notifs.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return errorJSON(ctx, http.StatusNotFound, "Notification not found")
		}
		c.log.Error("failed to get notification", zap.Uint("notification_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to get notification")
	}

	return ctx.JSON(http.StatusOK, notification)
}

// AcknowledgeNotification marks an open notification as seen by a staff
// member. Repeated acknowledgments and acknowledgments of resolved
// notifications are conflicts.
func (c *Controller) AcknowledgeNotification(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid notification ID")
	}

	var body struct {
		AcknowledgedBy string `json:"acknowledged_by"`
	}
	if err := ctx.Bind(&body); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}
	if body.AcknowledgedBy == "" {
		return errorJSON(ctx, http.StatusBadRequest, "acknowledged_by is required")
	}

	err = c.notifier.Acknowledge(ctx.Request().Context(), id, body.AcknowledgedBy)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotificationNotFound):
		return errorJSON(ctx, http.StatusNotFound, "Notification not found")
	case errors.Is(err, repository.ErrAlreadyResolved):
		return errorJSON(ctx, http.StatusConflict, "Notification is already resolved")
	case errors.Is(err, repository.ErrAlreadyAcknowledged):
		return errorJSON(ctx, http.StatusConflict, "Notification is already acknowledged")
	default:
		c.log.Error("failed to acknowledge notification", zap.Uint("notification_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to acknowledge notification")
	}

	notification, err := c.notifs.Get(ctx.Request().Context(), id)
	if err != nil {
		c.log.Error("failed to reload notification", zap.Uint("notification_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to load notification")
	}
	return ctx.JSON(http.StatusOK, notification)
}

// ResolveNotification closes a notification. Resolution is terminal and can
// happen from either the open or acknowledged state.
func (c *Controller) ResolveNotification(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid notification ID")
	}

	var body struct {
		ResolvedBy      string `json:"resolved_by"`
		ResolutionNotes string `json:"resolution_notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}
	if body.ResolvedBy == "" {
		return errorJSON(ctx, http.StatusBadRequest, "resolved_by is required")
	}

	err = c.notifier.Resolve(ctx.Request().Context(), id, body.ResolvedBy, body.ResolutionNotes)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotificationNotFound):
		return errorJSON(ctx, http.StatusNotFound, "Notification not found")
	case errors.Is(err, repository.ErrAlreadyResolved):
		return errorJSON(ctx, http.StatusConflict, "Notification is already resolved")
	default:
		c.log.Error("failed to resolve notification", zap.Uint("notification_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to resolve notification")
	}

	notification, err := c.notifs.Get(ctx.Request().Context(), id)
	if err != nil {
		c.log.Error("failed to reload notification", zap.Uint("notification_id", id), zap.Error(err))
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to load notification")
	}
	return ctx.JSON(http.StatusOK, notification)
}
