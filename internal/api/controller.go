// Package api exposes the HTTP surface: rule authoring, notification
// lifecycle actions, manual evaluation, and the rule-authoring schema.
package api

import (
	"net/http"
	"strconv"

	"github.com/campuspulse/campuspulse/internal/alerting"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	queryValueTrue = "true"
)

// Controller wires the HTTP handlers to their collaborators.
type Controller struct {
	echo      *echo.Echo
	rules     repository.AlertRuleRepository
	notifs    repository.NotificationRepository
	notifier  *alerting.Notifier
	scheduler *alerting.Scheduler
	log       *zap.Logger
}

// NewController creates the controller and registers all routes.
func NewController(
	rules repository.AlertRuleRepository,
	notifs repository.NotificationRepository,
	notifier *alerting.Notifier,
	scheduler *alerting.Scheduler,
	log *zap.Logger,
) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		echo:      e,
		rules:     rules,
		notifs:    notifs,
		notifier:  notifier,
		scheduler: scheduler,
		log:       log,
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	api := c.echo.Group("/api/v1")

	alerts := api.Group("/alerts")
	alerts.GET("/schema", c.GetAlertSchema)
	alerts.GET("/rules", c.ListAlertRules)
	alerts.GET("/rules/:id", c.GetAlertRule)
	alerts.POST("/rules", c.CreateAlertRule)
	alerts.PUT("/rules/:id", c.UpdateAlertRule)
	alerts.PATCH("/rules/:id/toggle", c.ToggleAlertRule)
	alerts.DELETE("/rules/:id", c.DeleteAlertRule)
	alerts.POST("/rules/:id/evaluate", c.EvaluateAlertRule)

	notifications := api.Group("/notifications")
	notifications.GET("", c.ListNotifications)
	notifications.GET("/:id", c.GetNotification)
	notifications.POST("/:id/acknowledge", c.AcknowledgeNotification)
	notifications.POST("/:id/resolve", c.ResolveNotification)

	c.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	c.echo.GET("/healthz", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start runs the HTTP listener until it fails or is shut down.
func (c *Controller) Start(listen string) error {
	return c.echo.Start(listen)
}

// Echo exposes the underlying router, primarily for tests.
func (c *Controller) Echo() *echo.Echo {
	return c.echo
}

func parseUintParam(ctx echo.Context, name string) (uint, error) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func errorJSON(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, map[string]string{"error": message})
}
