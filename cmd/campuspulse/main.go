// campuspulse is the alert rule evaluation and notification service for
// school operational metrics. It watches attendance, grades, fees and
// behavior data, raises notifications when rules breach, and serves the
// rule-authoring and notification lifecycle API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campuspulse/campuspulse/internal/alerting"
	"github.com/campuspulse/campuspulse/internal/api"
	"github.com/campuspulse/campuspulse/internal/conf"
	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/campuspulse/campuspulse/internal/datastore/repository"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/campuspulse/campuspulse/internal/metricsource"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "campuspulse",
		Short:         "School metrics alerting engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := conf.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServe(cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("campuspulse %s (built %s)\n", version, buildDate)
		},
	}

	root.AddCommand(serve, versionCmd)
	return root
}

func runServe(cfg *conf.Config) error {
	log, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(
		&entities.AlertRule{},
		&entities.AlertNotification{},
		&entities.Student{},
		&entities.SchoolClass{},
		&entities.AttendanceRecord{},
		&entities.GradeRecord{},
		&entities.FeeInvoice{},
		&entities.BehaviorNote{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	rules := repository.NewAlertRuleRepository(db)
	notifs := repository.NewNotificationRepository(db)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Engine.SeedDefaults {
		if err := alerting.SeedDefaultRules(ctx, rules, log); err != nil {
			return fmt.Errorf("seed default rules: %w", err)
		}
	}

	// The open-notifications gauge must reflect rows that predate this
	// process, or it drifts negative as old notifications are resolved.
	openCount, err := notifs.CountOpen(ctx)
	if err != nil {
		return fmt.Errorf("count open notifications: %w", err)
	}
	metrics.OpenNotifications.Set(float64(openCount))

	notifier := alerting.NewNotifier(notifs, metricsource.NewGormDirectory(db), log)

	bus := alerting.NewDispatchBus(cfg.Engine.DispatchBuffer)
	bus.Subscribe(func(intent *alerting.DeliveryIntent) {
		log.Info("delivery intent",
			zap.String("intent_id", intent.ID),
			zap.Uint("notification_id", intent.NotificationID),
			zap.String("audience", intent.Audience),
			zap.String("channel", intent.Channel),
			zap.String("severity", intent.Severity),
		)
	})
	defer bus.Stop()

	engine := alerting.NewEngine(rules, metricsource.NewGormResolver(db), notifier, bus, log,
		alerting.WithMetricTimeout(cfg.Engine.MetricTimeout.Std()),
		alerting.WithMetricRetries(cfg.Engine.MetricRetries),
	)

	schedOpts := []alerting.SchedulerOption{
		alerting.WithTickInterval(cfg.Engine.TickInterval.Std()),
		alerting.WithLeaseTTL(cfg.Engine.LeaseTTL.Std()),
		alerting.WithOneShotHandler(func(ctx context.Context, ruleID uint) {
			if err := rules.ToggleRule(ctx, ruleID, false); err != nil {
				log.Error("failed to deactivate one-shot rule",
					zap.Uint("rule_id", ruleID), zap.Error(err))
				return
			}
			log.Info("one-shot rule deactivated", zap.Uint("rule_id", ruleID))
		}),
	}
	if cfg.Engine.TickCron != "" {
		schedOpts = append(schedOpts, alerting.WithCronSchedule(cfg.Engine.TickCron))
	}
	scheduler := alerting.NewScheduler(rules, engine, log, schedOpts...)

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	controller := api.NewController(rules, notifs, notifier, scheduler, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("listen", cfg.HTTP.Listen))
		serveErr <- controller.Start(cfg.HTTP.Listen)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := controller.Echo().Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func openDatabase(cfg *conf.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	switch cfg.Database.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.DSN), gormCfg)
	case "mysql":
		return gorm.Open(mysql.Open(cfg.Database.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
