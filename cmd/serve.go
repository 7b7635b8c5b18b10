package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/config"
	"github.com/xiaot623/studybuddy/internal/dialog"
	"github.com/xiaot623/studybuddy/internal/gateway"
	"github.com/xiaot623/studybuddy/internal/hub"
	"github.com/xiaot623/studybuddy/internal/observability"
	"github.com/xiaot623/studybuddy/internal/policy"
	"github.com/xiaot623/studybuddy/internal/reminder"
	"github.com/xiaot623/studybuddy/internal/repository"
	"github.com/xiaot623/studybuddy/internal/session"
	transporthttp "github.com/xiaot623/studybuddy/internal/transport/http"
	v1 "github.com/xiaot623/studybuddy/internal/transport/http/v1"
	"github.com/xiaot623/studybuddy/internal/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server, admin API and reminder scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("ws-port", 8090, "public WebSocket port")
	serveCmd.Flags().Int("admin-port", 8091, "internal admin API port")
	serveCmd.Flags().Int("reminder-interval", 60, "reminder scan interval in minutes")
	_ = viper.BindPFlag(config.KeyWSPort, serveCmd.Flags().Lookup("ws-port"))
	_ = viper.BindPFlag(config.KeyAdminPort, serveCmd.Flags().Lookup("admin-port"))
	_ = viper.BindPFlag(config.KeyReminderInterval, serveCmd.Flags().Lookup("reminder-interval"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := observability.Logger()
	log.Info("starting studybuddy",
		"ws_port", cfg.WSPort,
		"admin_port", cfg.AdminPort,
		"database", cfg.DatabaseURL,
		"timezone", cfg.Location.String(),
		"reminder_interval", cfg.ReminderInterval.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.New(cfg.Location)

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL, repository.WithClock(clk))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	connectionHub := hub.NewHub()
	go connectionHub.Run(ctx)
	gw := gateway.New(connectionHub, clk)

	engine := dialog.New(db, session.NewMemoryStore(clk, cfg.SessionTTL), gw, policyEngine, clk, dialog.Options{
		MaxTitleLength: cfg.MaxTitleLength,
		MaxOpenTasks:   cfg.MaxOpenTasks,
	})

	scheduler, err := reminder.New(db, gw, clk, reminder.Options{Interval: cfg.ReminderInterval})
	if err != nil {
		return fmt.Errorf("failed to initialize reminder scheduler: %w", err)
	}

	publicServer := transporthttp.NewPublicServer(ws.NewServer(cfg, connectionHub, engine))
	adminServer := transporthttp.NewAdminServer(v1.NewHandler(db, scheduler, connectionHub, clk, cfg.MaxTitleLength))

	errCh := make(chan error, 2)
	start := func(name string, e *echo.Echo, port int) {
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start %s server: %w", name, err)
		}
	}
	go start("public", publicServer, cfg.WSPort)
	go start("admin", adminServer, cfg.AdminPort)

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reminder scheduler: %w", err)
	}

	log.Info("studybuddy started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down studybuddy")
	case runErr = <-errCh:
		log.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shutdown public server gracefully", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shutdown admin server gracefully", "error", err)
	}
	scheduler.Stop()

	log.Info("studybuddy stopped")
	return runErr
}
