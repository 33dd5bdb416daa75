package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicops/incentive/internal/config"
	"github.com/clinicops/incentive/internal/domain/clinical"
	"github.com/clinicops/incentive/internal/domain/commission"
	"github.com/clinicops/incentive/internal/domain/employee"
	"github.com/clinicops/incentive/internal/domain/target"
	"github.com/clinicops/incentive/internal/domain/team"
	"github.com/clinicops/incentive/internal/platform/db"
	"github.com/clinicops/incentive/internal/platform/middleware"
	"github.com/clinicops/incentive/internal/platform/telemetry"
)

// PoolTransactor adapts a pgxpool to the Transactor interface the domain
// services expect, injecting the transaction through the context so the
// repositories pick it up transparently.
type PoolTransactor struct {
	pool *pgxpool.Pool
}

func (t *PoolTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, t.pool, fn)
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:          cfg.DatabaseURL,
		MaxConns:     cfg.DBMaxConns,
		MinConns:     cfg.DBMinConns,
		HealthPeriod: cfg.DBHealthPeriod,
	}
}

// RetryingNotifier wraps the target increment fast path with a bounded
// retry on transient connectivity failures. Anything else propagates
// immediately; the caller already treats notification as best-effort.
type RetryingNotifier struct {
	next     commission.TargetNotifier
	attempts int
	backoff  time.Duration
}

func (n *RetryingNotifier) CommissionRecorded(ctx context.Context, commissionType string, employeeID uuid.UUID, day time.Time) error {
	return db.WithRetry(ctx, n.attempts, n.backoff, func(ctx context.Context) error {
		return n.next.CommissionRecorded(ctx, commissionType, employeeID, day)
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "incentive-server",
		Short: "Commission and target accounting API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the incentive API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired targets and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := buildTargetService(pool, logger, nil)
			retired, err := svc.Sweep(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("Retired %d expired target(s).\n", retired)
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func buildTargetService(pool *pgxpool.Pool, logger zerolog.Logger, metrics *telemetry.Provider) *target.Service {
	commissionRepo := commission.NewRepoPG(pool)
	clinicalRepo := clinical.NewRepoPG(pool)
	employeeRepo := employee.NewRepoPG(pool)
	calcs := target.NewCalculatorSet(commissionRepo, clinicalRepo)
	return target.NewService(target.NewRepoPG(pool), calcs, employeeRepo, logger, metrics)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.NewProvider("incentive-server", "0.1.0")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, cfg.HealthTimeout))
	e.GET("/metrics", metrics.PrometheusHandler())

	apiV1 := e.Group("/api/v1")

	// -- Wire domain services --
	tx := &PoolTransactor{pool: pool}

	employeeRepo := employee.NewRepoPG(pool)
	clinicalRepo := clinical.NewRepoPG(pool)
	commissionRepo := commission.NewRepoPG(pool)
	targetRepo := target.NewRepoPG(pool)
	teamRepo := team.NewRepoPG(pool)

	calcs := target.NewCalculatorSet(commissionRepo, clinicalRepo)
	targetSvc := target.NewService(targetRepo, calcs, employeeRepo, logger, metrics)
	notifier := &RetryingNotifier{next: targetSvc, attempts: cfg.RetryAttempts, backoff: cfg.RetryBackoff}

	commissionSvc := commission.NewService(
		commissionRepo, employeeRepo, clinicalRepo, clinicalRepo, tx, notifier, logger, metrics)
	teamSvc := team.NewService(teamRepo, employeeRepo, targetRepo, calcs, tx, logger)

	commission.NewHandler(commissionSvc).RegisterRoutes(apiV1)
	target.NewHandler(targetSvc).RegisterRoutes(apiV1)
	team.NewHandler(teamSvc).RegisterRoutes(apiV1)

	// Background sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := target.NewSweeper(targetSvc, cfg.SweepInterval, logger)
	go sweeper.Run(sweepCtx)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server started")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
