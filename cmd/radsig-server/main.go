package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/radpacs/radpacs/internal/config"
	"github.com/radpacs/radpacs/internal/domain/report"
	"github.com/radpacs/radpacs/internal/domain/signature"
	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/internal/platform/authority"
	"github.com/radpacs/radpacs/internal/platform/compliance"
	"github.com/radpacs/radpacs/internal/platform/db"
	"github.com/radpacs/radpacs/internal/platform/middleware"
	"github.com/radpacs/radpacs/internal/platform/objectstore"
	"github.com/radpacs/radpacs/internal/platform/retention"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radsig-server",
		Short: "Radiology signature and compliance audit server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(retentionCmd())
	rootCmd.AddCommand(authorityCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the signature API server",
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
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
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
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
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

// retentionCmd runs the export and purge cycles as one-shot jobs, for
// operators who schedule them externally instead of relying on the in-process
// ticker started by serve.
func retentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Run audit log retention jobs",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export unexported audit events to the configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			exporter, pool, err := buildExporter(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := exporter.ExportOnce(ctx)
			if err != nil {
				return fmt.Errorf("export failed after %d event(s): %w", n, err)
			}
			fmt.Printf("Exported %d event(s).\n", n)
			return nil
		},
	}
	cmd.AddCommand(exportCmd)

	enforceCmd := &cobra.Command{
		Use:   "enforce",
		Short: "Purge exported audit events past their retention horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			exporter, pool, err := buildExporter(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := exporter.EnforceRetention(ctx)
			if err != nil {
				return fmt.Errorf("retention enforcement failed after %d event(s): %w", n, err)
			}
			fmt.Printf("Purged %d event(s).\n", n)
			return nil
		},
	}
	cmd.AddCommand(enforceCmd)

	return cmd
}

func authorityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authority",
		Short: "Manage signing authority grants",
	}

	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant signing authority to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			signerID, _ := cmd.Flags().GetString("signer")
			role, _ := cmd.Flags().GetString("role")
			grantedBy, _ := cmd.Flags().GetString("granted-by")
			if signerID == "" || role == "" {
				return fmt.Errorf("--signer and --role are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := authority.NewDirectoryPG(pool).Grant(ctx, signerID, role, grantedBy); err != nil {
				return err
			}
			fmt.Printf("Granted signing authority: %s (%s)\n", signerID, role)
			return nil
		},
	}
	grantCmd.Flags().String("signer", "", "Signer user ID")
	grantCmd.Flags().String("role", "", "Role the grant applies to")
	grantCmd.Flags().String("granted-by", "cli", "Identity recording the grant")
	cmd.AddCommand(grantCmd)

	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke signing authority from a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			signerID, _ := cmd.Flags().GetString("signer")
			role, _ := cmd.Flags().GetString("role")
			if signerID == "" || role == "" {
				return fmt.Errorf("--signer and --role are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := authority.NewDirectoryPG(pool).Revoke(ctx, signerID, role); err != nil {
				return err
			}
			fmt.Printf("Revoked signing authority: %s (%s)\n", signerID, role)
			return nil
		},
	}
	revokeCmd.Flags().String("signer", "", "Signer user ID")
	revokeCmd.Flags().String("role", "", "Role the grant applies to")
	cmd.AddCommand(revokeCmd)

	return cmd
}

// buildExporter wires a store, sink and policy service from config for the
// one-shot retention commands.
func buildExporter(ctx context.Context) (*retention.Exporter, *pgxpool.Pool, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}

	store := compliance.NewEventStorePG(pool)
	policies := retention.NewService(retention.DefaultPolicies(cfg.RetentionDays, cfg.OpsRetentionDays), logger)
	exporter := retention.NewExporter(store, exportSink(cfg, logger), policies, cfg.ExportBatchSize, logger)
	return exporter, pool, nil
}

// exportSink picks the collector when one is configured, otherwise falls back
// to an in-memory object store so export cycles still complete in
// environments without an archive.
func exportSink(cfg *config.Config, logger zerolog.Logger) retention.ExportSink {
	if cfg.CollectorURL != "" {
		return retention.NewCollectorSink(cfg.CollectorURL, cfg.CollectorAPIKey, logger)
	}
	logger.Warn().Msg("COLLECTOR_URL not set, exporting audit batches to in-memory object store")
	return retention.NewObjectSink(objectstore.NewInMemoryStore())
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Compliance audit pipeline. Every domain service and the request
	// middleware emit through this logger; it must be closed last so
	// shutdown-time events still drain to the store.
	eventStore := compliance.NewEventStorePG(pool)
	auditLogger := compliance.NewLogger(compliance.LoggerConfig{
		Service:     cfg.ServiceName,
		Version:     cfg.ServiceVersion,
		Environment: cfg.Env,
		QueueSize:   cfg.AuditQueueSize,
		Workers:     cfg.AuditWorkers,
	}, eventStore, logger)
	defer auditLogger.Close()

	// Signing authority directory
	authorityDir := authority.NewDirectoryPG(pool)

	// Domain services
	registry := signature.NewRegistry(signature.NewRepoPG(pool), authorityDir, auditLogger, logger)
	signatureHandler := signature.NewHandler(registry)

	reportSvc := report.NewService(report.NewRepoPG(pool), logger)
	reportHandler := report.NewHandler(reportSvc)

	// Retention: policies, exporter loop, admin endpoints
	policies := retention.NewService(retention.DefaultPolicies(cfg.RetentionDays, cfg.OpsRetentionDays), logger)
	exporter := retention.NewExporter(eventStore, exportSink(cfg, logger), policies, cfg.ExportBatchSize, logger)
	retentionHandler := retention.NewHandler(policies, exporter)

	exporterCtx, stopExporter := context.WithCancel(ctx)
	defer stopExporter()
	go exporter.Run(exporterCtx, cfg.ExportInterval)

	complianceHandler := compliance.NewHandler(eventStore, auditLogger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger, auditLogger))
	e.Use(middleware.Correlation())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(0))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Correlation-ID", "X-Break-Glass"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}
	e.Use(middleware.BreakGlass(logger, auditLogger))

	// API routes. Access auditing covers everything under /api/v1.
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.AccessAudit(auditLogger))

	signatureHandler.RegisterRoutes(apiV1)
	reportHandler.RegisterRoutes(apiV1)
	complianceHandler.RegisterRoutes(apiV1)
	retentionHandler.RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": cfg.ServiceName,
			"version": cfg.ServiceVersion,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopExporter()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
