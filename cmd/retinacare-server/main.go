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
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/retinacare/retinacare/internal/config"
	"github.com/retinacare/retinacare/internal/domain/diagnosis"
	"github.com/retinacare/retinacare/internal/domain/identity"
	"github.com/retinacare/retinacare/internal/domain/image"
	"github.com/retinacare/retinacare/internal/domain/patient"
	"github.com/retinacare/retinacare/internal/domain/recommendation"
	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/internal/platform/db"
	"github.com/retinacare/retinacare/internal/platform/inference"
	"github.com/retinacare/retinacare/internal/platform/llm"
	"github.com/retinacare/retinacare/internal/platform/middleware"
	"github.com/retinacare/retinacare/internal/platform/ownership"
	"github.com/retinacare/retinacare/internal/platform/storage"
	"github.com/retinacare/retinacare/pkg/pagination"
)

// diagnosisReaderAdapter adapts the diagnosis repository to the
// recommendation.DiagnosisReader interface, avoiding a circular import
// between the two domain packages.
type diagnosisReaderAdapter struct {
	repo diagnosis.DiagnosisRepository
}

func (a *diagnosisReaderAdapter) Get(ctx context.Context, id uuid.UUID) (*recommendation.DiagnosisRecord, error) {
	d, err := a.repo.GetDetail(ctx, id)
	if err != nil {
		if err == diagnosis.ErrNotFound {
			return nil, recommendation.ErrDiagnosisNotFound
		}
		return nil, err
	}
	return &recommendation.DiagnosisRecord{
		ID:         d.ID,
		PatientID:  d.PatientID,
		Severity:   string(d.Severity),
		Detections: d.Detections,
		Notes:      d.Notes,
	}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "retinacare-server",
		Short: "Retinal care API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	// File storage
	store, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize upload storage")
	}

	// External clients
	inferenceClient := inference.NewClient(inference.Config{
		DetectorURL:   cfg.DetectorURL,
		ClassifierURL: cfg.ClassifierURL,
		Timeout:       cfg.InferenceTimeout(),
		MaxAttempts:   cfg.InferenceMaxRetries,
	}, logger)
	llmClient := llm.NewClient(cfg.LLMURL, cfg.InferenceTimeout(), logger)

	// Ownership resolver and transaction runner
	resolver := ownership.NewResolver(ownership.NewPGLinkReader(pool))
	txRunner := db.NewTxRunner(pool)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.Use(auth.Middleware([]byte(cfg.JWTSecret), auth.PathSkipper(
		"/health",
		"/uploads/",
		"/api/v1/auth/register",
		"/api/v1/auth/login",
		"/api/v1/auth/forgot-password",
		"/api/v1/auth/reset-password",
	)))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Uploaded originals and detector outputs
	e.Static("/uploads", cfg.UploadDir)

	// Repositories
	userRepo := identity.NewUserRepoPG(pool)
	tokenRepo := identity.NewResetTokenRepoPG(pool)
	patientRepo := patient.NewPatientRepoPG(pool)
	imageRepo := image.NewImageRepoPG(pool)
	diagnosisRepo := diagnosis.NewDiagnosisRepoPG(pool)
	imageStore := diagnosis.NewImageStorePG(pool)
	recommendationRepo := recommendation.NewRecommendationRepoPG(pool)

	// Services
	identitySvc := identity.NewService(userRepo, tokenRepo, []byte(cfg.JWTSecret), cfg.TokenTTL())
	patientSvc := patient.NewService(patientRepo, resolver)
	imageSvc := image.NewService(imageRepo, store, resolver, diagnosisRepo, logger)
	diagnosisSvc := diagnosis.NewService(diagnosisRepo, imageStore,
		inferenceClient, inferenceClient, resolver, txRunner, store, logger)
	recommendationSvc := recommendation.NewService(recommendationRepo,
		&diagnosisReaderAdapter{repo: diagnosisRepo}, llmClient, resolver)

	// Routes
	apiV1 := e.Group("/api/v1")
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	image.NewHandler(imageSvc).RegisterRoutes(apiV1)
	diagnosis.NewHandler(diagnosisSvc).RegisterRoutes(apiV1)
	recommendation.NewHandler(recommendationSvc).RegisterRoutes(apiV1)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// httpErrorHandler renders every error in the standard response envelope.
func httpErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "internal server error"
		var errs []string

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
			if list, ok := he.Message.([]string); ok {
				message = "validation failed"
				errs = list
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		resp := &pagination.Response{Message: message, Errors: errs}
		if werr := c.JSON(code, resp); werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}
