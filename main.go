package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"carepulse-server/internal/cache"
	"carepulse-server/internal/config"
	"carepulse-server/internal/lifecycle"
	"carepulse-server/internal/middleware"
	"carepulse-server/internal/models"
	"carepulse-server/internal/notify"
	"carepulse-server/internal/routes"
	"carepulse-server/internal/services"
	"carepulse-server/internal/storage"
	"carepulse-server/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carepulse-server",
		Short: "CarePulse appointment API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", true, "Create or update tables before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := models.AutoMigrate(db.DB); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
			return nil
		},
	}
}

// bootstrap loads .env, the configuration and the logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg)
	if envErr != nil {
		logger.Debug().Msg("no .env file loaded, using process environment")
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return nil, logger, err
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func openDB(cfg *config.Config) (*store.GormStore, error) {
	db, err := models.OpenDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.IsDev() && cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return store.NewGormStore(db), nil
}

func runServer(migrate bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := context.Background()

	gormStore, err := openDB(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	if migrate {
		if err := models.AutoMigrate(gormStore.DB); err != nil {
			logger.Error().Err(err).Msg("failed to migrate database")
			return err
		}
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("close failed")
			}
		}
	}()

	listCache, err := newListCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := listCache.(io.Closer); ok {
		closers = append(closers, c)
	}

	documents, err := newDocumentStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sender, err := newSMSSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := sender.(io.Closer); ok {
		closers = append(closers, c)
	}

	appointmentService := services.NewAppointmentService(gormStore, gormStore, listCache, sender, services.AppointmentOptions{
		Policy:          lifecycle.Policy{UpdateConfirms: cfg.Scheduling.UpdateConfirms},
		WriteTimeout:    cfg.Scheduling.WriteTimeout,
		ListTTL:         cfg.Cache.ListTTL,
		DisplayTimeZone: cfg.Scheduling.DisplayTimeZone,
		Logger:          logger.With().Str("component", "appointments").Logger(),
	})
	patientService := services.NewPatientService(gormStore, gormStore, documents, logger.With().Str("component", "patients").Logger())

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		Appointments:     appointmentService,
		Patients:         patientService,
		JWTSecret:        cfg.JWTSecret,
		JWTExpiryMinutes: cfg.JWTExpirationMinutes,
		AdminPasskeyHash: cfg.AdminPasskeyHash,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newListCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.ListCache, error) {
	if cfg.Cache.RedisURL == "" {
		logger.Info().Msg("using in-process appointment list cache")
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to redis")
		return nil, err
	}
	logger.Info().Msg("using redis appointment list cache")
	return rc, nil
}

func newDocumentStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.DocumentStore, error) {
	if cfg.Storage.Driver == "none" {
		logger.Warn().Msg("identification document storage disabled")
		return nil, nil
	}
	s3cfg := storage.S3Config{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		Endpoint:      cfg.Storage.Endpoint,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		URLExpiry:     cfg.Storage.URLExpiry,
	}
	client, err := storage.NewS3Client(ctx, s3cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create s3 client")
		return nil, err
	}
	return storage.NewS3DocumentStore(client, s3.NewPresignClient(client), s3cfg), nil
}

func newSMSSender(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notify.Sender, error) {
	switch cfg.SMS.Transport {
	case "sqs":
		sender, err := notify.NewSQSSenderFromQueueName(ctx, cfg.SMS.Region, cfg.SMS.Endpoint, cfg.SMS.QueueName)
		if err != nil {
			logger.Error().Err(err).Msg("failed to resolve sms queue")
			return nil, err
		}
		return sender, nil
	case "kafka":
		return notify.NewKafkaSender(notify.NewKafkaWriter(cfg.SMS.KafkaBrokers, cfg.SMS.KafkaTopic)), nil
	default:
		return notify.LogSender{Logger: logger.With().Str("component", "sms").Logger()}, nil
	}
}
