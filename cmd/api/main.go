package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/adapters/docstore"
	"github.com/pralapin/school-service/internal/adapters/handler"
	"github.com/pralapin/school-service/internal/adapters/messaging"
	"github.com/pralapin/school-service/internal/adapters/middleware"
	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/adapters/pdf"
	"github.com/pralapin/school-service/internal/adapters/push"
	"github.com/pralapin/school-service/internal/adapters/repository"
	"github.com/pralapin/school-service/internal/adapters/storage"
	"github.com/pralapin/school-service/internal/adapters/token"
	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
	"github.com/pralapin/school-service/internal/core/services"
)

const (
	roleCacheSize = 64
	roleCacheTTL  = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.Debug)
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to open document store")
	}
	defer store.Close(context.Background())
	logger.WithField("driver", cfg.StoreDriver).Info("document store ready")

	var redisClient *redis.Client
	var revocations ports.RevocationStore = token.NoopRevocationStore{}
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		revocations = token.NewRedisRevocationStore(redisClient)
		logger.Info("connected to redis, refresh tokens can be revoked")
	} else {
		logger.Warn("REDIS_ADDRESS not set, logout will not revoke refresh tokens")
	}

	var issuer *token.JWTIssuer
	if cfg.JWTPrivateKey != nil {
		issuer = token.NewRSAIssuer(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	} else {
		issuer = token.NewHMACIssuer(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	}

	photos, receipts, filesDir, err := openObjectStores(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to configure object storage")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	sender, senderName, closeSender := openPushSender(ctx, cfg, logger)
	defer closeSender()
	sender = push.NewInstrumented(sender, senderName, metrics.PushBatchesTotal, metrics.PushMessagesTotal)

	stores := repository.NewStores(store)
	roles := repository.NewCachedRoles(stores.Roles, roleCacheSize, roleCacheTTL)
	hasher := token.NewBcryptHasher(0)

	roleService := services.NewRoleService(roles, cfg.AllowEditDefaultRoles, logger)
	authService := services.NewAuthService(stores.Users, roles, hasher, issuer, revocations, logger)
	registrationService := services.NewRegistrationService(stores.Users, roles, hasher, logger)
	settingsService := services.NewSettingsService(stores.Settings, stores.AcademicYears, photos, logger)
	notificationService := services.NewNotificationService(stores.Users, stores.Students, sender, logger)
	branchService := services.NewBranchService(stores.Branches, logger)
	studentService := services.NewStudentService(stores.Students, stores.AllStudents, stores.Branches, settingsService, registrationService, photos, logger)
	attendanceService := services.NewAttendanceService(stores.Attendance, stores.Students, stores.Branches, notificationService, logger)
	announcementService := services.NewAnnouncementService(stores.Announcements, stores.Users, stores.Students, stores.Branches, notificationService, logger)
	billingService := services.NewBillingService(
		stores.Billings, stores.Students, stores.Branches, settingsService,
		pdf.DefaultChain(logger, metrics.ReceiptsTotal), receipts,
		services.ReceiptOptions{SchoolName: cfg.SchoolName, SchoolAddress: cfg.SchoolAddress},
		logger,
	)
	cctvService := services.NewCCTVService(stores.Students, stores.Branches, settingsService,
		domain.ClockWindow{Start: cfg.SchoolHoursStart, End: cfg.SchoolHoursEnd}, logger)
	holidayService := services.NewHolidayService(stores.Holidays, stores.Students, settingsService, logger)
	galleryService := services.NewGalleryService(stores.Albums, stores.Students, photos, logger)
	activityService := services.NewActivityService(stores.Activities, stores.Students, photos, logger)
	dashboardService := services.NewDashboardService(dashboardStores(stores), logger)
	mobileService := services.NewMobileService(stores.Students, stores.Branches, settingsService, announcementService, logger)

	if err := bootstrap(ctx, cfg, logger, roleService, settingsService, registrationService); err != nil {
		logger.WithError(err).Fatal("startup bootstrap failed")
	}

	authMiddleware := middleware.NewAuthMiddleware(authService, metrics.PermissionDenialsTotal, logger)

	router := handler.NewRouter(handler.Handlers{
		Auth:          handler.NewAuthHandler(authService, logger),
		Users:         handler.NewRegistrationHandler(registrationService, logger),
		Roles:         handler.NewRoleHandler(roleService, logger),
		Students:      handler.NewStudentHandler(studentService, logger),
		Attendance:    handler.NewAttendanceHandler(attendanceService, logger),
		Announcements: handler.NewAnnouncementHandler(announcementService, logger),
		Billing:       handler.NewBillingHandler(billingService, logger),
		Settings:      handler.NewSettingsHandler(settingsService, logger),
		Branches:      handler.NewBranchHandler(branchService, logger),
		Holidays:      handler.NewHolidayHandler(holidayService, logger),
		Gallery:       handler.NewGalleryHandler(galleryService, logger),
		Activities:    handler.NewActivityHandler(activityService, logger),
		Dashboard:     handler.NewDashboardHandler(dashboardService, logger),
		Mobile:        handler.NewMobileHandler(mobileService, cctvService, logger),
		Health:        handler.NewHealthHandler(store, redisClient, logger),
	}, authMiddleware, handler.RouterOptions{
		Metrics: metrics,
		Logger:  logger,
		CORS: middleware.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			ExposedHeaders: []string{"Content-Disposition"},
		},
		FilesDir: filesDir,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("could not start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("error during server shutdown")
	}
	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (ports.DocumentStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := docstore.NewPostgres(db)
		if err := pg.EnsureCollections(ctx, repository.AllCollections...); err != nil {
			db.Close()
			return nil, err
		}
		return pg, nil
	case "memory":
		return docstore.NewMemory(), nil
	default:
		return docstore.NewMongo(ctx, cfg.MongoURL, cfg.MongoDBName)
	}
}

// openObjectStores returns the photo and receipt stores. Without S3 buckets
// both fall back to the local directory, which is then served under /files/.
func dashboardStores(st *repository.Stores) *services.DashboardStores {
	return &services.DashboardStores{
		Users:         st.Users,
		Students:      st.Students,
		Branches:      st.Branches,
		Attendance:    st.Attendance,
		Announcements: st.Announcements,
		Billings:      st.Billings,
		Holidays:      st.Holidays,
	}
}

func openObjectStores(ctx context.Context, cfg *config.Config) (photos, receipts ports.ObjectStore, filesDir string, err error) {
	if cfg.S3BucketPhotos == "" || cfg.S3BucketReceipts == "" {
		local := storage.NewFilesystem(cfg.LocalStorageDir, cfg.PublicBaseURL)
		return local, local, local.Root(), nil
	}

	opts := storage.S3Options{
		Region:    cfg.AWSRegion,
		AccessKey: cfg.AWSAccessKeyID,
		SecretKey: cfg.AWSSecretAccessKey,
		Endpoint:  cfg.S3Endpoint,
	}
	opts.Bucket = cfg.S3BucketPhotos
	photoStore, err := storage.NewS3(ctx, opts)
	if err != nil {
		return nil, nil, "", err
	}
	opts.Bucket = cfg.S3BucketReceipts
	receiptStore, err := storage.NewS3(ctx, opts)
	if err != nil {
		return nil, nil, "", err
	}
	return photoStore, receiptStore, "", nil
}

// openPushSender prefers queueing pushes for the notifier, then direct FCM
// delivery, then a sender that drops everything. It also returns the name the
// push metrics are labelled with.
func openPushSender(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (ports.PushSender, string, func()) {
	if cfg.RabbitMQURL != "" {
		broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.PushQueueName)
		if err == nil {
			logger.WithField("queue", cfg.PushQueueName).Info("push notifications are queued for the notifier")
			return broker, "rabbitmq", func() { _ = broker.Close() }
		}
		logger.WithError(err).Warn("failed to connect to RabbitMQ")
	}
	if cfg.FirebaseCredentialsPath != "" {
		fcm, err := push.NewFCMFromFile(ctx, cfg.FirebaseCredentialsPath, logger)
		if err == nil {
			logger.Info("push notifications are delivered through FCM")
			return fcm, "fcm", func() {}
		}
		logger.WithError(err).Warn("failed to initialise FCM")
	}
	logger.Warn("push notifications are disabled")
	return push.Disabled{}, "disabled", func() {}
}

func bootstrap(
	ctx context.Context,
	cfg *config.Config,
	logger *logrus.Logger,
	roles *services.RoleService,
	settings *services.SettingsService,
	registration *services.RegistrationService,
) error {
	if err := roles.EnsureDefaultRoles(ctx); err != nil {
		return err
	}
	year, err := settings.EnsureAcademicYear(ctx)
	if err != nil {
		return err
	}
	logger.WithField("academic_year", year.Name).Info("current academic year")

	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	_, err = registration.Register(ctx, services.RegisterUserInput{
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		FullName: "Administrator",
		Role:     domain.RoleAdmin,
	})
	switch {
	case err == nil:
		logger.WithField("email", cfg.BootstrapAdminEmail).Info("bootstrap admin created")
	case errors.Is(err, domain.ErrConflict):
	default:
		return err
	}
	return nil
}
