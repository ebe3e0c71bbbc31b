package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formafit/trainer-app/internal/api"
	"formafit/trainer-app/internal/config"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/mailer"
	"formafit/trainer-app/internal/report"
	"formafit/trainer-app/internal/repository/mongo"
	"formafit/trainer-app/internal/service"
	"formafit/trainer-app/internal/storage"

	"github.com/gin-gonic/gin"
)

// @title FormaFit Trainer API
// @version 1.0
// @description Students, progress tracking, scheduling, billing and reports for personal trainers.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting FormaFit server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("FATAL: jwt.secret (JWT_SECRET) is not set")
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB)
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Outgoing email and events ---
	var sender mailer.Sender = mailer.NewNoopSender()
	if cfg.Mail.ResendAPIKey != "" {
		sender = mailer.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	} else {
		log.Println("WARN: mail.resend_api_key not set; report emails are only logged")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			// Events are best effort; the API works without a broker.
			log.Printf("ERROR: Could not connect to RabbitMQ, events disabled: %v", err)
		} else {
			publisher = rabbit
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("ERROR: Failed to close event publisher: %v", err)
		}
	}()

	// --- Initialize Repositories ---
	repos := service.Repositories{
		Users:        mongo.NewMongoUserRepository(appDB),
		Students:     mongo.NewMongoStudentRepository(appDB),
		Measurements: mongo.NewMongoMeasurementRepository(appDB),
		Monthly:      mongo.NewMongoMonthlyTrackingRepository(appDB),
		Photos:       mongo.NewMongoPhotoRepository(appDB),
		Slots:        mongo.NewMongoScheduleSlotRepository(appDB),
		Sessions:     mongo.NewMongoSessionRepository(appDB),
		Attendance:   mongo.NewMongoAttendanceRepository(appDB),
		Plans:        mongo.NewMongoPlanRepository(appDB),
		Contracts:    mongo.NewMongoContractRepository(appDB),
		Invoices:     mongo.NewMongoInvoiceRepository(appDB),
		ReportTypes:  mongo.NewMongoReportTypeRepository(appDB),
		Reports:      mongo.NewMongoReportRepository(appDB),
	}

	// --- Initialize Services ---
	clock := service.SystemClock(cfg.Server.Location())
	services := api.Services{
		Auth:       service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.Auth.AdminEmails),
		Students:   service.NewStudentService(repos, fileStorage, clock),
		Progress:   service.NewMeasurementService(repos, publisher, clock),
		Photos:     service.NewPhotoService(repos, fileStorage, clock),
		Schedule:   service.NewScheduleService(repos, clock, cfg.Schedule.SessionMinutes),
		Attendance: service.NewAttendanceService(repos),
		Billing:    service.NewBillingService(repos, publisher, clock, cfg.Billing.DefaultDueDay, cfg.Billing.DefaultMonthsAhead),
		Enrollment: service.NewEnrollmentService(repos, publisher, clock, service.EnrollmentDefaults{
			Weeks:          cfg.Schedule.DefaultWeeks,
			SessionMinutes: cfg.Schedule.SessionMinutes,
			DueDay:         cfg.Billing.DefaultDueDay,
			Months:         cfg.Billing.DefaultMonthsAhead,
		}),
		Reports:       service.NewReportService(repos, fileStorage, sender, report.NewRenderer(), publisher, clock),
		Clock:         clock,
		DefaultWeeks:  cfg.Schedule.DefaultWeeks,
		DefaultMonths: cfg.Billing.DefaultMonthsAhead,
	}

	// --- Initialize Gin Engine ---
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default() // Includes Logger and Recovery middleware
	api.SetupRoutes(router, cfg.JWT.Secret, services)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // report generation renders and uploads inline
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
