package api

import (
	"net/http"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
)

// Services are the dependencies of the HTTP layer.
type Services struct {
	Auth       service.AuthService
	Students   service.StudentService
	Enrollment service.EnrollmentService
	Progress   service.MeasurementService
	Photos     service.PhotoService
	Schedule   service.ScheduleService
	Attendance service.AttendanceService
	Billing    service.BillingService
	Reports    service.ReportService
	Clock      service.Clock

	// Defaults for the generate endpoints when the body omits them.
	DefaultWeeks  int
	DefaultMonths int
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svc Services) {
	RegisterValidators()

	authHandler := NewAuthHandler(svc.Auth)
	studentHandler := NewStudentHandler(svc.Students, svc.Enrollment, svc.Clock)
	progressHandler := NewProgressHandler(svc.Progress, svc.Photos)
	scheduleHandler := NewScheduleHandler(svc.Schedule, svc.Attendance, svc.Clock, svc.DefaultWeeks)
	billingHandler := NewBillingHandler(svc.Billing, svc.DefaultMonths)
	reportHandler := NewReportHandler(svc.Reports)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	// Every trainer-scoped route derives its tenant from the token.
	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", authHandler.Me)

		// --- Students ---
		students := protected.Group("/students")
		{
			students.GET("", studentHandler.ListStudents)
			students.POST("", studentHandler.CreateStudent)
			students.POST("/enroll", studentHandler.EnrollStudent)
			students.GET("/:id", studentHandler.GetStudent)
			students.PUT("/:id", studentHandler.UpdateStudent)
			students.DELETE("/:id", studentHandler.DeleteStudent)
			students.POST("/:id/toggle-active", studentHandler.ToggleStudent)
			students.GET("/:id/stats", studentHandler.GetStudentStats)

			students.GET("/:id/measurements", progressHandler.ListMeasurements)
			students.POST("/:id/measurements", progressHandler.RecordMeasurement)
			students.GET("/:id/monthly/:year/:month", progressHandler.GetMonthly)
			students.PUT("/:id/monthly/:year/:month", progressHandler.SaveMonthly)
			students.DELETE("/:id/monthly/:year/:month", progressHandler.DeleteMonthly)

			students.GET("/:id/photos", progressHandler.ListPhotos)
			students.POST("/:id/photos/upload-url", progressHandler.RequestPhotoUpload)
			students.POST("/:id/photos", progressHandler.ConfirmPhoto)

			students.GET("/:id/slots", scheduleHandler.ListSlots)
			students.POST("/:id/slots", scheduleHandler.CreateSlot)
		}

		protected.PUT("/measurements/:id", progressHandler.UpdateMeasurement)
		protected.DELETE("/measurements/:id", progressHandler.DeleteMeasurement)

		protected.GET("/photos/:id/download", progressHandler.PhotoDownloadURL)
		protected.DELETE("/photos/:id", progressHandler.DeletePhoto)

		// --- Schedule ---
		protected.PUT("/slots/:id", scheduleHandler.UpdateSlot)
		protected.DELETE("/slots/:id", scheduleHandler.DeleteSlot)

		schedule := protected.Group("/schedule")
		{
			schedule.POST("/generate", scheduleHandler.GenerateSessions)
			schedule.GET("/calendar", scheduleHandler.Calendar)
			schedule.GET("/agenda", scheduleHandler.Agenda)
		}

		sessions := protected.Group("/sessions")
		{
			sessions.GET("", scheduleHandler.ListSessions)
			sessions.POST("", scheduleHandler.CreateSession)
			sessions.GET("/:id", scheduleHandler.GetSession)
			sessions.PUT("/:id", scheduleHandler.UpdateSession)
			sessions.DELETE("/:id", scheduleHandler.DeleteSession)
			sessions.PATCH("/:id/status", scheduleHandler.SetSessionStatus)
			sessions.POST("/:id/attendance", scheduleHandler.QuickAttendance)
		}

		attendance := protected.Group("/attendance")
		{
			attendance.GET("", scheduleHandler.ListAttendance)
			attendance.POST("", scheduleHandler.CreateAttendance)
			attendance.GET("/:id", scheduleHandler.GetAttendance)
			attendance.PUT("/:id", scheduleHandler.UpdateAttendance)
			attendance.DELETE("/:id", scheduleHandler.DeleteAttendance)
		}

		// --- Billing ---
		plans := protected.Group("/plans")
		{
			plans.GET("", billingHandler.ListPlans)
			plans.POST("", billingHandler.CreatePlan)
			plans.GET("/:id", billingHandler.GetPlan)
			plans.PUT("/:id", billingHandler.UpdatePlan)
			plans.DELETE("/:id", billingHandler.DeletePlan)
		}

		contracts := protected.Group("/contracts")
		{
			contracts.GET("", billingHandler.ListContracts)
			contracts.POST("", billingHandler.CreateContract)
			contracts.GET("/:id", billingHandler.GetContract)
			contracts.POST("/:id/deactivate", billingHandler.DeactivateContract)
			contracts.POST("/:id/invoices", billingHandler.GenerateInvoices)
		}

		invoices := protected.Group("/invoices")
		{
			invoices.GET("", billingHandler.ListInvoices)
			invoices.POST("", billingHandler.CreateInvoice)
			invoices.GET("/:id", billingHandler.GetInvoice)
			invoices.PUT("/:id", billingHandler.UpdateInvoice)
			invoices.DELETE("/:id", billingHandler.DeleteInvoice)
			invoices.POST("/:id/pay", billingHandler.MarkInvoicePaid)
		}

		protected.GET("/billing/dashboard", billingHandler.Dashboard)

		// --- Reports ---
		reportTypes := protected.Group("/report-types")
		{
			reportTypes.GET("", reportHandler.ListReportTypes)
			reportTypes.GET("/:id", reportHandler.GetReportType)

			admin := reportTypes.Group("")
			admin.Use(RoleMiddleware(domain.RoleAdmin))
			admin.POST("", reportHandler.CreateReportType)
			admin.PUT("/:id", reportHandler.UpdateReportType)
			admin.DELETE("/:id", reportHandler.DeleteReportType)
		}

		reports := protected.Group("/reports")
		{
			reports.GET("", reportHandler.ListReports)
			reports.POST("", reportHandler.GenerateReport)
			reports.POST("/batch", reportHandler.GenerateReportBatch)
			reports.GET("/dashboard", reportHandler.ReportDashboard)
			reports.GET("/:id", reportHandler.GetReport)
			reports.DELETE("/:id", reportHandler.DeleteReport)
			reports.GET("/:id/status", reportHandler.ReportStatus)
			reports.POST("/:id/regenerate", reportHandler.RegenerateReport)
			reports.GET("/:id/download", reportHandler.DownloadReport)
			reports.POST("/:id/email", reportHandler.EmailReport)
		}
	}
}
