package routes

import (
	"github.com/gin-gonic/gin"

	"carepulse-server/internal/handlers"
	"carepulse-server/internal/middleware"
	"carepulse-server/internal/models"
	"carepulse-server/internal/utils"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Appointments     handlers.AppointmentService
	Patients         handlers.PatientService
	JWTSecret        string
	JWTExpiryMinutes int
	AdminPasskeyHash string
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	tokens := utils.TokenConfig{Secret: deps.JWTSecret, ExpirationMinutes: deps.JWTExpiryMinutes}

	authHandler := handlers.NewAuthHandler(deps.AdminPasskeyHash, tokens)
	userHandler := handlers.NewUserHandler(deps.Patients, tokens)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		public.POST("/users", userHandler.CreateUser)
		public.POST("/admin/login", authHandler.AdminLogin)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		private.GET("/doctors", handlers.GetDoctors)
		private.GET("/users/:userId", middleware.SelfOrAdmin("userId"), userHandler.GetUserByID)

		patientRoutes := private.Group("/patients/:userId")
		patientRoutes.Use(middleware.SelfOrAdmin("userId"))
		{
			patientRoutes.GET("", userHandler.GetPatient)
			patientRoutes.POST("/register", userHandler.RegisterPatient)
			patientRoutes.GET("/document", userHandler.GetPatientDocument)
			patientRoutes.POST("/appointments", appointmentHandler.CreateAppointment)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("", middleware.RoleAuthMiddleware(models.RoleAdmin), appointmentHandler.GetRecentAppointments)

			// Owner or admin, checked in the handler against the stored appointment
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.GET("/:id/success", appointmentHandler.GetAppointmentSuccess)
			appointmentRoutes.PATCH("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.PATCH("/:id/cancel", appointmentHandler.CancelAppointment)

			appointmentRoutes.PATCH("/:id/schedule", middleware.RoleAuthMiddleware(models.RoleAdmin), appointmentHandler.ScheduleAppointment)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
