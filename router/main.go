package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lingodeck/api/database"
	"github.com/lingodeck/api/handlers"
	access_handlers "github.com/lingodeck/api/handlers/access"
	auth_handlers "github.com/lingodeck/api/handlers/auth"
	course_handlers "github.com/lingodeck/api/handlers/course"
	enrollment_handlers "github.com/lingodeck/api/handlers/enrollment"
	playback_handlers "github.com/lingodeck/api/handlers/playback"
	progress_handlers "github.com/lingodeck/api/handlers/progress"
	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/services"
	"github.com/lingodeck/api/utils/auth"
	"github.com/lingodeck/api/utils/cache"
	"github.com/lingodeck/api/utils/middleware"
)

// Deps exposes the long-lived services the app layer needs after route
// setup, mainly for the cron scheduler and shutdown.
type Deps struct {
	Progress *services.ProgressService
	Playback *services.PlaybackService
}

func SetupRoutes(app *fiber.App, store *database.GORMStore) *Deps {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "lingodeck-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := store.DB()

	// Redis backs the offline progress queue. Without it the queue falls
	// back to process memory: updates still survive backend hiccups, just
	// not a restart.
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	var pendingQueue services.PendingQueue
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Pending progress queue will be in-memory only.", err)
		pendingQueue = services.NewMemoryPendingQueue()
	} else {
		pendingQueue = services.NewRedisPendingQueue(redisCache)
	}

	// Core services
	courseCache := cache.NewTTLCache[*model.Course](services.DirectoryTTL, time.Now)
	directory := services.NewDirectoryService(db, courseCache)
	enrollments := services.NewEnrollmentService(db, directory)
	progress := services.NewProgressService(db, directory, pendingQueue)
	accessService := services.NewAccessService(
		services.DefaultAccessConfig(), directory, enrollments, progress, time.Now)

	providerFactory := services.DefaultProviderFactory(
		os.Getenv("PLAYER_API_BASE_URL"), os.Getenv("PLAYER_API_KEY"))
	playback := services.NewPlaybackService(directory, progress, providerFactory)

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, func(userID uint) {
		playback.DestroyUserSessions(userID)
	})
	courseHandler := course_handlers.NewCourseHandler(db, directory)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(enrollments, accessService)
	accessHandler := access_handlers.NewAccessHandler(accessService)
	progressHandler := progress_handlers.NewProgressHandler(progress, accessService)
	playbackHandler := playback_handlers.NewPlaybackHandler(playback, accessService)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store)
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Get("/profile", authMiddleware.Required(), authHandler.GetProfile)
	authGroup.Put("/profile", authMiddleware.Required(), authHandler.UpdateProfile)

	// Catalog routes (public, user optional for later personalization)
	coursesGroup := api.Group("/courses")
	coursesGroup.Get("/", courseHandler.ListCourses)
	coursesGroup.Get("/:courseID", courseHandler.GetCourse)
	coursesGroup.Get("/:courseID/lessons/:lessonID", authMiddleware.Optional(), courseHandler.GetLesson)

	// Enrollment routes
	coursesGroup.Post("/:courseID/enroll", authMiddleware.Required(), enrollmentHandler.Enroll)
	coursesGroup.Get("/:courseID/enroll-access", authMiddleware.Optional(), enrollmentHandler.EnrollPageAccess)
	api.Get("/enrollments", authMiddleware.Required(), enrollmentHandler.ListMine)

	// Access gate routes (optional auth: anonymous users get preview access)
	accessGroup := api.Group("/access", authMiddleware.Optional())
	accessGroup.Get("/courses/:courseID", accessHandler.CheckCourse)
	accessGroup.Get("/courses/:courseID/lessons", accessHandler.AccessibleLessons)
	accessGroup.Get("/courses/:courseID/lessons/:lessonID", accessHandler.CheckLesson)
	accessGroup.Get("/courses/:courseID/enrollment", accessHandler.EnrollmentStatus)

	// Progress routes (protected)
	coursesGroup.Get("/:courseID/progress", authMiddleware.Required(), progressHandler.GetCourseProgress)
	coursesGroup.Get("/:courseID/lessons/:lessonID/progress", authMiddleware.Required(), progressHandler.GetLessonProgress)
	coursesGroup.Put("/:courseID/lessons/:lessonID/progress", authMiddleware.Required(), progressHandler.SaveProgress)
	api.Post("/progress/sync", authMiddleware.Required(), progressHandler.SyncPending)

	// Playback session routes (protected)
	playbackGroup := api.Group("/playback", authMiddleware.Required())
	playbackGroup.Post("/sessions", playbackHandler.CreateSession)
	playbackGroup.Get("/sessions/:sessionID", playbackHandler.GetSession)
	playbackGroup.Post("/sessions/:sessionID/events", playbackHandler.Event)
	playbackGroup.Post("/sessions/:sessionID/control", playbackHandler.Control)
	playbackGroup.Get("/sessions/:sessionID/stream", playbackHandler.Stream)
	playbackGroup.Delete("/sessions/:sessionID", playbackHandler.DestroySession)

	// Admin routes
	adminGroup := api.Group("/admin", authMiddleware.RequireAdmin())
	adminGroup.Post("/courses", courseHandler.CreateCourse)
	adminGroup.Put("/courses/:courseID", courseHandler.UpdateCourse)
	adminGroup.Post("/courses/:courseID/lessons", courseHandler.CreateLesson)
	adminGroup.Put("/courses/:courseID/lessons/:lessonID", courseHandler.UpdateLesson)
	adminGroup.Post("/enrollments/:enrollmentID/suspend", enrollmentHandler.Suspend)
	adminGroup.Post("/enrollments/:enrollmentID/reinstate", enrollmentHandler.Reinstate)
	adminGroup.Post("/enrollments/:enrollmentID/expire", enrollmentHandler.Expire)

	return &Deps{
		Progress: progress,
		Playback: playback,
	}
}
