package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campus-suite/academics-api/api/swagger"
	"github.com/campus-suite/academics-api/internal/handler"
	"github.com/campus-suite/academics-api/internal/middleware"
	"github.com/campus-suite/academics-api/internal/models"
	"github.com/campus-suite/academics-api/internal/repository"
	"github.com/campus-suite/academics-api/internal/service"
	"github.com/campus-suite/academics-api/pkg/cache"
	"github.com/campus-suite/academics-api/pkg/config"
	"github.com/campus-suite/academics-api/pkg/database"
	"github.com/campus-suite/academics-api/pkg/keylock"
	"github.com/campus-suite/academics-api/pkg/logger"
	corsmiddleware "github.com/campus-suite/academics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-suite/academics-api/pkg/middleware/requestid"
)

// @title Campus Academics API
// @version 1.0.0
// @description Scheduling, course selection and grading core for school administration
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	weights := models.GradeWeights{
		Regular: cfg.Grading.RegularWeight,
		Midterm: cfg.Grading.MidtermWeight,
		Final:   cfg.Grading.FinalWeight,
	}
	if err := weights.Validate(); err != nil {
		logr.Sugar().Fatalw("invalid grade weights", "error", err)
	}
	scale, err := models.ParseGradeScale(cfg.Grading.Scale)
	if err != nil {
		logr.Sugar().Fatalw("invalid grade scale", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, serving without period cache", "error", err)
		redisClient = nil
	}

	scheduleRepo := repository.NewScheduleRepository(db)
	periodRepo := repository.NewSelectionPeriodRepository(db)
	selectionRepo := repository.NewSelectionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	periodCache := repository.NewPeriodCacheRepository(redisClient, cfg.Selection.OpenPeriodCacheTTL, logr)

	validate := validator.New()
	locks := keylock.New()

	metricsSvc := service.NewMetricsService()
	scheduleSvc := service.NewScheduleService(scheduleRepo, courseRepo, classroomRepo, locks, validate, logr)
	periodSvc := service.NewSelectionPeriodService(periodRepo, periodCache, validate, metricsSvc, logr)
	selectionSvc := service.NewSelectionService(selectionRepo, studentRepo, scheduleRepo, periodSvc, locks, metricsSvc, logr)
	gradeSvc := service.NewGradeService(gradeRepo, selectionRepo, courseRepo, studentRepo, weights, scale, validate, logr)

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	periodHandler := handler.NewSelectionPeriodHandler(periodSvc)
	selectionHandler := handler.NewSelectionHandler(selectionSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	schedules := api.Group("/schedules")
	{
		schedules.GET("", scheduleHandler.List)
		schedules.GET("/availability", staff, scheduleHandler.CheckConflict)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.POST("", admin, scheduleHandler.Create)
		schedules.PUT("/:id", admin, scheduleHandler.Update)
		schedules.DELETE("/:id", admin, scheduleHandler.Cancel)
		schedules.GET("/:id/selections", staff, selectionHandler.ListBySchedule)
		schedules.POST("/:id/grades", staff, gradeHandler.BatchCreate)
		schedules.PUT("/:id/grades/publish", staff, gradeHandler.Publish)
	}

	api.GET("/teachers/:teacherId/schedules", scheduleHandler.TeacherTimetable)
	api.GET("/classrooms/:classroomId/schedules", scheduleHandler.ClassroomTimetable)

	periods := api.Group("/selection-periods")
	{
		periods.GET("", periodHandler.List)
		periods.GET("/current", periodHandler.CurrentOpen)
		periods.GET("/:id", periodHandler.Get)
		periods.POST("", admin, periodHandler.Create)
		periods.PUT("/:id", admin, periodHandler.Update)
		periods.PUT("/:id/enable", admin, periodHandler.Enable)
		periods.PUT("/:id/disable", admin, periodHandler.Disable)
		periods.DELETE("/:id", admin, periodHandler.Retire)
	}

	selections := api.Group("/selections")
	{
		selections.POST("", selectionHandler.Select)
		selections.GET("/:id", selectionHandler.Get)
		selections.DELETE("/:id", selectionHandler.Withdraw)
	}

	api.GET("/students/:studentId/selections", middleware.RBAC("ADMIN", "TEACHER", "SELF"), selectionHandler.ListByStudent)
	api.GET("/students/:studentId/gpa", middleware.RBAC("ADMIN", "TEACHER", "SELF"), gradeHandler.StudentGPA)
	api.GET("/classes/:classId/average", staff, gradeHandler.ClassAverage)

	grades := api.Group("/grades")
	{
		grades.GET("", staff, gradeHandler.List)
		grades.GET("/:id", gradeHandler.Get)
		grades.PUT("/:id/scores", staff, gradeHandler.EnterScores)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
