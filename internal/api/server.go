package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/config"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/metrics"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

const version = "1.0.0"

// Services bundles everything the handlers call into.
type Services struct {
	Policy    services.AccessPolicy
	Users     *services.UserService
	Reports   *services.ReportService
	Dashboard *services.DashboardService
	Export    *services.ExportService
	Education *services.EducationService
	Chat      *services.ChatService
}

type Server struct {
	config   *config.Config
	services Services
	metrics  *metrics.Collector
	logger   *zap.Logger
	limiter  *rateLimiter
	router   *gin.Engine
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func NewServer(cfg *config.Config, svc Services, collector *metrics.Collector, logger *zap.Logger) *Server {
	server := &Server{
		config:   cfg,
		services: svc,
		metrics:  collector,
		logger:   logger,
		limiter:  newRateLimiter(cfg.RateLimit, cfg.RateLimitWindow),
	}

	server.setupRouter()
	return server
}

func (s *Server) setupRouter() {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	s.router = gin.New()
	s.router.MaxMultipartMemory = 32 << 20

	s.router.Use(s.requestID())
	s.router.Use(s.requestLogger())
	s.router.Use(s.recovery())

	corsConfig := cors.Config{
		AllowOrigins:     s.config.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	s.router.Use(cors.New(corsConfig))

	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.rateLimitMiddleware())
	{
		v1.GET("/health", s.healthCheck)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.register)
			authGroup.POST("/login", s.login)
			authGroup.GET("/profile", s.authenticate(), s.profile)
			authGroup.GET("/verify", s.authenticate(), s.verify)
			authGroup.POST("/logout", s.authenticate(), s.logout)
		}

		reports := v1.Group("/reports", s.authenticate())
		{
			reports.POST("/submit", s.submitReport)
			reports.GET("/my-reports", s.myReports)
			reports.GET("/analytics/trending", s.trendingSenders)
			reports.PUT("/bulk-update", s.bulkUpdateStatus)
			reports.GET("/:id", s.getReport)
			reports.PUT("/:id/status", s.updateReportStatus)
			reports.POST("/:id/notes", s.addReportNote)
			reports.PUT("/:id/verdict", s.setReportVerdict)
			reports.GET("/:id/attachments/:index", s.downloadAttachment)
		}

		admin := v1.Group("/admin", s.authenticate(), s.requireReviewer())
		{
			admin.GET("/dashboard", s.dashboard)
			admin.GET("/reports", s.listReports)
			admin.GET("/reports/export", s.exportReports)
			admin.GET("/users", s.listUsers)
			admin.PUT("/users/:id/role", s.updateUserRole)
			admin.GET("/audit-logs", s.auditLogs)
			admin.GET("/system/health", s.systemHealth)
			admin.GET("/metrics", s.metricsSnapshot)
		}

		education := v1.Group("/education", s.authenticate())
		{
			education.GET("/modules", s.listModules)
			education.POST("/modules", s.createModule)
			education.GET("/modules/:id", s.getModule)
			education.PUT("/modules/:id", s.updateModule)
			education.DELETE("/modules/:id", s.deactivateModule)
			education.POST("/modules/:id/quiz", s.submitQuiz)
			education.GET("/modules/:id/stats", s.moduleStats)
			education.GET("/progress", s.learningProgress)
		}

		v1.POST("/chat", s.authenticate(), s.chat)
	}

	s.router.NoRoute(func(c *gin.Context) {
		s.respondError(c, http.StatusNotFound, "Not found", "Route not found")
	})
}

// useJSONFieldNames makes gin's validator report JSON names so binding
// errors line up with service validation errors.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
		Version:   version,
	}
	status := http.StatusOK
	if err := s.services.Dashboard.Ping(ctx); err != nil {
		s.logger.Warn("health check ping failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
