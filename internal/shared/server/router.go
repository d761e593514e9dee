package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tender-backend/internal/analysis"
	"tender-backend/internal/checklists"
	"tender-backend/internal/documents"
	"tender-backend/internal/notify"
	"tender-backend/internal/shared/config"
	"tender-backend/internal/shared/metrics"
	"tender-backend/internal/shared/server/middleware"
	"tender-backend/internal/shared/server/respond"
)

const pollRateGroup = "ANALYSIS_POLL"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config            config.Config
	DocumentsHandler  *documents.Handler
	ChecklistsHandler *checklists.Handler
	AnalysisHandler   *analysis.Handler
	NotifyHandler     *notify.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Scrape endpoint stays outside the auth chain.
	r.GET("/metrics", metrics.Handler())

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
	)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			pollRateGroup: {Rate: 5, Burst: 15},
		},
		GroupFor: pollGroupFor,
	}))

	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.ChecklistsHandler != nil {
		deps.ChecklistsHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.NotifyHandler != nil {
		deps.NotifyHandler.RegisterRoutes(api)
	}

	return r
}

// pollGroupFor throttles only the job status and result reads, the endpoints
// clients fall back to polling when the event stream drops.
func pollGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodGet {
		return ""
	}
	if strings.HasPrefix(c.FullPath(), "/api/v1/analyses") {
		return pollRateGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
