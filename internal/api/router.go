package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/app"
	iauth "github.com/anaslahboub/app-microservice/internal/auth"
	"github.com/anaslahboub/app-microservice/internal/handlers"
	"github.com/anaslahboub/app-microservice/internal/middleware"
	"github.com/anaslahboub/app-microservice/internal/monitoring"
	"github.com/anaslahboub/app-microservice/internal/monitoring/checks"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/internal/services"
)

// Dependencies carries the services the HTTP surface is built on.
type Dependencies struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Config   *app.Config
	Hub      *realtime.Hub
	Inbox    *services.InboxService
	Toggles  *services.ToggleEngine
	Posts    *services.PostService
	Comments *services.CommentService
	Chats    *services.ChatService
	Groups   *services.GroupService

	// Health is optional; without it readiness only pings the database.
	Health *monitoring.HealthManager
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.Hub == nil:
		return errors.New("realtime hub must be provided")
	case d.Inbox == nil:
		return errors.New("inbox service must be provided")
	case d.Toggles == nil || d.Posts == nil || d.Comments == nil:
		return errors.New("post services must be provided")
	case d.Chats == nil:
		return errors.New("chat service must be provided")
	case d.Groups == nil:
		return errors.New("group service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager(0)
		health.RegisterLiveness(checks.Realtime(deps.Hub))
		health.RegisterReadiness(checks.Database(deps.DB))
	}
	registerHealthRoutes(r, cfg, health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(deps.JWT)
	limit := middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)

	api := r.Group("/api/v1")
	api.Use(requireAuth, limit)

	registerPostRoutes(api, handlers.NewPostHandler(deps.Posts, deps.Toggles), handlers.NewCommentHandler(deps.Comments))
	registerNotificationRoutes(api, handlers.NewNotificationHandler(deps.Inbox))
	registerChatRoutes(api, handlers.NewChatHandler(deps.Chats))
	registerGroupRoutes(api, handlers.NewGroupHandler(deps.Groups))

	// The socket authenticates with the same middleware; browsers pass ?token=.
	r.GET("/ws", requireAuth, handlers.NewRealtimeHandler(deps.Hub).Stream)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
