package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/dispensing-api/internal/handler/health"
	"github.com/jwalitptl/dispensing-api/internal/handler/prometheus"
	"github.com/jwalitptl/dispensing-api/internal/middleware"
)

// Handler is a public route group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// ProtectedHandler guards its routes with the session and the role gate.
type ProtectedHandler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type Router struct {
	engine     *gin.Engine
	auth       *middleware.AuthMiddleware
	authH      Handler
	healthH    *health.Handler
	metricsH   *prometheus.Handler
	protected  []ProtectedHandler
	metricPath string
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
	MetricsPath      string
	Debug            bool
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH Handler,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	protected []ProtectedHandler,
	config RouterConfig,
) *Router {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:     engine,
		auth:       auth,
		authH:      authH,
		healthH:    healthH,
		metricsH:   metricsH,
		protected:  protected,
		metricPath: config.MetricsPath,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if metricsH != nil {
		engine.Use(metricsH.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	if config.MaxBodyBytes > 0 {
		limits := middleware.DefaultSizeLimitConfig()
		limits.MaxBodySize = config.MaxBodyBytes
		engine.Use(middleware.SizeLimit(limits))
	}

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.healthH.RegisterRoutes(api)
	if r.metricsH != nil {
		path := r.metricPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, r.metricsH.Handler())
	}

	r.authH.RegisterRoutes(api)
	for _, h := range r.protected {
		h.RegisterRoutes(api, r.auth)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
