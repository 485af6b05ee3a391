package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mlavigne/notify-api/internal/handler"
	authHandler "github.com/mlavigne/notify-api/internal/handler/auth"
	notificationHandler "github.com/mlavigne/notify-api/internal/handler/notification"
	userHandler "github.com/mlavigne/notify-api/internal/handler/user"
	"github.com/mlavigne/notify-api/internal/middleware"
)

type Config struct {
	RateLimitRPS  float64
	RateBurst     int
	CORSConfig    middleware.CORSConfig
	UploadsDir    string
	MetricsPrefix string
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	notificationH *notificationHandler.Handler
	userH         *userHandler.Handler
	authH         *authHandler.Handler
	h             *handler.Handler
	config        Config
	metrics       *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	notificationH *notificationHandler.Handler,
	userH *userHandler.Handler,
	authH *authHandler.Handler,
	h *handler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidations()

	engine := gin.New()

	r := &Router{
		engine:        engine,
		auth:          auth,
		notificationH: notificationH,
		userH:         userH,
		authH:         authH,
		h:             h,
		config:        config,
		metrics:       initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimitRPS,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")
	r.authH.RegisterRoutes(api, r.auth)
	r.notificationH.RegisterRoutes(api, r.auth)
	r.userH.RegisterRoutes(api, r.auth)

	// Uploaded media is served as static content under the same prefix the
	// stored relative paths carry.
	r.engine.Static("/uploads", r.config.UploadsDir)

	r.engine.GET("/healthz", r.h.LivenessCheck)
	r.engine.GET("/readyz", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prefix,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path,
			strconv.Itoa(c.Writer.Status())).Inc()
	}
}
