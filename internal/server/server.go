package server

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"baf-site/internal/aggregate"
	"baf-site/internal/cms"
	"baf-site/internal/config"
	"baf-site/internal/logger"
	"baf-site/internal/metrics"
	"baf-site/internal/store"
)

type Options struct {
	Config   config.Server
	CMS      *cms.Client
	Fetcher  *aggregate.Fetcher
	Dedup    *store.Dedup
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil disables /metrics
}

type Server struct {
	engine *gin.Engine
	server *http.Server
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Dedup == nil {
		opts.Dedup = store.NewDedup(0, 0)
	}
	h := &handlers{
		cms:     opts.CMS,
		fetcher: opts.Fetcher,
		dedup:   opts.Dedup,
		log:     opts.Log,
		metrics: opts.Metrics,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(opts.Log), corsMiddleware(opts.Config.AllowOrigins))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/content", h.content)
		api.GET("/events/:slug", h.eventDetail)
		api.GET("/brands/:slug", h.brandDetail)
		api.GET("/catalog/:slug", h.catalogDetail)
		api.GET("/stats", h.stats)
		api.POST("/contact", h.contact)
	}

	r.POST("/admin/login", h.login)
	admin := r.Group("/admin")
	admin.Use(RequireAdmin())
	{
		admin.PUT("/about", h.saveAbout)
		admin.POST("/events", h.createEvent)
		admin.PUT("/events/:id", h.updateEvent)
		admin.DELETE("/events/:id", h.deleteEvent)
		admin.POST("/brands", h.createBrand)
		admin.PUT("/brands/:id", h.updateBrand)
		admin.DELETE("/brands/:id", h.deleteBrand)
	}

	return &Server{
		engine: r,
		server: &http.Server{
			Addr:         opts.Config.ListenAddress,
			Handler:      r,
			ReadTimeout:  opts.Config.ReadTimeout,
			WriteTimeout: opts.Config.WriteTimeout,
			IdleTimeout:  opts.Config.IdleTimeout,
		},
	}
}

func (s *Server) Handler() http.Handler              { return s.engine }
func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
