// Package server - Haupt-Router und Server-Setup fuer stylegan
// Beinhaltet: Server-Struct, Router-Registrierung, Fehler-Antworten
package server

import (
	"errors"
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/model"
	"github.com/7blacky7/stylegan/model/models/stylegan"
	"github.com/7blacky7/stylegan/version"
)

var mode string = gin.DebugMode

// Server verwaltet den HTTP-Server und den Model-Cache
type Server struct {
	addr  net.Addr
	sched *Scheduler
}

// NewServer erstellt einen Server; addr ist die Listen-Adresse oder nil
func NewServer(addr net.Addr) *Server {
	return &Server{addr: addr, sched: InitScheduler()}
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		requestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
		requestIDMiddleware(),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "stylegan is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "stylegan is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Checkpoints
	r.HEAD("/api/tags", s.ListHandler)
	r.GET("/api/tags", s.ListHandler)
	r.POST("/api/show", s.ShowHandler)
	r.GET("/api/ps", s.PsHandler)

	// Inference
	r.POST("/api/generate", s.GenerateHandler)
	r.POST("/api/discriminate", s.DiscriminateHandler)

	return r
}

// statusFor ordnet Fehler aus Model und Kerneln einem HTTP-Status zu.
// Shape-Fehler entstehen aus ungueltigen Eingaben des Clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ml.ErrShape),
		errors.Is(err, model.ErrNoGenerator),
		errors.Is(err, model.ErrNoDiscriminator),
		errors.Is(err, stylegan.ErrNoFixedNoise):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
