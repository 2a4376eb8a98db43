package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	guardian "github.com/shaj13/go-guardian/auth"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/admin"
	"github.com/PratikDhanave/invite-rsvp-service/internal/audit"
	"github.com/PratikDhanave/invite-rsvp-service/internal/auth"
	"github.com/PratikDhanave/invite-rsvp-service/internal/directory"
	"github.com/PratikDhanave/invite-rsvp-service/internal/handlers"
	"github.com/PratikDhanave/invite-rsvp-service/internal/rsvp"
)

// Pinger is the readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Store     Pinger
	ByToken   *rsvp.Service
	ByInvite  *rsvp.Service
	Query     *admin.Query
	Trail     *audit.Trail
	Directory *directory.Service

	// Admin is nil when no admin credentials are configured; the /admin
	// routes are then not mounted.
	Admin    guardian.Authenticator
	HostAuth auth.HostConfig
	Logger   *zap.Logger
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, guest RSVP pages and their channel beacons
// Basic auth: /admin
// Host auth: /host
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(logger))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handlers.RegisterRSVPRoutes(r, d.ByToken, d.ByInvite, logger)
	handlers.RegisterChannelRoutes(r, d.ByToken, d.ByInvite, logger)

	if d.Admin != nil {
		adminGroup := r.Group("/")
		adminGroup.Use(auth.AdminMiddleware(d.Admin))
		handlers.RegisterAdminRoutes(adminGroup, handlers.AdminDeps{
			Query:     d.Query,
			Trail:     d.Trail,
			Directory: d.Directory,
			Logger:    logger,
		})
	}

	hostGroup := r.Group("/")
	hostGroup.Use(auth.HostMiddleware(d.HostAuth))
	handlers.RegisterHostRoutes(hostGroup, d.Directory, logger)

	return r
}
