package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/rsvp"
)

// RegisterRSVPRoutes registers the public guest endpoints.
//
// GET  /e/:eventId/rsvp?token=...  page context for a token link or the generic link
// POST /e/:eventId/rsvp?token=...  submit a response
// GET  /i/:inviteId                page context for a host invite link
// POST /i/:inviteId/rsvp           submit a response for a host invite
//
// Token problems never fail the request. They degrade to the generic form
// and the context carries the reason.
func RegisterRSVPRoutes(r gin.IRoutes, byToken, byInvite *rsvp.Service, logger *zap.Logger) {
	r.GET("/e/:eventId/rsvp", func(c *gin.Context) {
		out, err := byToken.Context(c.Request.Context(), c.Param("eventId"), c.Query("token"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/e/:eventId/rsvp", func(c *gin.Context) {
		respond(c, byToken, logger, c.Param("eventId"), c.Query("token"))
	})

	r.GET("/i/:inviteId", func(c *gin.Context) {
		out, err := byInvite.Context(c.Request.Context(), "", c.Param("inviteId"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/i/:inviteId/rsvp", func(c *gin.Context) {
		respond(c, byInvite, logger, "", c.Param("inviteId"))
	})
}

func respond(c *gin.Context, svc *rsvp.Service, logger *zap.Logger, eventID, credential string) {
	var body models.RSVPRequest
	if !bindJSON(c, &body) {
		return
	}

	out, err := svc.Respond(c.Request.Context(), rsvp.Request{
		EventID:     eventID,
		Credential:  credential,
		ClientKey:   c.ClientIP(),
		RSVPRequest: body,
	})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
