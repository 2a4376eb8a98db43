package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/rsvp"
)

// RegisterChannelRoutes registers the guest-page channel beacon. The entry
// an event lands on comes from the credential, never from the path.
//
// POST /e/:eventId/rsvp/channel-events?token=...
// POST /i/:inviteId/channel-events
func RegisterChannelRoutes(r gin.IRoutes, byToken, byInvite *rsvp.Service, logger *zap.Logger) {
	r.POST("/e/:eventId/rsvp/channel-events", func(c *gin.Context) {
		track(c, byToken, logger, c.Param("eventId"), c.Query("token"))
	})

	r.POST("/i/:inviteId/channel-events", func(c *gin.Context) {
		track(c, byInvite, logger, "", c.Param("inviteId"))
	})
}

func track(c *gin.Context, svc *rsvp.Service, logger *zap.Logger, eventID, credential string) {
	var body models.ChannelEventRequest
	if !bindJSON(c, &body) {
		return
	}

	ev, err := svc.Track(c.Request.Context(), rsvp.TrackRequest{
		EventID:             eventID,
		Credential:          credential,
		ClientKey:           c.ClientIP(),
		ChannelEventRequest: body,
	})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}
