package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/auth"
	"github.com/PratikDhanave/invite-rsvp-service/internal/directory"
	"github.com/PratikDhanave/invite-rsvp-service/internal/ledger"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

// RegisterHostRoutes registers the multi-tenant guest directory. The
// caller mounts them behind auth.HostMiddleware; every handler scopes its
// work to auth.HostID.
//
// GET|POST     /host/events/:eventId/guests
// PATCH|DELETE /host/events/:eventId/guests/:guestId
// PUT          /host/events/:eventId/guests/:guestId/response
// GET          /host/events/:eventId/guests/:guestId/share
// POST         /host/events/:eventId/guests/:guestId/whatsapp
// GET          /host/events/:eventId/export.csv
func RegisterHostRoutes(r gin.IRoutes, dir *directory.Service, logger *zap.Logger) {
	r.GET("/host/events/:eventId/guests", func(c *gin.Context) {
		guests, err := dir.ListGuests(c.Request.Context(), auth.HostID(c), c.Param("eventId"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"guests": guests})
	})

	r.POST("/host/events/:eventId/guests", func(c *gin.Context) {
		var req models.GuestRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := dir.CreateGuest(c.Request.Context(), auth.HostID(c), c.Param("eventId"), req)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	})

	r.PATCH("/host/events/:eventId/guests/:guestId", func(c *gin.Context) {
		var patch models.GuestPatch
		if !bindJSON(c, &patch) {
			return
		}
		g, err := dir.UpdateGuest(c.Request.Context(), auth.HostID(c), c.Param("eventId"), c.Param("guestId"), patch)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, g)
	})

	r.DELETE("/host/events/:eventId/guests/:guestId", func(c *gin.Context) {
		if err := dir.DeleteGuest(c.Request.Context(), auth.HostID(c), c.Param("eventId"), c.Param("guestId")); err != nil {
			writeError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.PUT("/host/events/:eventId/guests/:guestId/response", func(c *gin.Context) {
		var req models.ResponseOverride
		if !bindJSON(c, &req) {
			return
		}
		res, err := dir.SetResponse(c.Request.Context(), auth.HostID(c), c.Param("eventId"), c.Param("guestId"), ledger.Edit{
			Status:        req.AttendanceStatus,
			AttendeeCount: req.AttendeeCount,
			GuestMessage:  req.GuestMessage,
			Notes:         req.Notes,
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, res.Entry)
	})

	r.GET("/host/events/:eventId/guests/:guestId/share", func(c *gin.Context) {
		link, err := dir.ShareLink(c.Request.Context(), auth.HostID(c), c.Param("eventId"), c.Param("guestId"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, link)
	})

	r.POST("/host/events/:eventId/guests/:guestId/whatsapp", func(c *gin.Context) {
		link, err := dir.SendWhatsApp(c.Request.Context(), auth.HostID(c), c.Param("eventId"), c.Param("guestId"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, link)
	})

	r.GET("/host/events/:eventId/export.csv", func(c *gin.Context) {
		eventID := c.Param("eventId")
		out, err := dir.ExportCSV(c.Request.Context(), auth.HostID(c), eventID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		attachment(c, eventID, "csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
	})
}
