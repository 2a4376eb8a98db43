package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/admin"
	"github.com/PratikDhanave/invite-rsvp-service/internal/audit"
	"github.com/PratikDhanave/invite-rsvp-service/internal/directory"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminDeps groups what the legacy admin routes read from.
type AdminDeps struct {
	Query     *admin.Query
	Trail     *audit.Trail
	Directory *directory.Service
	Logger    *zap.Logger
}

// RegisterAdminRoutes registers the single-tenant admin endpoints. The
// caller is expected to mount them behind HTTP Basic.
//
// GET  /admin/rsvps?eventId=...&status=...&search=...
// GET  /admin/rsvps/export.csv?eventId=...
// GET  /admin/rsvps/export.xlsx?eventId=...
// GET  /admin/rsvps/:rsvpId/audit
// POST /admin/events/:eventId/guests/:guestId/link
func RegisterAdminRoutes(r gin.IRoutes, d AdminDeps) {
	logger := d.Logger

	r.GET("/admin/rsvps", func(c *gin.Context) {
		listing, err := d.Query.List(c.Request.Context(), admin.Filter{
			EventID: c.Query("eventId"),
			Status:  c.Query("status"),
			Search:  c.Query("search"),
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, listing)
	})

	r.GET("/admin/rsvps/export.csv", func(c *gin.Context) {
		eventID := c.Query("eventId")
		out, err := d.Query.ExportCSV(c.Request.Context(), eventID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		attachment(c, eventID, "csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
	})

	r.GET("/admin/rsvps/export.xlsx", func(c *gin.Context) {
		eventID := c.Query("eventId")
		out, err := d.Query.ExportXLSX(c.Request.Context(), eventID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		attachment(c, eventID, "xlsx")
		c.Data(http.StatusOK, xlsxContentType, out)
	})

	r.GET("/admin/rsvps/:rsvpId/audit", func(c *gin.Context) {
		history, err := d.Trail.History(c.Request.Context(), c.Param("rsvpId"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rsvpId": c.Param("rsvpId"), "history": history})
	})

	r.POST("/admin/events/:eventId/guests/:guestId/link", func(c *gin.Context) {
		var req models.LinkRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		if req.TTLSeconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttlSeconds must not be negative"})
			return
		}

		link, err := d.Directory.IssueLink(c.Request.Context(), c.Param("eventId"), c.Param("guestId"),
			time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, link)
	})
}

func attachment(c *gin.Context, eventID, ext string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="rsvps-%s.%s"`, eventID, ext))
}
