package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantLogged bool
	}{
		{"validation", apperr.Validation("name is required"), http.StatusBadRequest, `"error":"name is required"`, false},
		{"cap", apperr.CapExceeded(4), http.StatusBadRequest, `"maxAllowedAttendees":4`, false},
		{"not found", apperr.NotFound("event", "x"), http.StatusNotFound, `event \"x\" not found`, false},
		{"unauthorized", apperr.Unauthorized("no session"), http.StatusUnauthorized, "no session", false},
		{"rate limited", apperr.RateLimited(), http.StatusTooManyRequests, "too many requests", false},
		{"persistence", apperr.Persistence("upsert rsvp", errors.New("conn refused")), http.StatusInternalServerError, "db operation failed", true},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.ErrorLevel)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, zap.New(core), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Equal(t, tt.wantLogged, logs.Len() > 0)
			assert.NotContains(t, w.Body.String(), "conn refused")
		})
	}
}
