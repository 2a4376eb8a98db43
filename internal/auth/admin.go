package auth

import (
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminRealm     = "rsvp-admin"
	adminCtxKey    = "admin_user"
	adminCacheTTL  = 5 * time.Minute
	bcryptPrefix2a = "$2a$"
	bcryptPrefix2b = "$2b$"
	bcryptPrefix2y = "$2y$"
)

// AdminCredentials are the operator-configured Basic credentials of the
// single-tenant admin views. Password may be a bcrypt hash.
type AdminCredentials struct {
	Username string
	Password string
}

func (a AdminCredentials) hashed() bool {
	for _, p := range []string{bcryptPrefix2a, bcryptPrefix2b, bcryptPrefix2y} {
		if strings.HasPrefix(a.Password, p) {
			return true
		}
	}
	return false
}

// validate compares both fields in constant time. Digests are compared so
// length differences do not short-circuit.
func (a AdminCredentials) validate(_ context.Context, _ *http.Request, username, password string) (auth.Info, error) {
	gotUser := sha256.Sum256([]byte(username))
	wantUser := sha256.Sum256([]byte(a.Username))
	userMatch := subtle.ConstantTimeCompare(gotUser[:], wantUser[:]) == 1

	var passMatch bool
	if a.hashed() {
		passMatch = bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) == nil
	} else {
		gotPass := sha256.Sum256([]byte(password))
		wantPass := sha256.Sum256([]byte(a.Password))
		passMatch = subtle.ConstantTimeCompare(gotPass[:], wantPass[:]) == 1
	}

	if !userMatch || !passMatch {
		return nil, errors.New("invalid credentials")
	}
	return auth.NewDefaultUser(username, username, nil, nil), nil
}

// NewAdminAuthenticator builds a go-guardian authenticator with the Basic
// strategy. Successful logins are cached briefly; the cache keeps a
// SHA-256 digest of the password, never the password itself.
func NewAdminAuthenticator(ctx context.Context, creds AdminCredentials) auth.Authenticator {
	authenticator, _ := newAdminAuthenticator(ctx, creds)
	return authenticator
}

func newAdminAuthenticator(ctx context.Context, creds AdminCredentials) (auth.Authenticator, store.Cache) {
	authenticator := auth.New()
	cache := store.NewFIFO(ctx, adminCacheTTL)
	strategy := basic.NewWithOptions(creds.validate, cache, basic.SetHash(crypto.SHA256))
	authenticator.EnableStrategy(basic.StrategyKey, strategy)
	return authenticator, cache
}

// AdminMiddleware enforces HTTP Basic and answers 401 with a challenge.
func AdminMiddleware(authenticator auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authenticator.Authenticate(c.Request)
		if err != nil {
			c.Header("WWW-Authenticate", `Basic realm="`+adminRealm+`"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(adminCtxKey, user.UserName())
		c.Next()
	}
}

// AdminUser returns the authenticated admin name from the request context.
func AdminUser(c *gin.Context) string {
	v, _ := c.Get(adminCtxKey)
	s, _ := v.(string)
	return s
}
