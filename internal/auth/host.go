package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// hostCtxKey is the Gin context key used to store the authenticated host ID.
const hostCtxKey = "host_id"

var ErrInvalidCredential = errors.New("invalid host credential")

// HostResolver maps an opaque credential to a host user id.
type HostResolver interface {
	ResolveHost(ctx context.Context, credential string) (string, error)
}

// StaticKeys maps apiKey -> hostID. It serves operators and scripts that
// cannot obtain a session.
type StaticKeys map[string]string

func (k StaticKeys) ResolveHost(_ context.Context, key string) (string, error) {
	hostID, ok := k[strings.TrimSpace(key)]
	if !ok || key == "" {
		return "", ErrInvalidCredential
	}
	return hostID, nil
}

// JWTVerifier accepts HS256 tokens minted by the identity provider. The
// host id is the subject claim.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) ResolveHost(_ context.Context, tokenString string) (string, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(v.issuer))
	}

	claims := &jwtv5.RegisteredClaims{}
	token, err := jwtv5.ParseWithClaims(tokenString, claims, func(*jwtv5.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidCredential
	}
	return claims.Subject, nil
}

// Issue mints a session token for hostID. Login lives with the identity
// provider; this is for local tooling and tests.
func (v *JWTVerifier) Issue(hostID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtv5.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   hostID,
		Issuer:    v.issuer,
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(v.secret)
}

// HostConfig selects which credentials the host middleware accepts.
// Either resolver may be nil.
type HostConfig struct {
	Sessions   HostResolver // bearer token or session cookie
	APIKeys    HostResolver // X-API-Key header
	CookieName string
}

// HostMiddleware resolves the caller to a host id or aborts with 401.
func HostMiddleware(cfg HostConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			hostID string
			err    = ErrInvalidCredential
		)
		if cred := sessionCredential(c, cfg.CookieName); cred != "" && cfg.Sessions != nil {
			hostID, err = cfg.Sessions.ResolveHost(ctx, cred)
		} else if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" && cfg.APIKeys != nil {
			hostID, err = cfg.APIKeys.ResolveHost(ctx, key)
		}
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="rsvp-host"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(hostCtxKey, hostID)
		c.Next()
	}
}

func sessionCredential(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil {
			return v
		}
	}
	return ""
}

// HostID returns the authenticated host ID from the request context.
func HostID(c *gin.Context) string {
	v, _ := c.Get(hostCtxKey)
	s, _ := v.(string)
	return s
}

var (
	_ HostResolver = StaticKeys(nil)
	_ HostResolver = (*JWTVerifier)(nil)
)
