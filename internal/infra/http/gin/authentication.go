package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	domainbooking "bookingengine/internal/domain/booking"
)

const principalContextKey = "bookingengine.principal"

var errTokenInvalid = errors.New("invalid token")

// Claims is the identity carried by a bearer token: subject plus one role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 identity tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
}

func (t Tokens) Issue(actor domainbooking.Actor, now time.Time) (string, error) {
	ttl := t.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

func (t Tokens) Parse(raw string) (domainbooking.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domainbooking.Actor{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return domainbooking.Actor{}, errTokenInvalid
	}
	role, err := domainbooking.ParseRole(claims.Role)
	if err != nil {
		return domainbooking.Actor{}, fmt.Errorf("%w: %w", errTokenInvalid, err)
	}
	return domainbooking.Actor{ID: claims.Subject, Role: role}, nil
}

type AuthMiddleware struct {
	Tokens Tokens
	Logger *slog.Logger
}

// Handle resolves the bearer token when present. Anonymous requests pass
// through; handlers that need an actor call requireActor.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.Next()
		return
	}
	actor, err := m.Tokens.Parse(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, actor)
	c.Next()
}

func setPrincipal(c *gin.Context, actor domainbooking.Actor) {
	c.Set(principalContextKey, actor)
	c.Set("actor_id", actor.ID)
}

func currentPrincipal(c *gin.Context) (domainbooking.Actor, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return domainbooking.Actor{}, false
	}
	actor, ok := val.(domainbooking.Actor)
	return actor, ok && !actor.IsZero()
}

// requireActor writes 401 when no identity is attached, and 403 when roles is
// non-empty and the actor holds none of them.
func requireActor(c *gin.Context, roles ...domainbooking.Role) (domainbooking.Actor, bool) {
	actor, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required", "code": "unauthenticated"})
		return domainbooking.Actor{}, false
	}
	if len(roles) == 0 {
		return actor, true
	}
	for _, r := range roles {
		if actor.Role == r {
			return actor, true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions", "code": "forbidden"})
	return domainbooking.Actor{}, false
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
