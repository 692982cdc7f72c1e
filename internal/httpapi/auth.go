package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tasklyhq/assistant/internal/identity"
)

// AuthConfig holds authentication configuration. An empty Secret disables
// token verification and resolves the user from request headers instead,
// which is only meant for local development and tests.
type AuthConfig struct {
	Secret string // HS256 signing secret, from env ASSISTANT_JWT_SECRET
}

const localsUserKey = "user"

// NewAuthMiddleware returns a Fiber middleware that resolves the current
// user. With a secret configured it validates the Authorization bearer token
// as an HS256 JWT and reads the sub/username/email claims.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Probe endpoints stay open
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		if cfg.Secret == "" {
			c.Locals(localsUserKey, headerUser(c))
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}
		raw := strings.TrimPrefix(authHeader, "Bearer ")

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			logger.Warn().
				Err(err).
				Str("path", path).
				Str("method", c.Method()).
				Msg("unauthorized request: invalid token")
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_token", "Unauthorized",
				"Invalid or expired token")
		}

		user := identity.User{}
		if sub, ok := claims["sub"].(string); ok {
			user.ID = sub
		}
		if name, ok := claims["username"].(string); ok {
			user.Username = name
		}
		if email, ok := claims["email"].(string); ok {
			user.Email = email
		}
		if user.ID == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_subject", "Unauthorized",
				"Token is missing the sub claim")
		}

		c.Locals(localsUserKey, user)
		return c.Next()
	}
}

// headerUser builds the development-mode identity from plain headers.
func headerUser(c *fiber.Ctx) identity.User {
	u := identity.User{
		ID:       c.Get("X-User-ID"),
		Username: c.Get("X-User-Name"),
		Email:    c.Get("X-User-Email"),
	}
	if u.ID == "" {
		u.ID = "local"
	}
	if u.Username == "" {
		u.Username = u.ID
	}
	return u
}

// currentUser reads the identity the auth middleware resolved.
func currentUser(c *fiber.Ctx) identity.User {
	u, _ := c.Locals(localsUserKey).(identity.User)
	return u
}

// calendarAuthFromRequest reads the caller's calendar OAuth material. The
// mobile app holds the token client side and forwards it per request.
func calendarAuthFromRequest(c *fiber.Ctx) identity.CalendarAuth {
	auth := identity.CalendarAuth{
		AccessToken:  c.Get("X-Calendar-Token"),
		RefreshToken: c.Get("X-Calendar-Refresh-Token"),
	}
	if v := c.Get("X-Calendar-Token-Expiry"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			auth.Expiry = t
		}
	}
	return auth
}
