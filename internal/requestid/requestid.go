// Package requestid assigns every API request an ID and propagates it
// through the Fiber locals and the request context.
package requestid

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header is the inbound and outbound request ID header.
const Header = "X-Request-ID"

// LocalsKey is where the middleware stores the ID on the Fiber context.
const LocalsKey = "request_id"

type ctxKey struct{}

// Middleware echoes the client's request ID, or mints one when the header is
// absent, and exposes it on the response header, the Fiber locals, and the
// request's user context.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(Header, id)
		c.Locals(LocalsKey, id)
		c.SetUserContext(WithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from context, or generates a new one.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
