package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp() (*fiber.App, *string) {
	app := fiber.New()
	app.Use(Middleware())
	seen := new(string)
	app.Get("/", func(c *fiber.Ctx) error {
		*seen = c.Locals(LocalsKey).(string)
		return c.SendStatus(http.StatusOK)
	})
	return app, seen
}

func TestMiddleware_EchoesClientID(t *testing.T) {
	app, seen := testApp()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(Header, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(Header))
	assert.Equal(t, "req-42", *seen)
}

func TestMiddleware_GeneratesWhenMissing(t *testing.T) {
	app, seen := testApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get(Header))
	assert.Equal(t, resp.Header.Get(Header), *seen)
}

func TestFromContext_Missing(t *testing.T) {
	id := FromContext(context.Background())
	assert.NotEmpty(t, id) // generates new UUID
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}
