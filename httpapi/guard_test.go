package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-condo-auth"
	"github.com/goliatone/go-condo-auth/httpapi"
	"github.com/stretchr/testify/assert"
)

func guardedApp(service *MockSessionService) *fiber.App {
	app, controller := newApp(service)

	whoami := func(c *fiber.Ctx) error {
		local, ok := httpapi.IdentityFromCtx(c)
		if !ok {
			return c.SendStatus(http.StatusTeapot)
		}
		fromCtx, ok := auth.IdentityFromContext(c.UserContext())
		if !ok || fromCtx.ID != local.ID {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.JSON(fiber.Map{"id": local.ID, "role": local.Role})
	}

	app.Get("/me", controller.RequireIdentity(), whoami)
	app.Get("/council", controller.RequireRole(auth.RoleCouncil), whoami)
	return app
}

func TestRequireIdentity(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		app := guardedApp(&MockSessionService{})

		status, body := do(t, app, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "SESSION_REQUIRED", body["text_code"])
	})

	t.Run("signed in", func(t *testing.T) {
		app := guardedApp(&MockSessionService{state: signedIn("u1", auth.RoleResident)})

		status, body := do(t, app, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "u1", body["id"])
	})
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		state  auth.SessionState
		status int
	}{
		{name: "anonymous", state: auth.SessionState{}, status: http.StatusUnauthorized},
		{name: "resident", state: signedIn("u1", auth.RoleResident), status: http.StatusForbidden},
		{name: "council", state: signedIn("u2", auth.RoleCouncil), status: http.StatusOK},
		{name: "syndic", state: signedIn("u3", auth.RoleSyndic), status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := guardedApp(&MockSessionService{state: tc.state})
			status, _ := do(t, app, http.MethodGet, "/council", "")
			assert.Equal(t, tc.status, status)
		})
	}
}
