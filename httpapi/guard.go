package httpapi

import (
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
)

// LocalsIdentityKey is where the guards store the identity in fiber locals
const LocalsIdentityKey = "session_identity"

var (
	errNotAuthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
				WithTextCode("SESSION_REQUIRED").
				WithCode(goerrors.CodeUnauthorized)

	errInsufficientRole = goerrors.New("insufficient role", goerrors.CategoryAuthz).
				WithTextCode("SESSION_FORBIDDEN").
				WithCode(goerrors.CodeForbidden)
)

// RequireIdentity rejects requests while no identity is published. The
// identity is stored in the fiber locals and in the user context.
func (c *Controller) RequireIdentity() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		identity, err := c.currentIdentity()
		if err != nil {
			return c.ErrorHandler(ctx, err)
		}
		c.attach(ctx, identity)
		return ctx.Next()
	}
}

// RequireRole is RequireIdentity plus a minimum role check
func (c *Controller) RequireRole(minRole auth.Role) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		identity, err := c.currentIdentity()
		if err != nil {
			return c.ErrorHandler(ctx, err)
		}

		if !identity.Role.IsAtLeast(minRole) {
			c.logger.Debug("subject %s with role %s denied, needs %s", identity.ID, identity.Role, minRole)
			return c.ErrorHandler(ctx, errInsufficientRole.Clone().WithMetadata(map[string]any{
				"required_role": minRole.String(),
				"role":          identity.Role.String(),
			}))
		}

		c.attach(ctx, identity)
		return ctx.Next()
	}
}

// IdentityFromCtx returns the identity stored by a guard
func IdentityFromCtx(ctx *fiber.Ctx) (*auth.Identity, bool) {
	identity, ok := ctx.Locals(LocalsIdentityKey).(*auth.Identity)
	return identity, ok && identity != nil
}

func (c *Controller) currentIdentity() (*auth.Identity, error) {
	state := c.service.State()
	if !state.IsAuthenticated || state.Identity == nil {
		return nil, errNotAuthenticated
	}
	return state.Identity, nil
}

func (c *Controller) attach(ctx *fiber.Ctx, identity *auth.Identity) {
	ctx.Locals(LocalsIdentityKey, identity)
	ctx.SetUserContext(auth.WithIdentity(ctx.UserContext(), identity))
}
