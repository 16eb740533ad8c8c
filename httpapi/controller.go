// Package httpapi exposes a SessionManager over a small JSON API built on
// fiber.
package httpapi

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
)

// SessionService is the part of *auth.SessionManager the API drives
type SessionService interface {
	State() auth.SessionState
	Login(ctx context.Context, credential auth.Credential) (bool, error)
	LoginWithSecret(ctx context.Context, secret string) (bool, error)
	Logout(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) (bool, error)
}

var _ SessionService = (*auth.SessionManager)(nil)

type Routes struct {
	Session     string
	Login       string
	LoginSecret string
	Logout      string
	Refresh     string
}

func DefaultRoutes() Routes {
	return Routes{
		Session:     "/session",
		Login:       "/session/login",
		LoginSecret: "/session/login/secret",
		Logout:      "/session/logout",
		Refresh:     "/session/refresh",
	}
}

// Controller serves the session endpoints
type Controller struct {
	service      SessionService
	logger       auth.Logger
	routes       Routes
	ErrorHandler func(c *fiber.Ctx, err error) error
}

// ControllerOption customizes a Controller
type ControllerOption func(*Controller)

// WithLogger sets the logger
func WithLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRoutes overrides the default paths
func WithRoutes(routes Routes) ControllerOption {
	return func(c *Controller) {
		c.routes = routes
	}
}

// WithErrorHandler replaces the JSON error responder
func WithErrorHandler(handler func(c *fiber.Ctx, err error) error) ControllerOption {
	return func(c *Controller) {
		if handler != nil {
			c.ErrorHandler = handler
		}
	}
}

func NewController(service SessionService, opts ...ControllerOption) *Controller {
	c := &Controller{
		service: service,
		logger:  nopLogger{},
		routes:  DefaultRoutes(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}
	return c
}

// Register mounts the session endpoints on router
func (c *Controller) Register(router fiber.Router) {
	router.Get(c.routes.Session, c.Show)
	router.Post(c.routes.Login, c.LoginPost)
	router.Post(c.routes.LoginSecret, c.LoginSecretPost)
	router.Post(c.routes.Logout, c.LogoutPost)
	router.Post(c.routes.Refresh, c.RefreshPost)
}

// LoginPayload is the body of POST /session/login
type LoginPayload struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
}

func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Identifier, validation.Required, validation.Length(1, 320)),
		validation.Field(&p.Password, validation.Required),
	)
}

// SecretPayload is the body of POST /session/login/secret
type SecretPayload struct {
	Secret string `json:"secret" form:"secret"`
}

func (p SecretPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Secret, validation.Required),
	)
}

// StateResponse is the body returned by every successful call
type StateResponse struct {
	OK    bool              `json:"ok"`
	State auth.SessionState `json:"state"`
}

func (c *Controller) Show(ctx *fiber.Ctx) error {
	return ctx.JSON(StateResponse{OK: true, State: c.service.State()})
}

func (c *Controller) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.bind(ctx, payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	ok, err := c.service.Login(ctx.UserContext(), auth.Credential{
		Identifier: payload.Identifier,
		Secret:     payload.Password,
	})
	return c.respond(ctx, ok, err)
}

func (c *Controller) LoginSecretPost(ctx *fiber.Ctx) error {
	payload := new(SecretPayload)
	if err := c.bind(ctx, payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	ok, err := c.service.LoginWithSecret(ctx.UserContext(), payload.Secret)
	return c.respond(ctx, ok, err)
}

// LogoutPost always clears the local session. A failed remote sign out is
// still reported as an error.
func (c *Controller) LogoutPost(ctx *fiber.Ctx) error {
	ok, err := c.service.Logout(ctx.UserContext())
	return c.respond(ctx, ok, err)
}

func (c *Controller) RefreshPost(ctx *fiber.Ctx) error {
	ok, err := c.service.Refresh(ctx.UserContext())
	return c.respond(ctx, ok, err)
}

func (c *Controller) respond(ctx *fiber.Ctx, ok bool, err error) error {
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return ctx.JSON(StateResponse{OK: ok, State: c.service.State()})
}

type validatable interface {
	Validate() error
}

func (c *Controller) bind(ctx *fiber.Ctx, payload validatable) error {
	if err := ctx.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request body").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"fields": fieldErrors(err)})
	}
	return nil
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	errs, ok := err.(validation.Errors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for field, fieldErr := range errs {
		if fieldErr != nil {
			out[field] = fieldErr.Error()
		}
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
