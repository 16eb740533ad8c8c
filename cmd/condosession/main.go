package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-condo-auth"
	"github.com/goliatone/go-condo-auth/activitymap"
	"github.com/goliatone/go-condo-auth/enrichment"
	"github.com/goliatone/go-condo-auth/enrichment/rediscache"
	"github.com/goliatone/go-condo-auth/httpapi"
	"github.com/goliatone/go-condo-auth/sessionstore"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   ServerConfig
	session  auth.Config
	logger   auth.Logger
	db       *bun.DB
	redis    *redis.Client
	store    *sessionstore.Store
	accounts sessionstore.Accounts
	profiles auth.EnrichmentStore
	cache    *rediscache.Cache
	manager  *auth.SessionManager
	srv      *fiber.App
}

func main() {
	logger := stdLogger{}

	cfg, err := loadServerConfig()
	if err != nil {
		logger.Error("config: %v", err)
		os.Exit(1)
	}

	sessionCfg, err := auth.LoadConfig()
	if err != nil {
		logger.Error("session config: %v", err)
		os.Exit(1)
	}

	fmt.Println("============")
	fmt.Println(print.MaybePrettyJSON(cfg))
	fmt.Println(print.MaybePrettyJSON(sessionCfg))
	fmt.Println("============")

	app := &App{config: cfg, session: sessionCfg, logger: logger}
	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		logger.Error("persistence: %v", err)
		os.Exit(1)
	}
	defer app.db.Close()

	if err := WithEnrichment(ctx, app); err != nil {
		logger.Error("enrichment: %v", err)
		os.Exit(1)
	}

	WithRestoredSession(ctx, app)

	WithSessionManager(ctx, app)
	defer app.manager.Close()

	WithHTTPServer(app)

	go func() {
		if err := app.srv.Listen(cfg.ListenAddr); err != nil {
			logger.Error("server stopped: %v", err)
		}
	}()

	sig := WaitExitSignal()
	logger.Info("received %s, shutting down", sig)

	if err := app.srv.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warn("shutdown: %v", err)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
}

// WithPersistence opens the database, creates the tables and seeds the
// admin account when configured.
func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.DatabaseDSN)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	sqldb.SetMaxOpenConns(1)
	app.db = bun.NewDB(sqldb, sqlitedialect.New())

	if err := sessionstore.CreateSchema(ctx, app.db); err != nil {
		return err
	}
	if err := enrichment.CreateSchema(ctx, app.db); err != nil {
		return err
	}

	app.accounts = sessionstore.NewAccountsRepository(app.db)
	tokens := sessionstore.NewTokenService([]byte(app.config.SigningKey),
		sessionstore.WithIssuer(app.config.Issuer),
		sessionstore.WithTokenTTL(app.config.AccessTTL, app.config.RefreshTTL),
	)
	app.store = sessionstore.NewStore(app.accounts, tokens,
		sessionstore.WithStoreLogger(app.logger),
	)

	return seedAdmin(ctx, app)
}

func seedAdmin(ctx context.Context, app *App) error {
	if app.config.AdminEmail == "" {
		return nil
	}

	if _, err := app.accounts.GetByIdentifier(ctx, app.config.AdminEmail); err == nil {
		return nil
	}

	account, err := app.accounts.Register(ctx, &sessionstore.Account{
		Email:       app.config.AdminEmail,
		DisplayName: "Administrator",
		Role:        auth.RoleAdmin.String(),
		Approved:    true,
		ApprovedBy:  "bootstrap",
	}, app.config.AdminPassword)
	if err != nil {
		return err
	}

	app.logger.Info("seeded admin account %s", account.ID)
	return nil
}

// WithEnrichment builds the profile store, behind redis when configured
func WithEnrichment(ctx context.Context, app *App) error {
	profiles := enrichment.NewStore(app.db,
		enrichment.WithPhoneRegion(app.config.PhoneRegion),
		enrichment.WithLogger(app.logger),
	)
	app.profiles = profiles

	if app.config.RedisAddr == "" {
		return nil
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})

	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis %s unreachable, enrichment cache disabled: %v", app.config.RedisAddr, err)
		_ = app.redis.Close()
		app.redis = nil
		return nil
	}

	return withCache(app, app.redis)
}

func withCache(app *App, client rediscache.Client) error {
	cache, err := rediscache.New(rediscache.Config{
		Client: client,
		Next:   app.profiles,
		TTL:    app.config.CacheTTL,
		Logger: app.logger,
	})
	if err != nil {
		return err
	}
	app.cache = cache
	app.profiles = cache
	return nil
}

// WithRestoredSession resumes the configured token pair so the bootstrap
// finds it as the current session. Failures only log, the process starts
// signed out.
func WithRestoredSession(ctx context.Context, app *App) {
	access := strings.TrimSpace(app.config.RestoreAccessToken)
	if access == "" {
		return
	}

	session, err := app.store.Restore(ctx, access, strings.TrimSpace(app.config.RestoreRefreshToken))
	if err != nil {
		app.logger.Warn("session restore failed, starting signed out: %v", err)
		return
	}
	app.logger.Info("restored session for %s", session.UserID)
}

func WithSessionManager(ctx context.Context, app *App) {
	app.manager = auth.NewSessionManager(app.store, app.profiles,
		auth.WithConfig(app.session),
		auth.WithLogger(app.logger),
		auth.WithActivitySink(activitymap.NewMapper().Sink(func(_ context.Context, record activitymap.Record) error {
			app.logger.Info("activity %s", print.MaybePrettyJSON(record))
			return nil
		})),
	)
	app.manager.Start(ctx)
}

func WithHTTPServer(app *App) {
	app.srv = fiber.New(fiber.Config{
		AppName:               "condo-session",
		DisableStartupMessage: true,
	})

	controller := httpapi.NewController(app.manager, httpapi.WithLogger(app.logger))
	controller.Register(app.srv)

	app.srv.Get("/me", controller.RequireIdentity(), func(c *fiber.Ctx) error {
		identity, _ := httpapi.IdentityFromCtx(c)
		return c.JSON(identity)
	})

	admin := app.srv.Group("/admin", controller.RequireRole(auth.RoleSyndic))
	admin.Post("/enrichment/:subject/invalidate", invalidateEnrichment(app, controller))
}

// invalidateEnrichment drops the cached profile answer of a subject, e.g.
// after a unit assignment changed
func invalidateEnrichment(app *App, controller *httpapi.Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := strings.TrimSpace(c.Params("subject"))

		if app.cache == nil {
			return c.JSON(fiber.Map{"subject_id": subject, "invalidated": false})
		}

		if err := app.cache.Invalidate(c.UserContext(), subject); err != nil {
			return controller.ErrorHandler(c, err)
		}

		actor, _ := httpapi.IdentityFromCtx(c)
		app.logger.Info("enrichment cache for %s invalidated by %s", subject, actor.ID)
		return c.JSON(fiber.Map{"subject_id": subject, "invalidated": true})
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

type stdLogger struct{}

func (stdLogger) Debug(format string, args ...any) {}

func (stdLogger) Info(format string, args ...any) {
	fmt.Fprintf(os.Stdout, "[INF] CONDO "+format+"\n", args...)
}

func (stdLogger) Warn(format string, args ...any) {
	fmt.Fprintf(os.Stdout, "[WRN] CONDO "+format+"\n", args...)
}

func (stdLogger) Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[ERR] CONDO "+format+"\n", args...)
}
