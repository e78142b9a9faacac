package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/ManuelReschke/Amparo/app/controllers"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/cache"
	"github.com/ManuelReschke/Amparo/internal/pkg/database"
	"github.com/ManuelReschke/Amparo/internal/pkg/env"
	"github.com/ManuelReschke/Amparo/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/mail"
	"github.com/ManuelReschke/Amparo/internal/pkg/router"
	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, closeApp := NewApplication(ctx)
	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
			log.Errorf("[Server] %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("[Server] shutdown: %v", err)
	}
	closeApp()
}

// findBasePath locates the directory holding views/ when started from cmd/amparo.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}

// NewApplication wires the services and returns the app with a cleanup func.
func NewApplication(ctx context.Context) (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	billing.ConfigurePlansFromEnv()

	basePath := findBasePath()
	repos := repository.NewRepositories(database.GetDB())
	redisClient := cache.GetClient()

	// identity provider with cross-instance auth events
	hub := identity.NewHub()
	ids := identity.NewService(repos.Account, repos.Profile, identity.NewRedisTokenStore(redisClient), hub, identity.Config{
		Secret:       []byte(env.GetEnv("AUTH_SECRET", "")),
		SessionTTL:   env.GetEnvDuration("AUTH_TOKEN_TTL", time.Hour),
		MagicLinkTTL: env.GetEnvDuration("AUTH_MAGIC_LINK_TTL", time.Hour),
	})
	broadcaster := identity.NewRedisBroadcaster(redisClient, hub)
	ids.SetBroadcaster(broadcaster)
	go broadcaster.Run(ctx)

	stripeClient := billing.NewStripeClient(billing.StripeConfigFromEnv(),
		billing.NewRedisCustomerCache(redisClient, env.GetEnvDuration("STRIPE_CUSTOMER_CACHE_TTL", time.Hour)))

	registry := authstate.NewRegistry(authstate.Deps{
		Profiles:      repos.Profile,
		Plans:         repos.Plan,
		Roles:         repos.UserRole,
		Subscriptions: stripeClient,
		CheckInterval: env.GetEnvDuration("SUBSCRIPTION_CHECK_INTERVAL", time.Minute),
	}, func(key string) authstate.IdentityClient {
		return ids.Client(key)
	}, env.GetEnvDuration("AUTHSTATE_IDLE_TTL", 30*time.Minute))
	if err := registry.StartJanitor(); err != nil {
		log.Errorf("[AuthState] janitor not started: %v", err)
	}

	storageCfg, err := storage.LoadConfig()
	if err != nil {
		panic(err)
	}
	images, err := storage.NewImagesFromConfig(ctx, storageCfg)
	if err != nil {
		panic(err)
	}

	deps := &controllers.Deps{
		Repos:    repos,
		Identity: ids,
		Registry: registry,
		Billing:  stripeClient,
		Webhooks: billing.NewServiceFromDB(database.GetDB()),
		Images:   images,
		Mailer:   mail.SMTPSender{},
		Captcha:  hcaptcha.NewVerifierFromEnv(),
		BaseURL:  env.PublicBaseURL(),
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     html.New(basePath+"views", ".html"),
		BodyLimit: 12 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	app.Static("/static", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// local uploads, only used while S3 is disabled
	app.Static("/uploads", storageCfg.LocalDir, fiber.Static{
		CacheDuration: 10 * time.Second,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, deps)

	return app, registry.Close
}
