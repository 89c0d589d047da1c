package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreconfig "github.com/postpilot/postpilot/core/config"
	coreDB "github.com/postpilot/postpilot/core/database"
	"github.com/postpilot/postpilot/pkg/pubworker"
	"github.com/postpilot/postpilot/publisher"
	"github.com/postpilot/postpilot/repository"
	"github.com/postpilot/postpilot/scheduler"
	"github.com/postpilot/postpilot/ui/rest"
	"github.com/postpilot/postpilot/ui/rest/middleware"
	"github.com/postpilot/postpilot/ui/websocket"
	"github.com/postpilot/postpilot/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the scheduling engine and its http API",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] Failed to open database: %v", err)
	}

	queueRepo := repository.NewQueueGormRepository(db)
	if err := queueRepo.Init(context.Background()); err != nil {
		logrus.Fatalf("[APP] Failed to init queue schema: %v", err)
	}

	emitter := websocket.NewEventBridge()
	queueUsecase := usecase.NewQueueService(queueRepo, emitter, nil, cfg.Scheduler)

	graphClient := publisher.NewGraphClient(cfg.Facebook)
	pool := pubworker.NewPool(cfg.Pool.Size, cfg.Pool.QueueSize)
	engine := scheduler.NewEngine(queueRepo, graphClient, pool, emitter, nil,
		cfg.Scheduler, cfg.Facebook.RequestTimeout)

	engineCtx, stopEngine := context.WithCancel(context.Background())
	engine.Start(engineCtx)

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "Postpilot Scheduling Engine",
		ServerHeader:            "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	rest.InitRestHealth(app)

	apiGroup := app.Group(cfg.App.BasePath + "/api")

	if len(cfg.App.BasicAuth) > 0 {
		account := make(map[string]string)
		for _, basicAuth := range cfg.App.BasicAuth {
			ba := strings.Split(basicAuth, ":")
			if len(ba) != 2 {
				logrus.Fatalln("Basic auth is not valid, please use the following format <user>:<secret>")
			}
			account[ba[0]] = ba[1]
		}
		apiGroup.Use(basicauth.New(basicauth.Config{
			Users: account,
			Next: func(c *fiber.Ctx) bool {
				// Allow CORS preflight without credentials.
				return c.Method() == fiber.MethodOptions
			},
		}))
	}

	rest.InitRestQueue(apiGroup, queueUsecase)
	rest.InitRestMonitoring(apiGroup, queueUsecase, pool)

	websocket.RegisterRoutes(app)
	go websocket.RunHub()

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		stopEngine()
		engine.Stop()
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start server:", err)
	}
}
