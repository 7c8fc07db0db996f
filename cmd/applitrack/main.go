package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/applitrack/AppliTrack/app/controllers"
	"github.com/applitrack/AppliTrack/internal/pkg/applications"
	"github.com/applitrack/AppliTrack/internal/pkg/billing"
	"github.com/applitrack/AppliTrack/internal/pkg/cache"
	"github.com/applitrack/AppliTrack/internal/pkg/config"
	"github.com/applitrack/AppliTrack/internal/pkg/constants"
	"github.com/applitrack/AppliTrack/internal/pkg/database"
	"github.com/applitrack/AppliTrack/internal/pkg/env"
	"github.com/applitrack/AppliTrack/internal/pkg/forwarder"
	"github.com/applitrack/AppliTrack/internal/pkg/outbox"
	"github.com/applitrack/AppliTrack/internal/pkg/router"
)

const outboxWorkerCount = 4

func main() {
	app := NewApplication()

	// graceful shutdown: stop accepting requests, then drain the outbox
	// workers before exiting
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if manager := outbox.GetManager(); manager != nil {
		manager.Stop()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	database.SetupDatabase()
	cache.SetupCache()

	// outbox dispatcher with both side-effect processors
	manager := outbox.Setup(
		database.GetDB(),
		outboxWorkerCount,
		outbox.NewEmailProcessor(nil),
		outbox.NewForwardProcessor(forwarder.NewClient(cfg.ForwardURL)),
	)
	manager.Start()

	paymentService := billing.NewServiceFromDB(database.GetDB(), cfg.WebhookSecret)
	paymentService.Wake = manager.Signal
	applicationService := applications.NewService(database.GetDB(), cfg.WebhookSecret)
	applicationService.Wake = manager.Signal
	controllers.SetWebhookServices(paymentService, applicationService)

	app := fiber.New(fiber.Config{
		AppName: "AppliTrack",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get(constants.MetricsRoute, monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
