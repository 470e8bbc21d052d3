package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/korehq/korebank/app/controllers"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/bankdirectory"
	"github.com/korehq/korebank/internal/pkg/cache"
	"github.com/korehq/korebank/internal/pkg/database"
	"github.com/korehq/korebank/internal/pkg/env"
	"github.com/korehq/korebank/internal/pkg/jobqueue"
	"github.com/korehq/korebank/internal/pkg/mandates"
	"github.com/korehq/korebank/internal/pkg/metrics/counter"
	"github.com/korehq/korebank/internal/pkg/onepipe"
	"github.com/korehq/korebank/internal/pkg/router"
	"github.com/korehq/korebank/internal/pkg/secrets"
	"github.com/korehq/korebank/internal/pkg/verification"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	client, err := onepipe.NewClientFromEnv()
	if err != nil {
		log.Fatalf("provider client setup failed: %v", err)
	}
	cipher, err := secrets.NewFromEnv()
	if err != nil {
		log.Fatalf("at-rest cipher setup failed: %v", err)
	}
	redisCache := cache.NewRedisCacheFromEnv()

	bankSvc := bankdirectory.NewService(client, redisCache)
	mandateSvc := mandates.NewService(repos.Profile, repos.RulesEngine, repos.Mandate, client, cipher)
	verifySvc := verification.NewService(db, repos.Profile, repos.Attempt, repos.Webhook, client, cipher)

	counters := counter.New(redisCache.Client(), db)
	queueManager := jobqueue.NewManager(redisCache.Client(), repos.Webhook, repos.Attempt, mandateSvc, counters)
	queueManager.Start()

	controllers.InitServices(verifySvc, mandateSvc, bankSvc, queueManager)

	app := fiber.New(fiber.Config{
		AppName: "korebank",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
