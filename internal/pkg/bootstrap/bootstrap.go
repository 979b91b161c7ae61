// Package bootstrap assembles the application: environment, database, cache,
// repositories, services, background workers and the fiber app.
package bootstrap

import (
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lexdrive/ratehub/app/controllers"
	"github.com/lexdrive/ratehub/app/repository"
	"github.com/lexdrive/ratehub/internal/pkg/cache"
	"github.com/lexdrive/ratehub/internal/pkg/classify"
	"github.com/lexdrive/ratehub/internal/pkg/database"
	"github.com/lexdrive/ratehub/internal/pkg/env"
	"github.com/lexdrive/ratehub/internal/pkg/importer"
	"github.com/lexdrive/ratehub/internal/pkg/importqueue"
	"github.com/lexdrive/ratehub/internal/pkg/router"
	"github.com/lexdrive/ratehub/internal/pkg/s3archive"
	"github.com/lexdrive/ratehub/internal/pkg/vehiclematch"
)

// Application is the assembled server plus its background queue manager.
type Application struct {
	App   *fiber.App
	Queue *importqueue.Manager
}

// NewApplication wires everything together. The caller owns Listen and the
// queue manager's Start/Stop lifecycle.
func NewApplication() *Application {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	matcher := vehiclematch.NewMatcher(repos.Vehicle, repos.CapMatch, repos.Rate)
	classifier := classify.NewClientFromEnv()

	var archive *s3archive.Client
	if cfg, err := s3archive.LoadConfig(); err != nil {
		log.Warnf("[Bootstrap] S3 archive config invalid: %v", err)
	} else if cfg.IsEnabled() {
		if archive, err = s3archive.NewClient(cfg); err != nil {
			log.Warnf("[Bootstrap] S3 archive unavailable: %v", err)
			archive = nil
		}
	}

	// a typed nil must not end up inside the Archiver interface
	var archiver importer.Archiver
	if archive != nil {
		archiver = archive
	}
	imp := importer.NewImporter(repos, matcher, classifier, archiver)
	controllers.InitServices(imp, matcher)

	var fetcher importqueue.Fetcher
	if archive != nil {
		fetcher = archive
	}
	queue := importqueue.NewManager(repos.ImportJob, imp, fetcher)

	app := fiber.New(fiber.Config{
		BodyLimit: 52428800, // 50 MiB, rate books are large workbooks
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return &Application{App: app, Queue: queue}
}
