package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/lexdrive/ratehub/app/controllers"
	"github.com/lexdrive/ratehub/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "ratehub api",
		})
	})

	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())

	v1.Post("/imports", controllers.HandleCreateImport)
	v1.Get("/imports", controllers.HandleListImports)
	v1.Get("/imports/jobs", controllers.HandleListImportJobs)
	v1.Get("/imports/:batchID", controllers.HandleGetImport)
	v1.Delete("/imports/:batchID", controllers.HandleDeleteImport)

	v1.Get("/rates", controllers.HandleListRates)
	v1.Get("/rates/compare", controllers.HandleCompareRates)
	v1.Get("/rates/coverage", controllers.HandleRateCoverage)

	v1.Get("/matches", controllers.HandleListMatches)
	v1.Post("/matches/:id/:action", controllers.HandleMatchAction)

	v1.Get("/providers", controllers.HandleListProfiles)
	v1.Get("/providers/:code/profile", controllers.HandleGetProfile)
	v1.Put("/providers/:code/profile", controllers.HandleSaveProfile)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
