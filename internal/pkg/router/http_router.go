package router

import (
	"github.com/applitrack/AppliTrack/app/controllers"
	"github.com/applitrack/AppliTrack/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.HealthzRoute, controllers.HandleHealthz)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
