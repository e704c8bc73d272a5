package controllers_fx

import (
	"go.uber.org/fx"

	"gatebot/internal/api/controllers"
)

var Module = fx.Provide(
	controllers.NewAuthController,
	controllers.NewChargesController,
)
