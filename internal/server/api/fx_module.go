package api

import "go.uber.org/fx"

var Module = fx.Module("api",
	fx.Provide(NewAuthzHandlers),
	fx.Provide(NewSystemHandlers),
	fx.Provide(NewAdminHandlers),
)
