package granter_fx

import (
	"go.uber.org/fx"

	"gatebot/internal/services"
)

var Module = fx.Provide(
	provideGranter,
)

func provideGranter(issuer services.InviteIssuer) services.IAccessGranter {
	return services.NewAccessGranter(issuer, nil)
}
