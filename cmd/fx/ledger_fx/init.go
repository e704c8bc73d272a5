package ledger_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"gatebot/internal/repositories"
)

var Module = fx.Provide(
	provideChargeRepository,
)

func provideChargeRepository(db *gorm.DB) repositories.IChargeRepository {
	return repositories.NewChargeRepository(db)
}
