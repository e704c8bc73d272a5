package notifier_fx

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"

	"gatebot/internal/services"
)

var Module = fx.Provide(
	provideNotifier,
)

func provideNotifier(api *tgbotapi.BotAPI) services.INotifier {
	return services.NewTelegramNotifier(api)
}
