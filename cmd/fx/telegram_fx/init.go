package telegram_fx

import (
	"log"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"

	"gatebot/internal/bot"
	"gatebot/internal/services"
)

var Module = fx.Provide(
	provideBotAPI, provideCodePresenter, provideInviteIssuer,
)

func provideBotAPI() *tgbotapi.BotAPI {
	api, err := tgbotapi.NewBotAPI(os.Getenv("TELEGRAM_TOKEN"))
	if err != nil {
		log.Fatalf("Failed to initialize the Telegram API: %v", err)
	}
	return api
}

func provideCodePresenter(api *tgbotapi.BotAPI) services.CodePresenter {
	return bot.NewCodePresenter(api)
}

func provideInviteIssuer(api *tgbotapi.BotAPI) services.InviteIssuer {
	channelID, err := strconv.ParseInt(os.Getenv("PRIVATE_CHANNEL_ID"), 10, 64)
	if err != nil {
		log.Fatalf("PRIVATE_CHANNEL_ID is required and must be numeric: %v", err)
	}
	return bot.NewInviteIssuer(api, channelID)
}
