// services/notifier_service.go
package services

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type NotifyEvent string

const (
	EventTermsAccepted NotifyEvent = "terms_accepted"
	EventAccessGranted NotifyEvent = "access_granted"
	EventGrantFailed   NotifyEvent = "grant_failed"
)

// INotifier fans human-readable status events out to operator chats.
// Strictly best-effort: a failed notification is logged and swallowed,
// it must never block or roll back the transition that produced it.
type INotifier interface {
	Notify(audience []int64, event NotifyEvent, details string)
}

type telegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(api *tgbotapi.BotAPI) INotifier {
	return &telegramNotifier{api: api}
}

func (n *telegramNotifier) Notify(audience []int64, event NotifyEvent, details string) {
	for _, chatID := range audience {
		msg := tgbotapi.NewMessage(chatID, details)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.api.Send(msg); err != nil {
			log.Printf("Failed to notify chat %d about %s: %v", chatID, event, err)
		}
	}
}
