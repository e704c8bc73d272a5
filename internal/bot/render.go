package bot

import (
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gatebot/internal/services"
)

func keyboard(rows [][]services.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var markup [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var line []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				line = append(line, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
			} else {
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Action))
			}
		}
		markup = append(markup, line)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(markup...)
	return &kb
}

// sendReply posts the panel as a new message.
func (b *Bot) sendReply(chatID int64, reply services.Reply) {
	if reply.Panel == nil {
		return
	}

	msg := tgbotapi.NewMessage(chatID, reply.Panel.Text)
	msg.ParseMode = reply.Panel.ParseMode
	msg.DisableWebPagePreview = reply.Panel.NoPreview
	if kb := keyboard(reply.Panel.Buttons); kb != nil {
		msg.ReplyMarkup = kb
	}

	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send panel to %d: %v", chatID, err)
	}
}

// editReply updates the panel in place. "Message is not modified" is a
// no-op outcome, not a failure.
func (b *Bot) editReply(chatID int64, messageID int, reply services.Reply) {
	if reply.Panel == nil {
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, reply.Panel.Text)
	edit.ParseMode = reply.Panel.ParseMode
	edit.DisableWebPagePreview = reply.Panel.NoPreview
	edit.ReplyMarkup = keyboard(reply.Panel.Buttons)

	if _, err := b.api.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return
		}
		log.Printf("Failed to edit panel for %d: %v", chatID, err)
	}
}
