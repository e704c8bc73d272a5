package bot

import (
	"context"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gatebot/internal/services"
)

// Bot routes Telegram updates into the funnel state machine and renders
// the replies. It owns no funnel logic: every decision happens in the
// service, the bot only translates updates and panels.
type Bot struct {
	api    *tgbotapi.BotAPI
	funnel services.IFunnelService
}

func New(api *tgbotapi.BotAPI, funnel services.IFunnelService) *Bot {
	return &Bot{api: api, funnel: funnel}
}

// Run consumes long-poll updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := b.api.GetUpdatesChan(cfg)
	log.Printf("Bot started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleFreeText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user := userRef(msg.From)

	switch msg.Command() {
	case "start":
		b.sendReply(user.ID, b.funnel.Start(ctx, user))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	user := userRef(cb.From)

	var reply services.Reply
	switch data := cb.Data; {
	case data == services.ActionStart:
		b.answer(cb.ID, "")
		reply = b.funnel.Start(ctx, user)
	case data == services.ActionShowPlans:
		b.answer(cb.ID, "")
		reply = b.funnel.ShowPlans(ctx, user)
	case strings.HasPrefix(data, services.ActionPlanPrefix):
		b.answer(cb.ID, "")
		reply = b.funnel.SelectPlan(ctx, user, strings.TrimPrefix(data, services.ActionPlanPrefix))
	case data == services.ActionAcceptTerms:
		b.answer(cb.ID, "")
		reply = b.funnel.AcceptTerms(ctx, user)
	case data == services.ActionVerify:
		b.answer(cb.ID, "Verificando seu pagamento, um momento...")
		reply = b.funnel.Verify(ctx, user)
	default:
		log.Printf("Unknown callback %q from user %d", data, user.ID)
		b.answer(cb.ID, "")
		return
	}

	b.editReply(user.ID, cb.Message.MessageID, reply)
}

func (b *Bot) handleFreeText(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user := userRef(msg.From)

	reply := b.funnel.HandleFreeText(ctx, user)
	if reply.Silent {
		return
	}
	b.sendReply(user.ID, reply)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

func userRef(u *tgbotapi.User) services.UserRef {
	display := "N/A"
	if u.UserName != "" {
		display = "@" + u.UserName
	}
	return services.UserRef{
		ID:          u.ID,
		FirstName:   u.FirstName,
		DisplayName: display,
	}
}
