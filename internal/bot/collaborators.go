package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CodePresenter delivers the copy-paste payment code as its own monospace
// message, so the user can long-press and copy it. Implements
// services.CodePresenter.
type CodePresenter struct {
	api *tgbotapi.BotAPI
}

func NewCodePresenter(api *tgbotapi.BotAPI) *CodePresenter {
	return &CodePresenter{api: api}
}

func (p *CodePresenter) PresentCode(ctx context.Context, userID int64, code string) (int64, error) {
	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("<pre><code>%s</code></pre>", html.EscapeString(code)))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := p.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

func (p *CodePresenter) DeleteArtifact(ctx context.Context, userID int64, msgRef int64) {
	if _, err := p.api.Request(tgbotapi.NewDeleteMessage(userID, int(msgRef))); err != nil {
		log.Printf("Could not delete payment message %d for user %d: %v", msgRef, userID, err)
	}
}

// InviteIssuer mints single-use invite links for the restricted channel.
// Implements services.InviteIssuer.
type InviteIssuer struct {
	api       *tgbotapi.BotAPI
	channelID int64
}

func NewInviteIssuer(api *tgbotapi.BotAPI, channelID int64) *InviteIssuer {
	return &InviteIssuer{api: api, channelID: channelID}
}

func (i *InviteIssuer) IssueInvite(ctx context.Context, expireAt time.Time, memberLimit int) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: i.channelID},
		MemberLimit: memberLimit,
		ExpireDate:  int(expireAt.Unix()),
	}

	resp, err := i.api.Request(cfg)
	if err != nil {
		return "", err
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", err
	}
	if link.InviteLink == "" {
		return "", errors.New("invite response missing link")
	}
	return link.InviteLink, nil
}
