package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"gatebot/internal/gateway"
	"gatebot/internal/models/db_models"
	"gatebot/internal/repositories"
	"gatebot/pkg/memcache"
	"gatebot/pkg/utils"
)

// UserRef identifies the interacting user at the conversational boundary.
type UserRef struct {
	ID          int64
	FirstName   string
	DisplayName string // "@username" style label, not used for identity
}

type FunnelConfig struct {
	Plans         []db_models.RatePlan
	IdleThreshold time.Duration
	TermsURL      string
	SupportURL    string

	// Operator audiences.
	OwnerIDs      []int64
	TermsAudience []int64
}

// CodePresenter shows the copy-paste payment code to the user and reports
// the reference of the produced artifact, so the funnel can record and
// later clean it up. DeleteArtifact is best-effort.
type CodePresenter interface {
	PresentCode(ctx context.Context, userID int64, code string) (int64, error)
	DeleteArtifact(ctx context.Context, userID int64, msgRef int64)
}

// IFunnelService advances the per-user sales funnel:
// Idle → PlanSelection → TermsPending → ChargeIssued → (Verifying) → Granted,
// with verification looping back to ChargeIssued while the charge is unpaid.
type IFunnelService interface {
	Start(ctx context.Context, user UserRef) Reply
	ShowPlans(ctx context.Context, user UserRef) Reply
	SelectPlan(ctx context.Context, user UserRef, token string) Reply
	AcceptTerms(ctx context.Context, user UserRef) Reply
	Verify(ctx context.Context, user UserRef) Reply

	// HandleFreeText applies the idle policy to unsolicited messages:
	// reset to the welcome panel after the idle threshold, ignore inside it.
	HandleFreeText(ctx context.Context, user UserRef) Reply
}

type funnelService struct {
	cfg       FunnelConfig
	ledger    repositories.IChargeRepository
	gateway   gateway.PixGateway
	granter   IAccessGranter
	notifier  INotifier
	sessions  memcache.SessionStore
	presenter CodePresenter
	now       func() time.Time
}

func NewFunnelService(
	cfg FunnelConfig,
	ledger repositories.IChargeRepository,
	gw gateway.PixGateway,
	granter IAccessGranter,
	notifier INotifier,
	sessions memcache.SessionStore,
	presenter CodePresenter,
	now func() time.Time,
) (IFunnelService, error) {

	if len(cfg.Plans) == 0 {
		return nil, errors.New("no rate plans configured")
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}

	return &funnelService{
		cfg:       cfg,
		ledger:    ledger,
		gateway:   gw,
		granter:   granter,
		notifier:  notifier,
		sessions:  sessions,
		presenter: presenter,
		now:       now,
	}, nil
}

// touch stamps activity and returns the session, creating one if needed.
// Every transition goes through here first.
func (f *funnelService) touch(userID int64) *memcache.Session {
	sess, ok := f.sessions.Get(userID)
	if !ok {
		sess = &memcache.Session{State: memcache.StateIdle}
	}
	sess.LastActivityAt = f.now()
	f.sessions.Put(userID, sess)
	return sess
}

func (f *funnelService) planByToken(token string) *db_models.RatePlan {
	for i := range f.cfg.Plans {
		if string(f.cfg.Plans[i].Type) == token {
			return &f.cfg.Plans[i]
		}
	}
	return nil
}

// dropPendingArtifact deletes the outstanding payment-code message, if any.
func (f *funnelService) dropPendingArtifact(ctx context.Context, userID int64, sess *memcache.Session) {
	if sess.PendingMessageRef == nil {
		return
	}
	f.presenter.DeleteArtifact(ctx, userID, *sess.PendingMessageRef)
	sess.PendingMessageRef = nil
	f.sessions.Put(userID, sess)
}

func (f *funnelService) Start(ctx context.Context, user UserRef) Reply {
	sess := f.touch(user.ID)
	f.dropPendingArtifact(ctx, user.ID, sess)

	// Fresh session for a fresh flow.
	f.sessions.Put(user.ID, &memcache.Session{
		State:          memcache.StateIdle,
		LastActivityAt: f.now(),
	})

	log.Printf("User %d (%s) entered the funnel", user.ID, user.FirstName)

	text := fmt.Sprintf(
		"Oi, %s! 👋\n\n"+
			"Você tá entrando num espaço feito só pra quem curte exclusividade.\n\n"+
			"Aqui eu compartilho conteúdo que não vai pra lugar nenhum além desse canal.\n\n"+
			"Clica aí e vem fazer parte disso.",
		user.FirstName,
	)

	return Reply{Panel: &Panel{
		Text: text,
		Buttons: [][]Button{
			{{Label: "✨ Quero Acesso Exclusivo", Action: ActionShowPlans}},
			{{Label: "📞 Preciso de Ajuda", URL: f.cfg.SupportURL}},
		},
	}}
}

func (f *funnelService) ShowPlans(ctx context.Context, user UserRef) Reply {
	sess := f.touch(user.ID)
	f.dropPendingArtifact(ctx, user.ID, sess)

	sess.State = memcache.StatePlanSelection
	f.sessions.Put(user.ID, sess)

	rows := make([][]Button, 0, len(f.cfg.Plans)+1)
	for _, plan := range f.cfg.Plans {
		rows = append(rows, []Button{{
			Label:  fmt.Sprintf("%s - R$ %.2f", plan.Label, plan.Amount),
			Action: ActionPlanPrefix + string(plan.Type),
		}})
	}
	rows = append(rows, []Button{{Label: "⬅️ Voltar", Action: ActionStart}})

	return Reply{Panel: &Panel{
		Text: "✨ *Acesso ao Conteúdo Exclusivo*\n\n" +
			"Para ter acesso a todo o conteúdo, escolha um dos planos abaixo e faça parte do nosso canal privado:",
		ParseMode: "Markdown",
		Buttons:   rows,
	}}
}

func (f *funnelService) SelectPlan(ctx context.Context, user UserRef, token string) Reply {
	sess := f.touch(user.ID)

	plan := f.planByToken(token)
	if plan == nil {
		// ValidationError path: re-prompt, state unchanged.
		log.Printf("Invalid plan token %q from user %d: %v", token, user.ID, utils.ErrInvalidPlan)
		return Reply{Panel: &Panel{
			Text: "❌ Erro: Plano inválido. Por favor, tente novamente.",
			Buttons: [][]Button{
				{{Label: "⬅️ Voltar", Action: ActionShowPlans}},
			},
		}}
	}

	sess.State = memcache.StateTermsPending
	sess.SelectedPlan = &memcache.SelectedPlan{Type: plan.Type, Amount: plan.Amount}
	f.sessions.Put(user.ID, sess)

	log.Printf("User %d selected plan %s", user.ID, plan.Type)

	return Reply{Panel: &Panel{
		Text: "⚠️ *Quase lá... Leia os Termos*\n\n" +
			"Antes de prosseguir, é importante que você leia e concorde com os nossos termos de uso. " +
			"Isso garante que tudo fique claro entre a gente.\n\n" +
			"Ao clicar em 'Aceito', você confirma que leu e está de acordo.",
		ParseMode: "Markdown",
		Buttons: [][]Button{
			{{Label: "Ler Termos de Uso", URL: f.cfg.TermsURL}},
			{{Label: "✅ Li e aceito os Termos", Action: ActionAcceptTerms}},
			{{Label: "⬅️ Voltar", Action: ActionShowPlans}},
		},
	}}
}

func (f *funnelService) AcceptTerms(ctx context.Context, user UserRef) Reply {
	sess := f.touch(user.ID)

	if sess.SelectedPlan == nil {
		log.Printf("User %d reached terms acceptance without a selected plan", user.ID)
		return Reply{Panel: &Panel{
			Text: "❗️Opa! Parece que sua sessão foi reiniciada. Por favor, escolha um plano novamente.",
			Buttons: [][]Button{
				{{Label: "Escolher Plano", Action: ActionShowPlans}},
			},
		}}
	}

	plan := *sess.SelectedPlan
	log.Printf("User %d accepted the terms for plan %s", user.ID, plan.Type)

	f.notifier.Notify(f.cfg.TermsAudience, EventTermsAccepted, fmt.Sprintf(
		"✅ <b>Termo de Uso Aceito</b>\n\n"+
			"👤 <b>Usuário:</b> %s (%s)\n"+
			"🆔 <b>Chat ID:</b> <code>%d</code>\n"+
			"💎 <b>Plano Escolhido:</b> %s (R$ %.2f)\n"+
			"🗓️ <b>Data e Hora (Brasília):</b> %s",
		html.EscapeString(user.FirstName), html.EscapeString(user.DisplayName),
		user.ID, plan.Type, plan.Amount,
		utils.FormatDisplayBR(f.now()),
	))

	return f.issueCharge(ctx, user, sess, plan)
}

func (f *funnelService) issueCharge(ctx context.Context, user UserRef, sess *memcache.Session, plan memcache.SelectedPlan) Reply {

	memo := fmt.Sprintf("Acesso %s para user ID %d", plan.Type, user.ID)

	handle, err := f.gateway.CreateImmediateCharge(ctx, plan.Amount, memo)
	if err != nil {
		// Charge not recorded; the plan selection stays reachable.
		log.Printf("Failed to create charge for user %d: %v", user.ID, err)
		sess.State = memcache.StatePlanSelection
		f.sessions.Put(user.ID, sess)
		return Reply{Panel: &Panel{
			Text: "❌ Algo deu errado ao gerar o pagamento. Por favor, tente novamente ou contate o suporte.",
			Buttons: [][]Button{
				{{Label: "Escolher Plano", Action: ActionShowPlans}},
				{{Label: "Falar com Suporte", URL: f.cfg.SupportURL}},
			},
		}}
	}

	f.dropPendingArtifact(ctx, user.ID, sess)

	msgRef, err := f.presenter.PresentCode(ctx, user.ID, handle.PaymentCode)
	if err != nil {
		log.Printf("Failed to deliver payment code to user %d (charge %s): %v", user.ID, handle.ChargeID, err)
		sess.State = memcache.StatePlanSelection
		f.sessions.Put(user.ID, sess)
		return Reply{Panel: &Panel{
			Text: "❌ Algo deu errado ao gerar o pagamento. Por favor, tente novamente ou contate o suporte.",
			Buttons: [][]Button{
				{{Label: "Escolher Plano", Action: ActionShowPlans}},
				{{Label: "Falar com Suporte", URL: f.cfg.SupportURL}},
			},
		}}
	}

	charge := &db_models.Charge{
		ChargeID:          handle.ChargeID,
		UserID:            user.ID,
		DisplayName:       user.DisplayName,
		PlanType:          plan.Type,
		Amount:            plan.Amount,
		PendingMessageRef: &msgRef,
		RawCharge:         []byte(handle.Raw),
	}
	if err := f.ledger.CreateCharge(ctx, charge); err != nil {
		log.Printf("Failed to record charge %s for user %d: %v", handle.ChargeID, user.ID, err)
		return Reply{Panel: &Panel{
			Text: "❌ Ocorreu um erro interno ao registrar seu pagamento. Contate o suporte.",
			Buttons: [][]Button{
				{{Label: "Falar com Suporte", URL: f.cfg.SupportURL}},
			},
		}}
	}

	sess.State = memcache.StateChargeIssued
	sess.PendingMessageRef = &msgRef
	f.sessions.Put(user.ID, sess)

	log.Printf("Charge %s (plan %s, msg %d) recorded for user %d", handle.ChargeID, plan.Type, msgRef, user.ID)

	return Reply{Panel: &Panel{
		Text: fmt.Sprintf(
			"🔑 *Seu Acesso ao Canal*\n\n"+
				"Plano: *%s*\nValor: *R$ %.2f*\n\n"+
				"Para finalizar, use o *PIX Copia e Cola* acima. Seu acesso será liberado automaticamente assim que o pagamento for confirmado.\n\n"+
				"Após pagar, clique em *'Já paguei'* para fazer a verificação.",
			plan.Type, plan.Amount,
		),
		ParseMode: "Markdown",
		Buttons: [][]Button{
			{{Label: "✅ Já paguei, verificar acesso", Action: ActionVerify}},
		},
	}}
}

func (f *funnelService) Verify(ctx context.Context, user UserRef) Reply {
	sess := f.touch(user.ID)

	rec, err := f.ledger.FindLatestPending(ctx, user.ID)
	if err != nil {
		log.Printf("Ledger lookup failed for user %d: %v", user.ID, err)
		return f.internalErrorPanel()
	}
	if rec == nil {
		return Reply{Panel: &Panel{
			Text: "❌ Nenhuma cobrança ativa foi encontrada. Clique abaixo para gerar uma.",
			Buttons: [][]Button{
				{{Label: "Escolher Plano de Acesso", Action: ActionShowPlans}},
			},
		}}
	}

	// The grant decision only ever trusts the processor, never a cached
	// or local status.
	status, err := f.gateway.GetChargeStatus(ctx, rec.ChargeID)
	if err != nil {
		log.Printf("Status poll failed for charge %s (user %d): %v", rec.ChargeID, user.ID, err)
		return f.internalErrorPanel()
	}

	if !status.Settled {
		return Reply{Panel: &Panel{
			Text: fmt.Sprintf(
				"❌ Pagamento Pendente (status: <b>%s</b>).\n\n"+
					"Se você já pagou, pode levar alguns minutos para o sistema confirmar. "+
					"Aguarde um pouco e tente verificar novamente.",
				html.EscapeString(status.Raw),
			),
			ParseMode: "HTML",
			Buttons: [][]Button{
				{{Label: "Tentar novamente", Action: ActionVerify}},
				{{Label: "⬅️ Escolher outro plano", Action: ActionShowPlans}},
			},
		}}
	}

	transitioned, err := f.ledger.MarkApproved(ctx, rec.ChargeID, f.now())
	if err != nil {
		log.Printf("Failed to approve charge %s for user %d: %v", rec.ChargeID, user.ID, err)
		return f.internalErrorPanel()
	}
	if !transitioned {
		// A near-simultaneous verification already approved this charge.
		// Short-circuit: never issue a second invite.
		log.Printf("Charge %s already approved, skipping duplicate grant for user %d", rec.ChargeID, user.ID)
		return Reply{Panel: &Panel{
			Text: "✅ Esse pagamento já foi confirmado. Se você não recebeu seu link de acesso, contate o suporte.",
			Buttons: [][]Button{
				{{Label: "Falar com Suporte", URL: f.cfg.SupportURL}},
			},
		}}
	}

	log.Printf("Payment approved: charge %s, plan %s, user %d", rec.ChargeID, rec.PlanType, user.ID)

	// A rebuilt session has no artifact ref; the ledger row keeps one.
	if sess.PendingMessageRef == nil && rec.PendingMessageRef != nil {
		sess.PendingMessageRef = rec.PendingMessageRef
	}
	f.dropPendingArtifact(ctx, user.ID, sess)

	artifact, err := f.granter.Grant(ctx, user.ID, rec.PlanType)
	if err != nil {
		// Payment already captured: the record stays approved, the user
		// goes to manual support with their identifier.
		log.Printf("Payment approved but grant failed for user %d (charge %s): %v", user.ID, rec.ChargeID, err)
		f.notifier.Notify(f.cfg.OwnerIDs, EventGrantFailed, fmt.Sprintf(
			"⚠️ Pagamento aprovado mas falhou ao gerar o link.\nUsuário: %s (ID: <code>%d</code>)\nCobrança: <code>%s</code>",
			html.EscapeString(user.DisplayName), user.ID, rec.ChargeID,
		))
		return Reply{Panel: &Panel{
			Text: fmt.Sprintf(
				"✅ Pagamento aprovado, mas tive um problema ao gerar seu link!\n\n"+
					"<b>Não se preocupe!</b> Contate o suporte informando seu ID (<code>%d</code>) para receber o acesso.",
				user.ID,
			),
			ParseMode: "HTML",
			Buttons: [][]Button{
				{{Label: "Falar com Suporte", URL: f.cfg.SupportURL}},
			},
		}}
	}

	f.sessions.Delete(user.ID)

	f.notifier.Notify(f.cfg.OwnerIDs, EventAccessGranted, fmt.Sprintf(
		"🎉 Novo acesso <b>%s</b> liberado!\n\n"+
			"Usuário: %s (ID: %d)\n"+
			"🗓️ <b>Expira em:</b> %s (Horário de Brasília)",
		html.EscapeString(string(rec.PlanType)),
		html.EscapeString(user.DisplayName), user.ID,
		utils.FormatDisplayBR(artifact.EntitlementExpiry),
	))

	safeLink := html.EscapeString(artifact.Link)
	return Reply{Panel: &Panel{
		Text: fmt.Sprintf(
			"✅ Pagamento confirmado!\n\n"+
				"<b>Acesso Liberado!</b>\n\n"+
				"Seu acesso de %d dias está ativo. Aproveite todo o conteúdo exclusivo.\n\n"+
				"Clique no link abaixo para entrar:\n<a href=\"%s\">%s</a>\n\n"+
				"<i>Atenção: O link é de uso único e pessoal. Ele expira em breve.</i>",
			EntitlementDays(rec.PlanType), safeLink, safeLink,
		),
		ParseMode: "HTML",
		NoPreview: true,
	}}
}

func (f *funnelService) HandleFreeText(ctx context.Context, user UserRef) Reply {
	sess, ok := f.sessions.Get(user.ID)

	if !ok || f.now().Sub(sess.LastActivityAt) > f.cfg.IdleThreshold {
		log.Printf("Idle user %d sent a message, restarting the flow", user.ID)
		return f.Start(ctx, user)
	}

	// Mid-flow chatter is ignored without touching activity.
	return Reply{Silent: true}
}

func (f *funnelService) internalErrorPanel() Reply {
	return Reply{Panel: &Panel{
		Text: "❌ Ocorreu um erro interno. A equipe de suporte já foi notificada.",
		Buttons: [][]Button{
			{{Label: "Tentar novamente", Action: ActionVerify}},
		},
	}}
}
