package funnel_fx

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"

	"gatebot/internal/gateway"
	"gatebot/internal/models/db_models"
	"gatebot/internal/repositories"
	"gatebot/internal/services"
	"gatebot/pkg/memcache"
)

var Module = fx.Provide(
	provideFunnelService,
)

func provideFunnelService(
	ledger repositories.IChargeRepository,
	gw gateway.PixGateway,
	granter services.IAccessGranter,
	notifier services.INotifier,
	sessions memcache.SessionStore,
	presenter services.CodePresenter,
) services.IFunnelService {

	cfg := services.FunnelConfig{
		Plans: []db_models.RatePlan{
			{Type: db_models.PlanMonthly, Label: "🌙 Acesso Mensal", Amount: requirePrice("PRICE_MONTHLY")},
			{Type: db_models.PlanQuarterly, Label: "🌟 Acesso Trimestral", Amount: requirePrice("PRICE_QUARTERLY")},
		},
		IdleThreshold: 10 * time.Minute,
		TermsURL:      os.Getenv("TERMS_URL"),
		SupportURL:    os.Getenv("SUPPORT_LINK"),
		OwnerIDs:      parseChatIDs(os.Getenv("OWNER_IDS")),
		TermsAudience: parseChatIDs(os.Getenv("TERMS_CHANNEL_ID")),
	}

	instance, err := services.NewFunnelService(cfg, ledger, gw, granter, notifier, sessions, presenter, nil)
	if err != nil {
		log.Fatalf("Error initializing FunnelService: %v", err)
	}

	return instance
}

func requirePrice(envKey string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(envKey), 64)
	if err != nil || v <= 0 {
		log.Fatalf("%s is required and must be a positive price", envKey)
	}
	return v
}

func parseChatIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatalf("Invalid chat id %q in configuration", part)
		}
		ids = append(ids, id)
	}
	return ids
}
