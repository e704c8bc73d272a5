package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gatebot/internal/gateway"
	"gatebot/internal/models/db_models"
	"gatebot/internal/repositories"
	"gatebot/pkg/memcache"
	"gatebot/pkg/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeGateway struct {
	handle      *gateway.ChargeHandle
	createErr   error
	status      gateway.SettlementStatus
	statusErr   error
	createCalls int
	statusCalls int
}

func (g *fakeGateway) CreateImmediateCharge(ctx context.Context, amount float64, memo string) (*gateway.ChargeHandle, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.handle, nil
}

func (g *fakeGateway) GetChargeStatus(ctx context.Context, chargeID string) (gateway.SettlementStatus, error) {
	g.statusCalls++
	if g.statusErr != nil {
		return gateway.SettlementStatus{}, g.statusErr
	}
	return g.status, nil
}

type notification struct {
	audience []int64
	event    NotifyEvent
	details  string
}

type fakeNotifier struct {
	sent []notification
}

func (n *fakeNotifier) Notify(audience []int64, event NotifyEvent, details string) {
	n.sent = append(n.sent, notification{audience: audience, event: event, details: details})
}

func (n *fakeNotifier) byEvent(event NotifyEvent) []notification {
	var out []notification
	for _, s := range n.sent {
		if s.event == event {
			out = append(out, s)
		}
	}
	return out
}

type fakePresenter struct {
	nextRef   int64
	presented []string
	deleted   []int64
	err       error
}

func (p *fakePresenter) PresentCode(ctx context.Context, userID int64, code string) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.nextRef++
	p.presented = append(p.presented, code)
	return p.nextRef, nil
}

func (p *fakePresenter) DeleteArtifact(ctx context.Context, userID int64, msgRef int64) {
	p.deleted = append(p.deleted, msgRef)
}

type funnelFixture struct {
	funnel    IFunnelService
	ledger    repositories.IChargeRepository
	db        *gorm.DB
	gateway   *fakeGateway
	notifier  *fakeNotifier
	presenter *fakePresenter
	issuer    *stubIssuer
	sessions  *memcache.Sessions
	clock     *fakeClock
}

func newFunnelFixture(t *testing.T, ledger repositories.IChargeRepository) *funnelFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&db_models.Charge{}))

	if ledger == nil {
		ledger = repositories.NewChargeRepository(db)
	}

	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	gw := &fakeGateway{
		handle: &gateway.ChargeHandle{ChargeID: "TX1", PaymentCode: "PIX...CODE", Raw: []byte(`{"txid":"TX1"}`)},
		status: gateway.SettlementStatus{Settled: false, Raw: "ATIVA"},
	}
	notifier := &fakeNotifier{}
	presenter := &fakePresenter{}
	issuer := &stubIssuer{link: "https://t.me/+invite"}
	sessions := memcache.NewSessions(time.Hour, clock.Now)

	cfg := FunnelConfig{
		Plans: []db_models.RatePlan{
			{Type: db_models.PlanMonthly, Label: "🌙 Acesso Mensal", Amount: 29.90},
			{Type: db_models.PlanQuarterly, Label: "🌟 Acesso Trimestral", Amount: 74.90},
		},
		IdleThreshold: 10 * time.Minute,
		TermsURL:      "https://example.com/terms",
		SupportURL:    "https://t.me/support",
		OwnerIDs:      []int64{1000},
		TermsAudience: []int64{2000},
	}

	funnel, err := NewFunnelService(
		cfg, ledger, gw,
		NewAccessGranter(issuer, clock.Now),
		notifier, sessions, presenter, clock.Now,
	)
	require.NoError(t, err)

	return &funnelFixture{
		funnel:    funnel,
		ledger:    ledger,
		db:        db,
		gateway:   gw,
		notifier:  notifier,
		presenter: presenter,
		issuer:    issuer,
		sessions:  sessions,
		clock:     clock,
	}
}

var tester = UserRef{ID: 42, FirstName: "Ana", DisplayName: "@ana"}

// walkToCharge drives the funnel through plan selection and terms up to an
// issued charge.
func (f *funnelFixture) walkToCharge(t *testing.T, planToken string) Reply {
	t.Helper()
	f.funnel.Start(context.Background(), tester)
	f.funnel.ShowPlans(context.Background(), tester)
	reply := f.funnel.SelectPlan(context.Background(), tester, planToken)
	require.NotNil(t, reply.Panel)
	return f.funnel.AcceptTerms(context.Background(), tester)
}

func TestQuarterlyHappyPathRecordsPendingCharge(t *testing.T) {
	f := newFunnelFixture(t, nil)

	reply := f.walkToCharge(t, "quarterly")
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "74.90")

	// The payment code went out as its own artifact.
	require.Len(t, f.presenter.presented, 1)
	assert.Equal(t, "PIX...CODE", f.presenter.presented[0])

	// Terms acceptance was notified before the charge was issued.
	terms := f.notifier.byEvent(EventTermsAccepted)
	require.Len(t, terms, 1)
	assert.Equal(t, []int64{2000}, terms[0].audience)

	// Exactly one pending row with the selected plan.
	rec, err := f.ledger.FindLatestPending(context.Background(), tester.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "TX1", rec.ChargeID)
	assert.Equal(t, db_models.PlanQuarterly, rec.PlanType)
	assert.InDelta(t, 74.90, rec.Amount, 0.001)
	require.NotNil(t, rec.PendingMessageRef)
}

func TestInvalidPlanTokenLeavesStateUnchanged(t *testing.T) {
	f := newFunnelFixture(t, nil)
	ctx := context.Background()

	f.funnel.Start(ctx, tester)
	f.funnel.ShowPlans(ctx, tester)

	reply := f.funnel.SelectPlan(ctx, tester, "lifetime")
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "inválido")

	sess, ok := f.sessions.Get(tester.ID)
	require.True(t, ok)
	assert.Equal(t, memcache.StatePlanSelection, sess.State)
	assert.Nil(t, sess.SelectedPlan)
	assert.Zero(t, f.gateway.createCalls)
}

func TestAcceptTermsWithoutPlanReprompts(t *testing.T) {
	f := newFunnelFixture(t, nil)

	reply := f.funnel.AcceptTerms(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "escolha um plano")
	assert.Zero(t, f.gateway.createCalls)
}

func TestGatewayFailureLeavesNoLedgerRow(t *testing.T) {
	f := newFunnelFixture(t, nil)
	f.gateway.createErr = &utils.GatewayError{Op: "create charge", Err: errors.New("boom")}

	reply := f.walkToCharge(t, "monthly")
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "deu errado")

	rec, err := f.ledger.FindLatestPending(context.Background(), tester.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Plan selection stays reachable.
	sess, ok := f.sessions.Get(tester.ID)
	require.True(t, ok)
	assert.Equal(t, memcache.StatePlanSelection, sess.State)
}

func TestVerifyWithoutChargeRoutesToPlans(t *testing.T) {
	f := newFunnelFixture(t, nil)

	reply := f.funnel.Verify(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "Nenhuma cobrança ativa")
	assert.Zero(t, f.gateway.statusCalls)
}

func TestVerifyUnsettledShowsRawStatus(t *testing.T) {
	f := newFunnelFixture(t, nil)
	f.walkToCharge(t, "monthly")

	f.gateway.status = gateway.SettlementStatus{Settled: false, Raw: "ATIVA"}
	reply := f.funnel.Verify(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "ATIVA")

	// Still pending, nothing granted.
	rec, err := f.ledger.FindLatestPending(context.Background(), tester.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, db_models.ChargeStatusPending, rec.Status)
	assert.Zero(t, f.issuer.calls)
}

func TestVerifySettledGrantsExactlyOnce(t *testing.T) {
	f := newFunnelFixture(t, nil)
	f.walkToCharge(t, "quarterly")

	f.gateway.status = gateway.SettlementStatus{Settled: true, Raw: "CONCLUIDA"}
	reply := f.funnel.Verify(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "https://t.me/+invite")
	assert.Contains(t, reply.Panel.Text, "93 dias")
	assert.Equal(t, 1, f.issuer.calls)

	var rec db_models.Charge
	require.NoError(t, f.db.First(&rec, "charge_id = ?", "TX1").Error)
	assert.Equal(t, db_models.ChargeStatusApproved, rec.Status)
	require.NotNil(t, rec.ApprovedAt)

	granted := f.notifier.byEvent(EventAccessGranted)
	require.Len(t, granted, 1)
	assert.Equal(t, []int64{1000}, granted[0].audience)

	// A second verification finds no pending charge and must not grant
	// again.
	reply = f.funnel.Verify(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "Nenhuma cobrança ativa")
	assert.Equal(t, 1, f.issuer.calls)
}

// racingLedger simulates a concurrent verification winning between the
// pending lookup and the approval write.
type racingLedger struct {
	repositories.IChargeRepository
}

func (r *racingLedger) FindLatestPending(ctx context.Context, userID int64) (*db_models.Charge, error) {
	rec, err := r.IChargeRepository.FindLatestPending(ctx, userID)
	if rec != nil {
		if _, aerr := r.IChargeRepository.MarkApproved(ctx, rec.ChargeID, time.Now()); aerr != nil {
			return nil, aerr
		}
	}
	return rec, err
}

func TestVerifyRaceShortCircuitsSecondGrant(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&db_models.Charge{}))
	inner := repositories.NewChargeRepository(db)

	f := newFunnelFixture(t, &racingLedger{IChargeRepository: inner})
	f.walkToCharge(t, "monthly")

	f.gateway.status = gateway.SettlementStatus{Settled: true, Raw: "CONCLUIDA"}
	reply := f.funnel.Verify(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "já foi confirmado")
	assert.Zero(t, f.issuer.calls)
}

func TestGrantFailureRoutesToSupport(t *testing.T) {
	f := newFunnelFixture(t, nil)
	f.walkToCharge(t, "monthly")
	f.issuer.err = errors.New("bot lost channel admin rights")

	f.gateway.status = gateway.SettlementStatus{Settled: true, Raw: "CONCLUIDA"}
	reply := f.funnel.Verify(context.Background(), tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "42")
	assert.True(t, strings.Contains(reply.Panel.Text, "suporte") || strings.Contains(reply.Panel.Text, "Suporte"))

	// Payment stands even though delivery failed.
	var rec db_models.Charge
	require.NoError(t, f.db.First(&rec, "charge_id = ?", "TX1").Error)
	assert.Equal(t, db_models.ChargeStatusApproved, rec.Status)

	failed := f.notifier.byEvent(EventGrantFailed)
	require.Len(t, failed, 1)
}

func TestFreeTextIgnoredWhileActive(t *testing.T) {
	f := newFunnelFixture(t, nil)
	ctx := context.Background()

	f.funnel.Start(ctx, tester)
	f.clock.Advance(5 * time.Minute)

	reply := f.funnel.HandleFreeText(ctx, tester)
	assert.True(t, reply.Silent)
	assert.Nil(t, reply.Panel)
}

func TestFreeTextAfterIdleThresholdResets(t *testing.T) {
	f := newFunnelFixture(t, nil)
	ctx := context.Background()

	f.funnel.ShowPlans(ctx, tester)
	f.funnel.SelectPlan(ctx, tester, "monthly")
	f.clock.Advance(11 * time.Minute)

	reply := f.funnel.HandleFreeText(ctx, tester)
	require.NotNil(t, reply.Panel)
	assert.Contains(t, reply.Panel.Text, "Oi, Ana")

	sess, ok := f.sessions.Get(tester.ID)
	require.True(t, ok)
	assert.Equal(t, memcache.StateIdle, sess.State)
	assert.Nil(t, sess.SelectedPlan)
}

func TestNewChargeCancelsPreviousPendingAndCleansArtifact(t *testing.T) {
	f := newFunnelFixture(t, nil)
	ctx := context.Background()

	f.walkToCharge(t, "monthly")

	// Second run with a new txid replaces the pending charge.
	f.gateway.handle = &gateway.ChargeHandle{ChargeID: "TX2", PaymentCode: "PIX...CODE2", Raw: []byte(`{}`)}
	f.funnel.ShowPlans(ctx, tester)
	f.funnel.SelectPlan(ctx, tester, "quarterly")
	f.funnel.AcceptTerms(ctx, tester)

	rec, err := f.ledger.FindLatestPending(ctx, tester.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "TX2", rec.ChargeID)

	var cancelled int64
	require.NoError(t, f.db.Model(&db_models.Charge{}).
		Where("user_id = ? AND status = ?", tester.ID, db_models.ChargeStatusCancelled).
		Count(&cancelled).Error)
	assert.Equal(t, int64(1), cancelled)

	// The first payment-code message was deleted when the user went back
	// to the plan panel.
	assert.Contains(t, f.presenter.deleted, int64(1))
}
