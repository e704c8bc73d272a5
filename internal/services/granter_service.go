package services

import (
	"context"
	"time"

	"gatebot/internal/models/db_models"
	"gatebot/pkg/utils"
)

// Entitlement lengths are a fixed table, not calendar arithmetic.
var accessDays = map[db_models.PlanType]int{
	db_models.PlanMonthly:   31,
	db_models.PlanQuarterly: 93,
}

// inviteTTL bounds how long the single-use invite stays redeemable. It is
// independent of the entitlement: the invite must be used quickly, the
// entitlement is enforced by the membership system around the channel.
const inviteTTL = time.Hour

func EntitlementDays(plan db_models.PlanType) int {
	return accessDays[plan]
}

// InviteArtifact is a single-use, time-bounded credential for one entry
// into the restricted channel.
type InviteArtifact struct {
	Link              string
	EntitlementExpiry time.Time
}

// InviteIssuer is the membership-system boundary that mints invite links.
type InviteIssuer interface {
	IssueInvite(ctx context.Context, expireAt time.Time, memberLimit int) (string, error)
}

type IAccessGranter interface {
	Grant(ctx context.Context, userID int64, plan db_models.PlanType) (*InviteArtifact, error)
}

type accessGranter struct {
	issuer InviteIssuer
	now    func() time.Time
}

// NewAccessGranter wires the granter. now is injectable for tests; pass
// nil for the wall clock.
func NewAccessGranter(issuer InviteIssuer, now func() time.Time) IAccessGranter {
	if now == nil {
		now = time.Now
	}
	return &accessGranter{issuer: issuer, now: now}
}

func (g *accessGranter) Grant(ctx context.Context, userID int64, plan db_models.PlanType) (*InviteArtifact, error) {

	now := g.now()

	link, err := g.issuer.IssueInvite(ctx, now.Add(inviteTTL), 1)
	if err != nil {
		return nil, &utils.GrantError{UserID: userID, Err: err}
	}

	return &InviteArtifact{
		Link:              link,
		EntitlementExpiry: now.AddDate(0, 0, EntitlementDays(plan)),
	}, nil
}
