package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatebot/internal/models/db_models"
	"gatebot/pkg/utils"
)

type stubIssuer struct {
	link        string
	err         error
	gotExpireAt time.Time
	gotLimit    int
	calls       int
}

func (s *stubIssuer) IssueInvite(ctx context.Context, expireAt time.Time, memberLimit int) (string, error) {
	s.calls++
	s.gotExpireAt = expireAt
	s.gotLimit = memberLimit
	if s.err != nil {
		return "", s.err
	}
	return s.link, nil
}

func TestEntitlementTable(t *testing.T) {
	assert.Equal(t, 31, EntitlementDays(db_models.PlanMonthly))
	assert.Equal(t, 93, EntitlementDays(db_models.PlanQuarterly))
}

func TestGrantComputesEntitlementWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &stubIssuer{link: "https://t.me/+abc"}
	granter := NewAccessGranter(issuer, func() time.Time { return now })

	monthly, err := granter.Grant(context.Background(), 42, db_models.PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+abc", monthly.Link)
	assert.Equal(t, now.AddDate(0, 0, 31), monthly.EntitlementExpiry)

	quarterly, err := granter.Grant(context.Background(), 42, db_models.PlanQuarterly)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 93), quarterly.EntitlementExpiry)
}

func TestGrantInviteIsSingleUseAndShortLived(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &stubIssuer{link: "https://t.me/+abc"}
	granter := NewAccessGranter(issuer, func() time.Time { return now })

	_, err := granter.Grant(context.Background(), 42, db_models.PlanMonthly)
	require.NoError(t, err)

	// Invite redemption window is one hour regardless of entitlement.
	assert.Equal(t, now.Add(time.Hour), issuer.gotExpireAt)
	assert.Equal(t, 1, issuer.gotLimit)
}

func TestGrantFailureIsGrantError(t *testing.T) {
	issuer := &stubIssuer{err: errors.New("chat unavailable")}
	granter := NewAccessGranter(issuer, nil)

	_, err := granter.Grant(context.Background(), 42, db_models.PlanMonthly)
	require.Error(t, err)

	var grantErr *utils.GrantError
	require.ErrorAs(t, err, &grantErr)
	assert.Equal(t, int64(42), grantErr.UserID)
}
