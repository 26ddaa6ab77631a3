package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmstudio/api/internal/entitlement"
	"github.com/affirmstudio/api/internal/model"
)

func TestPackages(t *testing.T) {
	f := newFixture(t)
	pkgs := f.billing.Packages()

	require.Len(t, pkgs, 5)
	assert.Equal(t, model.Package{Code: "demo_30s", DurationSec: 30, DurationLabel: "30 sec demo", Price: 0, IsDemo: true}, pkgs[0])
	assert.Equal(t, "pack_120", pkgs[1].Code)
	assert.Equal(t, 190, pkgs[1].Price)
	assert.Equal(t, "5 min", pkgs[4].DurationLabel)
}

func TestCreatePurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	demo, err := f.billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 30})
	require.NoError(t, err)
	assert.Equal(t, DemoPurchaseID, demo.ID)
	assert.Equal(t, model.PurchaseStatusDemo, demo.Status)

	_, err = f.billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 90})
	assert.ErrorIs(t, err, model.ErrUnsupportedDuration)

	paid, err := f.billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 180})
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, paid.Status)
	assert.Equal(t, 290, paid.Price)
	assert.False(t, paid.Consumed)

	list, err := f.billing.ListPurchases(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, paid.ID, list[0].ID)

	other, err := f.billing.ListPurchases(ctx, "acc-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPendingPurchaseNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := testBilling
	cfg.Provider = "yookassa"
	validator := entitlement.NewValidator(entitlement.Rules{
		MaxTextChars:    cfg.MaxTextChars,
		DemoDurationSec: cfg.DemoDuration,
		PaidDurations:   cfg.PaidDurations,
	}, f.repos.Purchases)
	billing := NewBillingService(f.repos.Purchases, validator, cfg, zerolog.Nop())

	pending, err := billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 120})
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPending, pending.Status)

	projectID := f.project(t, "acc-1")
	_, err = f.jobs.Create(ctx, "acc-1", &model.JobCreateRequest{ProjectID: projectID, Text: text, DurationSec: 120})
	assert.ErrorIs(t, err, model.ErrPaymentRequired)

	_, err = billing.ConfirmPurchase(ctx, "acc-2", pending.ID)
	assert.ErrorIs(t, err, model.ErrPurchaseNotFound)

	confirmed, err := billing.ConfirmPurchase(ctx, "acc-1", pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, confirmed.Status)

	again, err := billing.ConfirmPurchase(ctx, "acc-1", pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, again.Status)

	_, err = f.jobs.Create(ctx, "acc-1", &model.JobCreateRequest{ProjectID: projectID, Text: text, DurationSec: 120})
	assert.NoError(t, err)
}

func TestExpiredPurchaseNeverUnlocksJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := testBilling
	cfg.Provider = "yookassa"
	validator := entitlement.NewValidator(entitlement.Rules{
		MaxTextChars:    cfg.MaxTextChars,
		DemoDurationSec: cfg.DemoDuration,
		PaidDurations:   cfg.PaidDurations,
	}, f.repos.Purchases)
	billing := NewBillingService(f.repos.Purchases, validator, cfg, zerolog.Nop())

	pending, err := billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 120})
	require.NoError(t, err)

	_, err = billing.ExpirePurchase(ctx, "acc-2", pending.ID)
	assert.ErrorIs(t, err, model.ErrPurchaseNotFound)
	_, err = billing.ExpirePurchase(ctx, "acc-1", "missing")
	assert.ErrorIs(t, err, model.ErrPurchaseNotFound)

	expired, err := billing.ExpirePurchase(ctx, "acc-1", pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusExpired, expired.Status)

	_, err = billing.ConfirmPurchase(ctx, "acc-1", pending.ID)
	assert.ErrorIs(t, err, model.ErrPurchaseNotActive)

	projectID := f.project(t, "acc-1")
	_, err = f.jobs.Create(ctx, "acc-1", &model.JobCreateRequest{ProjectID: projectID, Text: text, DurationSec: 120, PurchaseID: &pending.ID})
	assert.ErrorIs(t, err, model.ErrPurchaseNotFound)

	// a purchase paid before the expiry notice arrives stays paid
	late, err := billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 120})
	require.NoError(t, err)
	_, err = billing.ConfirmPurchase(ctx, "acc-1", late.ID)
	require.NoError(t, err)
	kept, err := billing.ExpirePurchase(ctx, "acc-1", late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, kept.Status)
}

func TestLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	limits, err := f.billing.Limits(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 30, limits.DemoDurationSec)
	assert.Len(t, limits.Packages, 5)
	assert.Zero(t, limits.PaidUnusedPurchases)

	_, err = f.billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 120})
	require.NoError(t, err)
	spent, err := f.billing.CreatePurchase(ctx, "acc-1", &model.PurchaseCreateRequest{DurationSec: 180})
	require.NoError(t, err)

	projectID := f.project(t, "acc-1")
	_, err = f.jobs.Create(ctx, "acc-1", &model.JobCreateRequest{ProjectID: projectID, Text: text, DurationSec: 180, PurchaseID: &spent.ID})
	require.NoError(t, err)

	limits, err = f.billing.Limits(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, limits.PaidUnusedPurchases)

	other, err := f.billing.Limits(ctx, "acc-2")
	require.NoError(t, err)
	assert.Zero(t, other.PaidUnusedPurchases)
}
