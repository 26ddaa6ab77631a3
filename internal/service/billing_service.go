package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/entitlement"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
)

// DemoPurchaseID is the id of the synthetic purchase answering a demo-duration request.
const DemoPurchaseID = "demo"

// BillingService lists packages and manages purchases
type BillingService struct {
	purchases   repository.PurchaseRepository
	entitlement *entitlement.Validator
	cfg         config.BillingConfig
	log         zerolog.Logger
}

func NewBillingService(purchases repository.PurchaseRepository, validator *entitlement.Validator, cfg config.BillingConfig, log zerolog.Logger) *BillingService {
	return &BillingService{
		purchases:   purchases,
		entitlement: validator,
		cfg:         cfg,
		log:         log.With().Str("component", "billing").Logger(),
	}
}

// Packages returns the demo and paid packages
func (s *BillingService) Packages() []model.Package {
	return catalog.Packages(s.cfg.DemoDuration, s.cfg.PackagePrices)
}

// ListPurchases returns the account's purchases, newest first
func (s *BillingService) ListPurchases(ctx context.Context, accountID string) ([]model.PurchaseResponse, error) {
	items, err := s.purchases.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	out := make([]model.PurchaseResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPurchaseResponse(p))
	}
	return out, nil
}

// CreatePurchase records a purchase of durationSec. The local provider settles immediately;
// any other provider leaves the purchase pending until it is confirmed.
func (s *BillingService) CreatePurchase(ctx context.Context, accountID string, req *model.PurchaseCreateRequest) (*model.PurchaseResponse, error) {
	if !s.entitlement.IsAllowedDuration(req.DurationSec) {
		return nil, fmt.Errorf("%w: %d seconds", model.ErrUnsupportedDuration, req.DurationSec)
	}
	if s.entitlement.IsDemo(req.DurationSec) {
		return &model.PurchaseResponse{
			ID:          DemoPurchaseID,
			DurationSec: req.DurationSec,
			Price:       0,
			Status:      model.PurchaseStatusDemo,
		}, nil
	}

	status := model.PurchaseStatusPending
	if s.cfg.Provider == model.BillingProviderLocal {
		status = model.PurchaseStatusPaid
	}

	purchase := &model.Purchase{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		DurationSec: req.DurationSec,
		Price:       s.cfg.PackagePrices[req.DurationSec],
		Status:      status,
		Provider:    s.cfg.Provider,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to save purchase: %w", err)
	}

	s.log.Info().
		Str("purchase_id", purchase.ID).
		Str("account_id", accountID).
		Int("duration_sec", purchase.DurationSec).
		Str("status", string(purchase.Status)).
		Msg("purchase created")

	resp := toPurchaseResponse(purchase)
	return &resp, nil
}

// ConfirmPurchase settles a pending purchase. Confirming a paid purchase again is a no-op.
func (s *BillingService) ConfirmPurchase(ctx context.Context, accountID, purchaseID string) (*model.PurchaseResponse, error) {
	purchase, err := s.purchases.MarkPaid(ctx, purchaseID, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrPurchaseNotFound
		}
		return nil, err
	}

	resp := toPurchaseResponse(purchase)
	return &resp, nil
}

// ExpirePurchase records that the payment provider gave up on a pending purchase.
// A purchase that was paid in the meantime is left as it is.
func (s *BillingService) ExpirePurchase(ctx context.Context, accountID, purchaseID string) (*model.PurchaseResponse, error) {
	purchase, err := s.purchases.MarkExpired(ctx, purchaseID, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrPurchaseNotFound
		}
		return nil, err
	}

	s.log.Info().
		Str("purchase_id", purchase.ID).
		Str("status", string(purchase.Status)).
		Msg("purchase expiry processed")

	resp := toPurchaseResponse(purchase)
	return &resp, nil
}

// Limits reports the demo duration, the packages and how many paid purchases are still unspent
func (s *BillingService) Limits(ctx context.Context, accountID string) (*model.LimitsResponse, error) {
	items, err := s.purchases.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	unused := 0
	for _, p := range items {
		if p.Status == model.PurchaseStatusPaid && !p.Consumed {
			unused++
		}
	}
	return &model.LimitsResponse{
		DemoDurationSec:     s.cfg.DemoDuration,
		Packages:            s.Packages(),
		PaidUnusedPurchases: unused,
	}, nil
}

func toPurchaseResponse(p *model.Purchase) model.PurchaseResponse {
	return model.PurchaseResponse{
		ID:          p.ID,
		DurationSec: p.DurationSec,
		Price:       p.Price,
		Status:      p.Status,
		Consumed:    p.Consumed,
	}
}
