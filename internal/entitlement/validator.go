package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/affirmstudio/api/internal/model"
)

// PurchaseFinder looks up an unconsumed paid purchase of the exact duration.
// With purchaseID set only that purchase may match; otherwise the newest eligible one wins.
// It returns model.ErrNotFound when nothing matches.
type PurchaseFinder interface {
	FindEligible(ctx context.Context, accountID string, durationSec int, purchaseID *string) (*model.Purchase, error)
}

// Rules are the billing limits the validator enforces.
type Rules struct {
	MaxTextChars    int
	DemoDurationSec int
	PaidDurations   []int
}

// Validator decides whether a duration may be produced for an account.
type Validator struct {
	rules     Rules
	purchases PurchaseFinder
}

func NewValidator(rules Rules, purchases PurchaseFinder) *Validator {
	return &Validator{rules: rules, purchases: purchases}
}

// Validate returns the purchase that must be consumed with the job, or nil for the free demo duration.
func (v *Validator) Validate(ctx context.Context, accountID string, durationSec int, purchaseID *string, textLen int) (*model.Purchase, error) {
	if v.rules.MaxTextChars > 0 && textLen > v.rules.MaxTextChars {
		return nil, fmt.Errorf("%w: %d > %d characters", model.ErrTextTooLong, textLen, v.rules.MaxTextChars)
	}
	if !v.IsAllowedDuration(durationSec) {
		return nil, fmt.Errorf("%w: %d seconds", model.ErrUnsupportedDuration, durationSec)
	}
	if durationSec == v.rules.DemoDurationSec {
		return nil, nil
	}

	explicit := purchaseID != nil && *purchaseID != ""
	if !explicit {
		purchaseID = nil
	}

	purchase, err := v.purchases.FindEligible(ctx, accountID, durationSec, purchaseID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			if explicit {
				return nil, model.ErrPurchaseNotFound
			}
			return nil, model.ErrPaymentRequired
		}
		return nil, fmt.Errorf("failed to look up purchase: %w", err)
	}

	return purchase, nil
}

// IsAllowedDuration reports whether durationSec is the demo or a paid package duration.
func (v *Validator) IsAllowedDuration(durationSec int) bool {
	if durationSec == v.rules.DemoDurationSec {
		return true
	}
	for _, d := range v.rules.PaidDurations {
		if d == durationSec {
			return true
		}
	}
	return false
}

// IsDemo reports whether durationSec is the free demo duration.
func (v *Validator) IsDemo(durationSec int) bool {
	return durationSec == v.rules.DemoDurationSec
}

// Rules returns the configured limits.
func (v *Validator) Rules() Rules {
	return v.rules
}
