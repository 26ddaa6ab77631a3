package model

import "time"

// Purchase is one entitlement unit: the right to generate one track of DurationSec.
type Purchase struct {
	ID                string         `json:"id"`
	AccountID         string         `json:"accountId"`
	DurationSec       int            `json:"durationSec"`
	Price             int            `json:"price"`
	Status            PurchaseStatus `json:"status"`
	Provider          string         `json:"provider"`
	ProviderPaymentID *string        `json:"providerPaymentId,omitempty"`
	Consumed          bool           `json:"consumed"`
	ConsumedAt        *time.Time     `json:"consumedAt,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// Eligible reports whether p can authorize a job of durationSec.
func (p *Purchase) Eligible(durationSec int) bool {
	return p.Status == PurchaseStatusPaid && !p.Consumed && p.DurationSec == durationSec
}

// Package is a purchasable (or demo) duration offered by billing.
type Package struct {
	Code          string `json:"code"`
	DurationSec   int    `json:"durationSec"`
	DurationLabel string `json:"durationLabel"`
	Price         int    `json:"price"`
	IsDemo        bool   `json:"isDemo"`
}

// PurchaseCreateRequest represents POST /api/billing/purchases
type PurchaseCreateRequest struct {
	DurationSec int `json:"durationSec" validate:"required,min=1"`
}

// LimitsResponse summarizes what an account can generate right now
type LimitsResponse struct {
	DemoDurationSec     int       `json:"demoDurationSec"`
	Packages            []Package `json:"packages"`
	PaidUnusedPurchases int       `json:"paidUnusedPurchases"`
}

// PurchaseResponse is the API view of a purchase
type PurchaseResponse struct {
	ID          string         `json:"id"`
	DurationSec int            `json:"durationSec"`
	Price       int            `json:"price"`
	Status      PurchaseStatus `json:"status"`
	Consumed    bool           `json:"consumed"`
}
