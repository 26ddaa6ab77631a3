package memory

import (
	"context"
	"fmt"

	"github.com/affirmstudio/api/internal/model"
)

// PurchaseRepository implements repository.PurchaseRepository in memory.
type PurchaseRepository struct {
	s *Store
}

func (r *PurchaseRepository) Create(_ context.Context, purchase *model.Purchase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.purchases[purchase.ID]; exists {
		return fmt.Errorf("purchase %s already exists", purchase.ID)
	}
	purchase.CreatedAt = r.s.stamp(purchase.CreatedAt)
	r.s.purchases[purchase.ID] = &purchaseRow{seq: r.s.nextSeq(), purchase: *clonePurchase(*purchase)}
	return nil
}

func (r *PurchaseRepository) Get(_ context.Context, purchaseID string) (*model.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.purchases[purchaseID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clonePurchase(row.purchase), nil
}

func (r *PurchaseRepository) ListByAccount(_ context.Context, accountID string) ([]*model.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rows := r.matching(func(p *model.Purchase) bool { return p.AccountID == accountID })
	out := make([]*model.Purchase, 0, len(rows))
	for _, row := range rows {
		out = append(out, clonePurchase(row.purchase))
	}
	return out, nil
}

func (r *PurchaseRepository) FindEligible(_ context.Context, accountID string, durationSec int, purchaseID *string) (*model.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rows := r.matching(func(p *model.Purchase) bool {
		if p.AccountID != accountID || !p.Eligible(durationSec) {
			return false
		}
		return purchaseID == nil || p.ID == *purchaseID
	})
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}
	return clonePurchase(rows[0].purchase), nil
}

func (r *PurchaseRepository) MarkPaid(_ context.Context, purchaseID, accountID string) (*model.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.purchases[purchaseID]
	if !ok || row.purchase.AccountID != accountID {
		return nil, model.ErrPurchaseNotFound
	}
	switch row.purchase.Status {
	case model.PurchaseStatusPaid:
	case model.PurchaseStatusPending:
		row.purchase.Status = model.PurchaseStatusPaid
	default:
		return nil, model.ErrPurchaseNotActive
	}
	return clonePurchase(row.purchase), nil
}

func (r *PurchaseRepository) MarkExpired(_ context.Context, purchaseID, accountID string) (*model.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.purchases[purchaseID]
	if !ok || row.purchase.AccountID != accountID {
		return nil, model.ErrPurchaseNotFound
	}
	if row.purchase.Status == model.PurchaseStatusPending {
		row.purchase.Status = model.PurchaseStatusExpired
	}
	return clonePurchase(row.purchase), nil
}

// matching returns rows newest first. Caller holds the lock.
func (r *PurchaseRepository) matching(match func(*model.Purchase) bool) []*purchaseRow {
	var rows []*purchaseRow
	for _, row := range r.s.purchases {
		if match(&row.purchase) {
			rows = append(rows, row)
		}
	}
	sortRows(rows, func(a, b *purchaseRow) bool {
		return newestFirst(a.purchase.CreatedAt, a.seq, b.purchase.CreatedAt, b.seq)
	})
	return rows
}
