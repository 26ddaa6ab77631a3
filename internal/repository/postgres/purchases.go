package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/affirmstudio/api/internal/model"
)

const purchaseColumns = `id, account_id, duration_sec, price, status, provider, provider_payment_id,
consumed, consumed_at, created_at`

// PurchaseRepository implements repository.PurchaseRepository.
type PurchaseRepository struct {
	pool *pgxpool.Pool
}

// NewPurchaseRepository creates a new purchase repository backed by PostgreSQL.
func NewPurchaseRepository(pool *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{pool: pool}
}

// Create inserts a purchase record.
func (r *PurchaseRepository) Create(ctx context.Context, p *model.Purchase) error {
	return r.pool.QueryRow(ctx, `
INSERT INTO purchases (id, account_id, duration_sec, price, status, provider, provider_payment_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at;
`,
		p.ID,
		p.AccountID,
		p.DurationSec,
		p.Price,
		p.Status,
		p.Provider,
		p.ProviderPaymentID,
	).Scan(&p.CreatedAt)
}

// Get fetches a purchase by its identifier.
func (r *PurchaseRepository) Get(ctx context.Context, purchaseID string) (*model.Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1;`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByAccount returns the account's purchases newest first.
func (r *PurchaseRepository) ListByAccount(ctx context.Context, accountID string) ([]*model.Purchase, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE account_id = $1
ORDER BY created_at DESC, id DESC;
`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindEligible selects the newest unconsumed paid purchase of the duration, or exactly purchaseID.
func (r *PurchaseRepository) FindEligible(ctx context.Context, accountID string, durationSec int, purchaseID *string) (*model.Purchase, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE account_id = $1
  AND duration_sec = $2
  AND status = 'paid'
  AND consumed = FALSE
  AND ($3::text IS NULL OR id = $3)
ORDER BY created_at DESC, id DESC
LIMIT 1;
`, accountID, durationSec, purchaseID)

	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// MarkPaid confirms a pending purchase owned by accountID.
func (r *PurchaseRepository) MarkPaid(ctx context.Context, purchaseID, accountID string) (*model.Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET status = 'paid'
WHERE id = $1 AND account_id = $2 AND status IN ('pending', 'paid')
RETURNING `+purchaseColumns+`;
`, purchaseID, accountID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, err := r.Get(ctx, purchaseID)
	if err != nil || existing.AccountID != accountID {
		return nil, model.ErrPurchaseNotFound
	}
	return nil, model.ErrPurchaseNotActive
}

// MarkExpired expires a pending purchase owned by accountID; paid purchases stay paid.
func (r *PurchaseRepository) MarkExpired(ctx context.Context, purchaseID, accountID string) (*model.Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET status = 'expired'
WHERE id = $1 AND account_id = $2 AND status = 'pending'
RETURNING `+purchaseColumns+`;
`, purchaseID, accountID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, err := r.Get(ctx, purchaseID)
	if err != nil || existing.AccountID != accountID {
		return nil, model.ErrPurchaseNotFound
	}
	return existing, nil
}

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var p model.Purchase
	if err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.DurationSec,
		&p.Price,
		&p.Status,
		&p.Provider,
		&p.ProviderPaymentID,
		&p.Consumed,
		&p.ConsumedAt,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
