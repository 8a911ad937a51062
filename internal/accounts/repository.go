package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dinner-house/internal/domain"
)

const maxAddresses = 3

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, username, password_hash, real_name, phone, addresses,
	loyalty_tier, profile_consent, profile_consent_at, created_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Username, &c.Password, &c.RealName, &c.Phone, &c.Addresses,
		&c.LoyaltyTier, &c.ProfileConsent, &c.ProfileConsentAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, c *domain.Customer) (int64, error) {
	if len(c.Addresses) > maxAddresses {
		return 0, domain.Invalidf("at most %d addresses allowed", maxAddresses)
	}
	if c.LoyaltyTier == "" {
		c.LoyaltyTier = domain.TierNone
	}
	if c.Addresses == nil {
		c.Addresses = []map[string]any{}
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customer (username, password_hash, real_name, phone, addresses,
			loyalty_tier, profile_consent, profile_consent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.Username, c.Password, c.RealName, c.Phone, c.Addresses,
		c.LoyaltyTier, c.ProfileConsent, c.ProfileConsentAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, domain.Conflictf("customer username or phone already registered")
		}
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	return id, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customer WHERE id = $1`, id))
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*domain.Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customer WHERE username = $1`, username))
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customer ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateAddresses replaces the address book; the three-slot cap matches the
// profile UI.
func (r *Repository) UpdateAddresses(ctx context.Context, id int64, addresses []map[string]any) error {
	if len(addresses) > maxAddresses {
		return domain.Invalidf("at most %d addresses allowed", maxAddresses)
	}
	if addresses == nil {
		addresses = []map[string]any{}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE customer SET addresses = $2 WHERE id = $1`, id, addresses)
	if err != nil {
		return fmt.Errorf("update addresses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) SetLoyaltyTier(ctx context.Context, id int64, tier string) error {
	switch tier {
	case domain.TierNone, domain.TierSilver, domain.TierGold:
	default:
		return domain.Invalidf("unknown loyalty tier %q", tier)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE customer SET loyalty_tier = $2 WHERE id = $1`, id, tier)
	if err != nil {
		return fmt.Errorf("set loyalty tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
