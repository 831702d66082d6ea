package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = pgx.ErrNoRows

// IdentityRepository encapsulates identity persistence.
type IdentityRepository interface {
	Upsert(ctx context.Context, identity *domain.Identity) error
	GetByChatID(ctx context.Context, chatID int64) (*domain.Identity, error)
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository instantiates repository.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (chat_id, username, name, phone, organization, office, registered, role)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (chat_id) DO UPDATE SET
            username=EXCLUDED.username, name=EXCLUDED.name, phone=EXCLUDED.phone,
            organization=EXCLUDED.organization, office=EXCLUDED.office,
            registered=EXCLUDED.registered, role=EXCLUDED.role, updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		identity.ChatID,
		identity.Username,
		identity.Name,
		identity.Phone,
		identity.Organization,
		identity.Office,
		identity.Registered,
		identity.Role,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
}

func (r *identityRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.Identity, error) {
	const query = `
        SELECT chat_id, username, name, phone, organization, office, registered, role, created_at, updated_at
        FROM identities WHERE chat_id=$1`
	var identity domain.Identity
	if err := r.pool.QueryRow(ctx, query, chatID).Scan(
		&identity.ChatID,
		&identity.Username,
		&identity.Name,
		&identity.Phone,
		&identity.Organization,
		&identity.Office,
		&identity.Registered,
		&identity.Role,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &identity, nil
}

// IsMissing reports whether err means the record does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
