package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// ErrStaleStatus reports that a status-guarded update matched no row: the
// request moved to another status between the caller's read and its write.
var ErrStaleStatus = errors.New("request status changed concurrently")

// RequestRepository encapsulates request persistence. Listings apply the
// done-retention cutoff: completed requests older than the cutoff are
// omitted but stay in storage.
type RequestRepository interface {
	Insert(ctx context.Context, request *domain.Request) error
	GetByID(ctx context.Context, id int64) (*domain.Request, error)
	// UpdateIfStatus writes the request only while its stored status still
	// equals expected, so concurrent transitions lose instead of clobbering.
	UpdateIfStatus(ctx context.Context, request *domain.Request, expected domain.RequestStatus) error
	SetAnchor(ctx context.Context, requestID int64, anchorID int64) error
	ListByRequester(ctx context.Context, chatID int64, includeDoneAfter time.Time) ([]domain.Request, error)
	ListByAdmin(ctx context.Context, adminID int64, includeDoneAfter time.Time) ([]domain.Request, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, requester_chat_id, category, description, urgency, scheduled_at,
               status, assigned_admin_id, admin_anchor_id, created_at, completed_at`

func (r *requestRepository) Insert(ctx context.Context, request *domain.Request) error {
	const query = `
        INSERT INTO requests (requester_chat_id, category, description, urgency, scheduled_at, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		request.RequesterChatID,
		request.Category,
		request.Description,
		request.Urgency,
		request.ScheduledAt,
		request.Status,
	).Scan(&request.ID, &request.CreatedAt)
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanRequest(row)
}

func (r *requestRepository) UpdateIfStatus(ctx context.Context, request *domain.Request, expected domain.RequestStatus) error {
	const query = `
        UPDATE requests SET status=$1, assigned_admin_id=$2, admin_anchor_id=$3, completed_at=$4
        WHERE id=$5 AND status=$6`
	cmd, err := r.pool.Exec(ctx, query,
		request.Status,
		request.AssignedAdminID,
		request.AdminAnchorID,
		request.CompletedAt,
		request.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *requestRepository) SetAnchor(ctx context.Context, requestID int64, anchorID int64) error {
	const query = `UPDATE requests SET admin_anchor_id=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, anchorID, requestID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) ListByRequester(ctx context.Context, chatID int64, includeDoneAfter time.Time) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + `
        FROM requests
        WHERE requester_chat_id=$1 AND (status <> 'DONE' OR completed_at >= $2)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, chatID, includeDoneAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) ListByAdmin(ctx context.Context, adminID int64, includeDoneAfter time.Time) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + `
        FROM requests
        WHERE assigned_admin_id=$1 AND (status <> 'DONE' OR completed_at >= $2)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, adminID, includeDoneAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var request domain.Request
	if err := row.Scan(
		&request.ID,
		&request.RequesterChatID,
		&request.Category,
		&request.Description,
		&request.Urgency,
		&request.ScheduledAt,
		&request.Status,
		&request.AssignedAdminID,
		&request.AdminAnchorID,
		&request.CreatedAt,
		&request.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func scanRequests(rows pgx.Rows) ([]domain.Request, error) {
	var result []domain.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *request)
	}
	return result, rows.Err()
}
