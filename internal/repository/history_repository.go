package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

// HistoryRepository stores the append-only audit ledger. Entries are only
// ever inserted; removal happens solely through the ticket cascade.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.HistoryEntry) error
	ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.HistoryEntry, error)
	GetByID(ctx context.Context, id int64) (*domain.HistoryEntry, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, user_id, action, description, previous_status, new_status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return persistence.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.Description,
		entry.PreviousStatus,
		entry.NewStatus,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, user_id, action, description, previous_status, new_status, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := persistence.QuerierFromCtx(ctx, r.pool).Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&entry.Description,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *historyRepository) GetByID(ctx context.Context, id int64) (*domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, description, previous_status, new_status, created_at
        FROM ticket_history WHERE id=$1`
	var entry domain.HistoryEntry
	if err := persistence.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.UserID,
		&entry.Action,
		&entry.Description,
		&entry.PreviousStatus,
		&entry.NewStatus,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
