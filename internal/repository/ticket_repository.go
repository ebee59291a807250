package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

// TicketFilter captures listing parameters. Cancelled and archived tickets
// are excluded unless explicitly requested.
type TicketFilter struct {
	RequesterID      *int64
	TechnicianID     *int64
	Statuses         []domain.TicketStatus
	IncludeCancelled bool
	IncludeArchived  bool
	Limit            int
	Offset           int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByProtocol(ctx context.Context, protocol string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
	LatestProtocol(ctx context.Context, prefix string) (string, error)
	AcquireProtocolLock(ctx context.Context, year int) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, protocol, requester_id, technician_id, category_id, title, description,
               priority, urgency, status, solution, observations, rating, cancelled, archived,
               opened_at, updated_at, resolved_at, resolution_minutes`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (protocol, requester_id, technician_id, category_id, title, description, priority, urgency, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, opened_at, updated_at`
	return persistence.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query,
		ticket.Protocol,
		ticket.RequesterID,
		ticket.TechnicianID,
		ticket.CategoryID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Urgency,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.OpenedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET technician_id=$1, category_id=$2, title=$3, description=$4,
            priority=$5, urgency=$6, status=$7, solution=$8, observations=$9, rating=$10,
            cancelled=$11, archived=$12, resolved_at=$13, resolution_minutes=$14, updated_at=NOW()
        WHERE id=$15
        RETURNING updated_at`
	err := persistence.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query,
		ticket.TechnicianID,
		ticket.CategoryID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Urgency,
		ticket.Status,
		ticket.Solution,
		ticket.Observations,
		ticket.Rating,
		ticket.Cancelled,
		ticket.Archived,
		ticket.ResolvedAt,
		ticket.ResolutionMinutes,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByProtocol(ctx context.Context, protocol string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE protocol=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, protocol)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := persistence.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Protocol,
		&ticket.RequesterID,
		&ticket.TechnicianID,
		&ticket.CategoryID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Urgency,
		&ticket.Status,
		&ticket.Solution,
		&ticket.Observations,
		&ticket.Rating,
		&ticket.Cancelled,
		&ticket.Archived,
		&ticket.OpenedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ResolutionMinutes,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if !filter.IncludeCancelled {
		clauses = append(clauses, "cancelled = FALSE")
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "archived = FALSE")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := persistence.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM tickets WHERE id=$1`
	cmd, err := persistence.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// LatestProtocol returns the protocol of the most recently created ticket
// matching the prefix, or "" when the prefix has no tickets yet.
func (r *ticketRepository) LatestProtocol(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT protocol FROM tickets WHERE protocol LIKE $1 ORDER BY id DESC LIMIT 1`
	var protocol string
	err := persistence.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, prefix+"%").Scan(&protocol)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return protocol, nil
}

// AcquireProtocolLock serializes protocol allocation for a year. The lock
// is transaction-scoped and released automatically on commit or rollback.
func (r *ticketRepository) AcquireProtocolLock(ctx context.Context, year int) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext('ticket_protocol_' || $1::text))`
	_, err := persistence.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, year)
	return err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Protocol,
			&ticket.RequesterID,
			&ticket.TechnicianID,
			&ticket.CategoryID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Priority,
			&ticket.Urgency,
			&ticket.Status,
			&ticket.Solution,
			&ticket.Observations,
			&ticket.Rating,
			&ticket.Cancelled,
			&ticket.Archived,
			&ticket.OpenedAt,
			&ticket.UpdatedAt,
			&ticket.ResolvedAt,
			&ticket.ResolutionMinutes,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
