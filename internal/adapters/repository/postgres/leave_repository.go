package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/staffhub/internal/core/leave"
	pgdb "github.com/ogurasousui/staffhub/internal/platform/db/postgres"
)

const (
	leaveForeignKeyViolationCode = "23503"
	leaveCheckViolationCode      = "23514"
)

const leaveColumns = `
        id, requester_id, start_date, end_date, reason,
        manager_decision, manager_decided_by, manager_decided_at, manager_comments,
        director_decision, director_decided_by, director_decided_at, director_comments,
        overall_status, created_at, updated_at`

// LeaveRepository は PostgreSQL を利用した休暇申請永続化の実装です。
type LeaveRepository struct {
	pool pgdb.Queryer
}

// NewLeaveRepository は LeaveRepository を生成します。
func NewLeaveRepository(pool pgdb.Queryer) *LeaveRepository {
	return &LeaveRepository{pool: pool}
}

// Create は休暇申請を新規作成します。
func (r *LeaveRepository) Create(ctx context.Context, req *leave.Request) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO leave_requests (
            id, requester_id, start_date, end_date, reason,
            manager_decision, manager_decided_by, manager_decided_at, manager_comments,
            director_decision, director_decided_by, director_decided_at, director_comments,
            overall_status, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING`+leaveColumns,
		req.ID,
		req.RequesterID,
		req.StartDate,
		req.EndDate,
		req.Reason,
		string(req.Manager.Value),
		nullableIfEmpty(req.Manager.DecidedBy),
		nullableTime(req.Manager.DecidedAt),
		req.Manager.Comments,
		string(req.Director.Value),
		nullableIfEmpty(req.Director.DecidedBy),
		nullableTime(req.Director.DecidedAt),
		req.Director.Comments,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
	)

	created, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	return created, nil
}

// Update は休暇申請の判断状態を書き戻します。
func (r *LeaveRepository) Update(ctx context.Context, req *leave.Request) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE leave_requests
           SET manager_decision = $1,
               manager_decided_by = $2,
               manager_decided_at = $3,
               manager_comments = $4,
               director_decision = $5,
               director_decided_by = $6,
               director_decided_at = $7,
               director_comments = $8,
               overall_status = $9,
               updated_at = $10
         WHERE id = $11
        RETURNING`+leaveColumns,
		string(req.Manager.Value),
		nullableIfEmpty(req.Manager.DecidedBy),
		nullableTime(req.Manager.DecidedAt),
		req.Manager.Comments,
		string(req.Director.Value),
		nullableIfEmpty(req.Director.DecidedBy),
		nullableTime(req.Director.DecidedAt),
		req.Director.Comments,
		string(req.Status),
		req.UpdatedAt,
		req.ID,
	)

	updated, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	return updated, nil
}

// FindByID は ID で休暇申請を取得します。
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT`+leaveColumns+`
          FROM leave_requests
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	return found, nil
}

// FindByIDForUpdate は行ロックを取得してから休暇申請を返します。
// 同一申請への判断を直列化するため、読み書きトランザクション内で使います。
func (r *LeaveRepository) FindByIDForUpdate(ctx context.Context, id string) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT`+leaveColumns+`
          FROM leave_requests
         WHERE id = $1
         FOR UPDATE
    `, id)

	found, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	return found, nil
}

// ListByRequester は申請者の休暇申請一覧を取得します。
func (r *LeaveRepository) ListByRequester(ctx context.Context, requesterID string) ([]*leave.Request, error) {
	return r.list(ctx, `
        SELECT`+leaveColumns+`
          FROM leave_requests
         WHERE requester_id = $1
         ORDER BY start_date DESC, id
    `, requesterID)
}

// ListUnresolvedByRequester は全体ステータスが保留のままの申請を取得します。
func (r *LeaveRepository) ListUnresolvedByRequester(ctx context.Context, requesterID string) ([]*leave.Request, error) {
	return r.list(ctx, `
        SELECT`+leaveColumns+`
          FROM leave_requests
         WHERE requester_id = $1
           AND overall_status = 'pending'
         ORDER BY start_date, id
    `, requesterID)
}

func (r *LeaveRepository) list(ctx context.Context, query, requesterID string) ([]*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, requesterID)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	defer rows.Close()

	var requests []*leave.Request
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, translateLeavePgError(err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, translateLeavePgError(err)
	}

	return requests, nil
}

func scanLeaveRequest(row pgx.Row) (*leave.Request, error) {
	var (
		id          string
		requesterID string
		startDate   time.Time
		endDate     time.Time
		reason      string

		managerDecision  string
		managerDecidedBy sql.NullString
		managerDecidedAt sql.NullTime
		managerComments  string

		directorDecision  string
		directorDecidedBy sql.NullString
		directorDecidedAt sql.NullTime
		directorComments  string

		overallStatus string
		createdAt     time.Time
		updatedAt     time.Time
	)

	if err := row.Scan(
		&id, &requesterID, &startDate, &endDate, &reason,
		&managerDecision, &managerDecidedBy, &managerDecidedAt, &managerComments,
		&directorDecision, &directorDecidedBy, &directorDecidedAt, &directorComments,
		&overallStatus, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, leave.ErrRequestNotFound
		}
		return nil, err
	}

	return &leave.Request{
		ID:          id,
		RequesterID: requesterID,
		StartDate:   startDate,
		EndDate:     endDate,
		Reason:      reason,
		Manager:     toStageDecision(managerDecision, managerDecidedBy, managerDecidedAt, managerComments),
		Director:    toStageDecision(directorDecision, directorDecidedBy, directorDecidedAt, directorComments),
		Status:      leave.Status(overallStatus),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func toStageDecision(value string, decidedBy sql.NullString, decidedAt sql.NullTime, comments string) leave.StageDecision {
	decision := leave.StageDecision{
		Value:    leave.DecisionValue(value),
		Comments: comments,
	}
	if decidedBy.Valid {
		decision.DecidedBy = decidedBy.String
	}
	if decidedAt.Valid {
		at := decidedAt.Time
		decision.DecidedAt = &at
	}
	return decision
}

func translateLeavePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case leaveForeignKeyViolationCode:
			return leave.ErrInvalidRequesterID
		case leaveCheckViolationCode:
			return leave.ErrInvalidDateRange
		}
	}
	return err
}

func nullableIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
