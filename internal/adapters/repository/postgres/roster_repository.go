package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/staffhub/internal/core/roster"
	pgdb "github.com/ogurasousui/staffhub/internal/platform/db/postgres"
)

const (
	rosterUniqueViolationCode = "23505"
	rosterCheckViolationCode  = "23514"
)

const rosterColumns = `
        director_id, total_employees, total_managers, member_ids, version, updated_at`

// RosterRepository は PostgreSQL を利用した部門集計永続化の実装です。
// 書き込みは version 列の一致を要求する楽観ロックで保護します。
type RosterRepository struct {
	pool pgdb.Queryer
}

// NewRosterRepository は RosterRepository を生成します。
func NewRosterRepository(pool pgdb.Queryer) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// Create は集計レコードを新規作成します。
func (r *RosterRepository) Create(ctx context.Context, a *roster.Aggregate) (*roster.Aggregate, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO director_aggregates (director_id, total_employees, total_managers, member_ids, version, updated_at)
        VALUES ($1, $2, $3, $4, 1, $5)
        RETURNING`+rosterColumns,
		a.DirectorID,
		a.TotalEmployees,
		a.TotalManagers,
		a.MemberIDs,
		a.UpdatedAt,
	)

	created, err := scanAggregate(row)
	if err != nil {
		return nil, translateRosterPgError(err)
	}
	return created, nil
}

// UpdateVersioned は世代番号が一致する場合のみ集計を書き戻します。
// 一致しない場合は ErrAggregateConflict、レコードが無い場合は
// ErrAggregateNotFound を返します。
func (r *RosterRepository) UpdateVersioned(ctx context.Context, a *roster.Aggregate) (*roster.Aggregate, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE director_aggregates
           SET total_employees = $1,
               total_managers = $2,
               member_ids = $3,
               version = version + 1,
               updated_at = $4
         WHERE director_id = $5
           AND version = $6
        RETURNING`+rosterColumns,
		a.TotalEmployees,
		a.TotalManagers,
		a.MemberIDs,
		a.UpdatedAt,
		a.DirectorID,
		a.Version,
	)

	updated, err := scanAggregate(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, roster.ErrAggregateNotFound) {
		return nil, translateRosterPgError(err)
	}

	// 行が無かった理由を世代競合と不在で切り分ける。
	var exists bool
	if probeErr := exec.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM director_aggregates WHERE director_id = $1)`,
		a.DirectorID,
	).Scan(&exists); probeErr != nil {
		return nil, probeErr
	}
	if exists {
		return nil, roster.ErrAggregateConflict
	}
	return nil, roster.ErrAggregateNotFound
}

// FindByDirector は部門長 ID で集計を取得します。
func (r *RosterRepository) FindByDirector(ctx context.Context, directorID string) (*roster.Aggregate, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT`+rosterColumns+`
          FROM director_aggregates
         WHERE director_id = $1
         LIMIT 1
    `, directorID)

	found, err := scanAggregate(row)
	if err != nil {
		return nil, translateRosterPgError(err)
	}
	return found, nil
}

// Rebuild は principals テーブルの権威的なメンバーシップから集計を
// 作り直して保存します。乖離を検出したときの復旧経路です。
func (r *RosterRepository) Rebuild(ctx context.Context, directorID string) (*roster.Aggregate, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH membership AS (
            SELECT COUNT(*) FILTER (WHERE role IN ('employee', 'intern')) AS employees,
                   COUNT(*) FILTER (WHERE role IN ('manager', 'team_lead')) AS managers,
                   COALESCE(array_agg(id ORDER BY id), '{}') AS ids
              FROM principals
             WHERE director_id = $1
        )
        INSERT INTO director_aggregates (director_id, total_employees, total_managers, member_ids, version, updated_at)
        SELECT $1, employees, managers, ids, 1, now()
          FROM membership
        ON CONFLICT (director_id) DO UPDATE
           SET total_employees = EXCLUDED.total_employees,
               total_managers = EXCLUDED.total_managers,
               member_ids = EXCLUDED.member_ids,
               version = director_aggregates.version + 1,
               updated_at = now()
        RETURNING`+rosterColumns,
		directorID,
	)

	rebuilt, err := scanAggregate(row)
	if err != nil {
		return nil, translateRosterPgError(err)
	}
	return rebuilt, nil
}

// Delete は集計レコードを削除します。
func (r *RosterRepository) Delete(ctx context.Context, directorID string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM director_aggregates WHERE director_id = $1`, directorID)
	if err != nil {
		return translateRosterPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return roster.ErrAggregateNotFound
	}
	return nil
}

func scanAggregate(row pgx.Row) (*roster.Aggregate, error) {
	var (
		directorID     string
		totalEmployees int
		totalManagers  int
		memberIDs      []string
		version        int64
		updatedAt      time.Time
	)

	if err := row.Scan(&directorID, &totalEmployees, &totalManagers, &memberIDs, &version, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roster.ErrAggregateNotFound
		}
		return nil, err
	}

	return &roster.Aggregate{
		DirectorID:     directorID,
		TotalEmployees: totalEmployees,
		TotalManagers:  totalManagers,
		MemberIDs:      memberIDs,
		Version:        version,
		UpdatedAt:      updatedAt,
	}, nil
}

func translateRosterPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case rosterUniqueViolationCode:
			// 同じ部門の集計を同時に初期化した側の敗者。読み直しで解消する。
			return roster.ErrAggregateConflict
		case rosterCheckViolationCode:
			return roster.ErrInconsistentDelta
		}
	}
	return err
}
