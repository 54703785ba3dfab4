package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/staffhub/internal/core/principal"
	"github.com/ogurasousui/staffhub/internal/core/role"
	pgdb "github.com/ogurasousui/staffhub/internal/platform/db/postgres"
)

const (
	principalUniqueViolationCode     = "23505"
	principalForeignKeyViolationCode = "23503"
)

// PrincipalRepository は PostgreSQL を利用した構成員永続化の実装です。
type PrincipalRepository struct {
	pool pgdb.Queryer
}

// NewPrincipalRepository は PrincipalRepository を生成します。
func NewPrincipalRepository(pool pgdb.Queryer) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

// Create は構成員を新規作成します。
func (r *PrincipalRepository) Create(ctx context.Context, p *principal.Principal) (*principal.Principal, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO principals (id, role, manager_id, director_id, department_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, role, manager_id, director_id, department_id, created_at, updated_at
    `,
		p.ID,
		string(p.Role),
		nullableString(p.ManagerID),
		nullableString(p.DirectorID),
		p.DepartmentID,
		p.CreatedAt,
		p.UpdatedAt,
	)

	created, err := scanPrincipal(row)
	if err != nil {
		return nil, translatePrincipalPgError(err)
	}
	return created, nil
}

// Update は構成員情報を更新します。
func (r *PrincipalRepository) Update(ctx context.Context, p *principal.Principal) (*principal.Principal, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE principals
           SET role = $1,
               manager_id = $2,
               director_id = $3,
               department_id = $4,
               updated_at = $5
         WHERE id = $6
        RETURNING id, role, manager_id, director_id, department_id, created_at, updated_at
    `,
		string(p.Role),
		nullableString(p.ManagerID),
		nullableString(p.DirectorID),
		p.DepartmentID,
		p.UpdatedAt,
		p.ID,
	)

	updated, err := scanPrincipal(row)
	if err != nil {
		return nil, translatePrincipalPgError(err)
	}
	return updated, nil
}

// Delete は構成員を削除します。
func (r *PrincipalRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return translatePrincipalPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return principal.ErrPrincipalNotFound
	}
	return nil
}

// FindByID は ID で構成員を取得します。
func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*principal.Principal, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, role, manager_id, director_id, department_id, created_at, updated_at
          FROM principals
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanPrincipal(row)
	if err != nil {
		return nil, translatePrincipalPgError(err)
	}
	return found, nil
}

// ListByDirector は部門長配下の構成員一覧を取得します。
func (r *PrincipalRepository) ListByDirector(ctx context.Context, directorID string) ([]*principal.Principal, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, role, manager_id, director_id, department_id, created_at, updated_at
          FROM principals
         WHERE director_id = $1
         ORDER BY created_at, id
    `, directorID)
	if err != nil {
		return nil, translatePrincipalPgError(err)
	}
	defer rows.Close()

	var principals []*principal.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, translatePrincipalPgError(err)
		}
		principals = append(principals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, translatePrincipalPgError(err)
	}

	return principals, nil
}

func scanPrincipal(row pgx.Row) (*principal.Principal, error) {
	var (
		id           string
		roleValue    string
		managerID    sql.NullString
		directorID   sql.NullString
		departmentID string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&id, &roleValue, &managerID, &directorID, &departmentID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, principal.ErrPrincipalNotFound
		}
		return nil, err
	}

	p := &principal.Principal{
		ID:           id,
		Role:         role.Role(roleValue),
		DepartmentID: departmentID,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
	if managerID.Valid {
		v := managerID.String
		p.ManagerID = &v
	}
	if directorID.Valid {
		v := directorID.String
		p.DirectorID = &v
	}
	return p, nil
}

func translatePrincipalPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case principalUniqueViolationCode:
			return principal.ErrAlreadyExists
		case principalForeignKeyViolationCode:
			return principal.ErrInvalidOrgLink
		}
	}
	return err
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
