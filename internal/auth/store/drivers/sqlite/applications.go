package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type applicationsRepo struct {
	q dbtx
}

func (r *applicationsRepo) GetApplicationByID(ctx context.Context, id string) (domain.Application, error) {
	var (
		a         domain.Application
		roleID    sql.NullString
		scopes    string
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, default_role_id, scopes, created_at FROM applications WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &roleID, &scopes, &createdAt)
	if err != nil {
		return domain.Application{}, mapNotFound(err)
	}

	a.DefaultRoleID = mapNullString(roleID)
	a.Scopes = splitFields(scopes)
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

func (r *applicationsRepo) CreateApplication(ctx context.Context, a domain.Application) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO applications (id, name, default_role_id, scopes, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, mapStringNull(a.DefaultRoleID), joinFields(a.Scopes), toMillis(a.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *applicationsRepo) SetDefaultRole(ctx context.Context, applicationID, roleID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE applications SET default_role_id = ? WHERE id = ?`, roleID, applicationID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *applicationsRepo) IsEmpty(ctx context.Context) (bool, error) {
	found, err := exists(ctx, r.q, `SELECT 1 FROM applications LIMIT 1`)
	return !found, err
}
