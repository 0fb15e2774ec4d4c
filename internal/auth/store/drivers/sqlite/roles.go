package sqlite

import (
	"context"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type rolesRepo struct {
	q dbtx
}

const roleColumns = `id, application_id, name, scopes, created_at`

func scanRole(row interface{ Scan(...any) error }) (domain.Role, error) {
	var (
		r         domain.Role
		scopes    string
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.ApplicationID, &r.Name, &scopes, &createdAt); err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	r.Scopes = splitFields(scopes)
	r.CreatedAt = fromMillis(createdAt)
	return r, nil
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	return scanRole(r.q.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ?`, id))
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, applicationID, name string) (domain.Role, error) {
	return scanRole(r.q.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE application_id = ? AND name = ?`, applicationID, name))
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO roles (id, application_id, name, scopes, created_at) VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.ApplicationID, role.Name, joinFields(role.Scopes), toMillis(role.CreatedAt),
	)
	return mapConstraint(err)
}
