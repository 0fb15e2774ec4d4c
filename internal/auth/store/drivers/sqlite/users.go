package sqlite

import (
	"context"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type usersRepo struct {
	q dbtx
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, application_id, role_id, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.ApplicationID, &u.RoleID, &createdAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, application_id, role_id, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.ApplicationID, u.RoleID, toMillis(u.CreatedAt),
	)
	return mapConstraint(err)
}
