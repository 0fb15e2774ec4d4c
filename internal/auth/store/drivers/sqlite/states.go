package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

type statesRepo struct {
	q dbtx
}

func (r *statesRepo) CreateState(ctx context.Context, s domain.AuthenticatorState) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO authenticator_states (id, client_id, authenticator, scopes, client_state, redirect_uri, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.ClientID, s.Authenticator, joinFields(s.Scopes),
		mapStringNull(s.ClientState), s.RedirectURI, toMillis(s.CreatedAt),
	)
	return mapConstraint(err)
}

// TakeState deletes and returns in one statement, so only one caller ever
// sees the row.
func (r *statesRepo) TakeState(ctx context.Context, id idx.SecureID) (domain.AuthenticatorState, error) {
	var (
		s           domain.AuthenticatorState
		scopes      string
		clientState sql.NullString
		createdAt   int64
	)
	err := r.q.QueryRowContext(ctx,
		`DELETE FROM authenticator_states WHERE id = ?
		 RETURNING client_id, authenticator, scopes, client_state, redirect_uri, created_at`,
		id.String(),
	).Scan(&s.ClientID, &s.Authenticator, &scopes, &clientState, &s.RedirectURI, &createdAt)
	if err != nil {
		return domain.AuthenticatorState{}, mapNotFound(err)
	}

	s.ID = id
	s.Scopes = splitFields(scopes)
	s.ClientState = mapNullString(clientState)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *statesRepo) StateExists(ctx context.Context, id idx.SecureID) (bool, error) {
	return exists(ctx, r.q, `SELECT 1 FROM authenticator_states WHERE id = ?`, id.String())
}

func (r *statesRepo) DeleteStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM authenticator_states WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
