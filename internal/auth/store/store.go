package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers expose sub-repositories
// so that a Tx can hand out the same repos bound to one transaction.
type Store interface {
	Applications() Applications
	Clients() Clients
	Roles() Roles
	Users() Users
	Identities() Identities
	States() States
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Applications interface {
	// GetApplicationByID returns ErrNotFound for unknown ids.
	GetApplicationByID(ctx context.Context, id string) (domain.Application, error)

	// CreateApplication inserts an application. DefaultRoleID may be empty
	// and set later once the role exists.
	CreateApplication(ctx context.Context, a domain.Application) error

	SetDefaultRole(ctx context.Context, applicationID, roleID string) error

	// IsEmpty reports whether no application is registered yet.
	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	// GetClientByID returns the client with its configured authenticators.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// CreateClient inserts the client and its authenticators.
	CreateClient(ctx context.Context, c domain.Client) error
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, applicationID, name string) (domain.Role, error)
	CreateRole(ctx context.Context, r domain.Role) error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
}

type Identities interface {
	GetIdentityByID(ctx context.Context, id string) (domain.UserIdentity, error)

	// GetIdentity finds an identity by provider type and remote id.
	GetIdentity(ctx context.Context, typ, remoteID string) (domain.UserIdentity, error)

	// CreateIdentity returns ErrAlreadyExists when (type, remote id) is taken.
	CreateIdentity(ctx context.Context, i domain.UserIdentity) error
}

// States holds parked authorization requests.
type States interface {
	CreateState(ctx context.Context, s domain.AuthenticatorState) error

	// TakeState removes the state and returns it. A second take of the same
	// id returns ErrNotFound.
	TakeState(ctx context.Context, id idx.SecureID) (domain.AuthenticatorState, error)

	StateExists(ctx context.Context, id idx.SecureID) (bool, error)

	// DeleteStatesBefore removes states created before cutoff.
	DeleteStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateRestorer is implemented by States backends whose TakeState is not
// undone when the surrounding transaction rolls back.
type StateRestorer interface {
	// RestoreState puts back a state removed by TakeState. It returns
	// ErrAlreadyExists if the id is present.
	RestoreState(ctx context.Context, s domain.AuthenticatorState) error
}

type Tokens interface {
	CreateToken(ctx context.Context, t domain.OAuthToken) error
	GetToken(ctx context.Context, id idx.SecureID) (domain.OAuthToken, error)

	// DeleteToken returns ErrNotFound when nothing was deleted, so that two
	// concurrent redemptions cannot both succeed.
	DeleteToken(ctx context.Context, id idx.SecureID) error

	TokenExists(ctx context.Context, id idx.SecureID) (bool, error)

	// DeleteExpiredTokens removes tokens whose lifetime ended before now.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
